package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BibekSapkota1/Share-Project/internal/engine"
	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// tradeFlags are the optional fill overrides; zero values use the latest bar.
type tradeFlags struct {
	date  string
	price float64
	rsi   float64
}

func (f *tradeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "Trade date YYYY-MM-DD (default latest bar)")
	cmd.Flags().Float64Var(&f.price, "price", 0, "Fill price (default latest close)")
	cmd.Flags().Float64Var(&f.rsi, "rsi", 0, "RSI recorded with the trade")
}

func (f *tradeFlags) request(userID int64, symbol string) (engine.TradeRequest, error) {
	req := engine.TradeRequest{
		UserID: userID,
		Symbol: strings.ToUpper(symbol),
		Price:  f.price,
		RSI:    f.rsi,
	}
	if f.date != "" {
		d, err := model.ParseDay(f.date)
		if err != nil {
			return req, model.NewError(model.CodeInvalidDate, req.Symbol, "date %q", f.date)
		}
		req.Date = d
	}
	return req, nil
}

func (c *cli) buyCmd() *cobra.Command {
	var f tradeFlags
	cmd := &cobra.Command{
		Use:   "buy SYMBOL",
		Short: "Open a trade cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(c.userID, args[0])
			if err != nil {
				return err
			}
			cyc, err := c.app.Engine.OpenPosition(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.printCycle(cmd, cyc)
		},
	}
	f.register(cmd)
	return cmd
}

func (c *cli) sellCmd() *cobra.Command {
	var f tradeFlags
	var reason string
	cmd := &cobra.Command{
		Use:   "sell SYMBOL",
		Short: "Close the open cycle; --reason records a manual sell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(c.userID, args[0])
			if err != nil {
				return err
			}
			req.Reason = reason
			var cyc *model.TradeCycle
			if reason == "" || model.IsAutomaticReason(reason) {
				cyc, err = c.app.Engine.ClosePosition(cmd.Context(), req)
			} else {
				cyc, err = c.app.Engine.ManualSell(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return c.printCycle(cmd, cyc)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&reason, "reason", "", "AUTOMATIC, RSI, TSL or free text for a manual sell")
	return cmd
}

func (c *cli) cyclesCmd() *cobra.Command {
	var symbol string
	var tracking int64
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "List trade cycles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if tracking > 0 {
				recs, err := c.app.Engine.Tracking(ctx, c.userID, tracking)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(cmd.OutOrStdout(), recs)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tCLOSE\tTSL\tNEW HIGH")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%v\n",
						r.Date.Format(model.DateLayout), r.ClosePrice, r.TSLPrice, r.IsNewHigh)
				}
				return tw.Flush()
			}

			cycles, err := c.app.Engine.Cycles(ctx, c.userID, strings.ToUpper(symbol))
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), cycles)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSYMBOL\t#\tSTATUS\tBUY\tTSL\tSELL\tP/L%\tREASON")
			for i := range cycles {
				cy := &cycles[i]
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%.2f@%s\t%.2f\t%s\t%s\t%s\n",
					cy.ID, cy.Symbol, cy.CycleNumber, cy.Status,
					cy.BuyPrice, cy.BuyDate.Format(model.DateLayout), cy.TSLTriggerPrice,
					optFloat(cy.SellPrice), optFloat(cy.ProfitLossPercent), cy.SellReason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "Only cycles for this symbol")
	cmd.Flags().Int64Var(&tracking, "tracking", 0, "Show the price tracking of this cycle id")
	return cmd
}

func (c *cli) performanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "performance",
		Short: "Realized and unrealized P/L over every cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.Engine.Performance(cmd.Context(), c.userID)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cycles %d (open %d, closed %d), win rate %.2f%%\n",
				p.TotalCycles, p.OpenCycles, p.ClosedCycles, p.WinRate)
			fmt.Fprintf(out, "P/L realized %.2f, unrealized %.2f, total %.2f, avg return %.2f%%\n",
				p.RealizedPnL, p.UnrealizedPnL, p.TotalPnL, p.AvgReturnPercent)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tCYCLES\tOPEN\tREALIZED\tUNREALIZED")
			for _, s := range p.Symbols {
				fmt.Fprintf(tw, "%s\t%d\t%v\t%.2f\t%.2f\n", s.Symbol, s.Cycles, s.Open, s.RealizedPnL, s.UnrealizedPnL)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) printCycle(cmd *cobra.Command, cy *model.TradeCycle) error {
	if c.asJSON {
		return writeJSON(cmd.OutOrStdout(), cy)
	}
	out := cmd.OutOrStdout()
	if cy.IsOpen() {
		fmt.Fprintf(out, "opened %s cycle %d (id %d) at %.2f on %s, TSL %.2f\n",
			cy.Symbol, cy.CycleNumber, cy.ID, cy.BuyPrice, cy.BuyDate.Format(model.DateLayout), cy.TSLTriggerPrice)
		return nil
	}
	fmt.Fprintf(out, "closed %s cycle %d (id %d) at %s [%s], P/L %s (%s%%)\n",
		cy.Symbol, cy.CycleNumber, cy.ID, optFloat(cy.SellPrice), cy.SellReason,
		optFloat(cy.ProfitLoss), optFloat(cy.ProfitLossPercent))
	return nil
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
