package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/settings"
)

func (c *cli) analyzeCmd() *cobra.Command {
	var period int
	var upper, lower float64
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "RSI chart, crossings and latest status for one symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			base, err := c.app.Engine.Settings(ctx, c.userID)
			if err != nil {
				return err
			}
			var o settings.Overrides
			if cmd.Flags().Changed("period") {
				o.RSIPeriod = &period
			}
			if cmd.Flags().Changed("upper") {
				o.UpperThreshold = &upper
			}
			if cmd.Flags().Changed("lower") {
				o.LowerThreshold = &lower
			}
			st, err := o.With(base)
			if err != nil {
				return err
			}
			a, err := c.app.Engine.AnalyzeSymbol(ctx, c.userID, strings.ToUpper(args[0]), st)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), a)
			}
			printAnalysis(cmd, a)
			return nil
		},
	}
	cmd.Flags().IntVar(&period, "period", 0, "RSI period override")
	cmd.Flags().Float64Var(&upper, "upper", 0, "Upper threshold override")
	cmd.Flags().Float64Var(&lower, "lower", 0, "Lower threshold override")
	return cmd
}

func printAnalysis(cmd *cobra.Command, a *model.Analysis) {
	out := cmd.OutOrStdout()
	s := a.Statistics
	fmt.Fprintf(out, "%s  %s..%s  close %.2f  RSI(%d) %s\n",
		a.Symbol, s.DateRange.Start, s.DateRange.End, s.CurrentPrice, a.Settings.RSIPeriod, rsiText(s.CurrentRSI))
	if a.LatestSignal != nil {
		fmt.Fprintf(out, "status: %s (%s)\n", a.LatestSignal.Type, a.LatestSignal.Message)
	}
	fmt.Fprintf(out, "crossings: %d buy, %d sell\n", s.BuySignals, s.SellSignals)
	if len(a.Signals) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tPRICE\tRSI")
	for _, e := range a.Signals {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\n", e.Date, e.Type, e.Price, e.RSI)
	}
	tw.Flush()
}

func (c *cli) scanCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "scan [SYMBOL]",
		Short: "Scan one symbol, or the whole universe without an argument",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				st, err := c.app.Engine.Settings(ctx, c.userID)
				if err != nil {
					return err
				}
				r, err := c.app.Engine.ScanSymbol(ctx, c.userID, strings.ToUpper(args[0]), st)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(cmd.OutOrStdout(), r)
				}
				printScanRows(cmd, []model.ScanResult{*r}, true)
				return nil
			}

			scan, err := c.app.Engine.ScanUniverse(ctx, c.userID)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), scan)
			}
			sm := scan.Summary
			fmt.Fprintf(cmd.OutOrStdout(), "%d symbols: %d buy, %d sell, %d hold, %d neutral, %d holdings, %d failed\n",
				sm.Total, sm.Buy, sm.Sell, sm.Hold, sm.Neutral, sm.Holdings, sm.Failed)
			printScanRows(cmd, scan.Symbols, all)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "List NEUTRAL rows too")
	return cmd
}

func printScanRows(cmd *cobra.Command, rows []model.ScanResult, all bool) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tDATE\tSIGNAL\tPRICE\tRSI\tTSL\tREASON")
	for _, r := range rows {
		if !all && r.Signal == model.SignalNeutral {
			continue
		}
		tsl := "-"
		if r.OpenCycle != nil {
			tsl = fmt.Sprintf("%.2f", r.OpenCycle.TSLPrice)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			r.Symbol, r.Date, r.Signal, r.CurrentPrice, rsiText(r.CurrentRSI), tsl, r.SellReason)
	}
	tw.Flush()
}

func (c *cli) symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List symbols with price history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			syms, err := c.app.Engine.Symbols(cmd.Context())
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), syms)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(syms, "\n"))
			return nil
		},
	}
}

func rsiText(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
