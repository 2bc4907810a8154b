package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/settings"
)

func (c *cli) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.app.Engine.Settings(cmd.Context(), c.userID)
			if err != nil {
				return err
			}
			return c.printSettings(cmd, st)
		},
	}
	cmd.AddCommand(c.settingsSetCmd(), c.settingsResetCmd())
	return cmd
}

func (c *cli) settingsSetCmd() *cobra.Command {
	var (
		period       int
		upper, lower float64
		tslPercent   float64
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store per-user overrides; unset flags keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p settings.Patch
			if cmd.Flags().Changed("period") {
				p.RSIPeriod = &period
			}
			if cmd.Flags().Changed("upper") {
				p.UpperThreshold = &upper
			}
			if cmd.Flags().Changed("lower") {
				p.LowerThreshold = &lower
			}
			if cmd.Flags().Changed("tsl") {
				p.TSLPercent = &tslPercent
			}
			if p == (settings.Patch{}) {
				return fmt.Errorf("nothing to set: pass at least one of --period, --upper, --lower, --tsl")
			}

			ctx := cmd.Context()
			current, err := c.app.Engine.Settings(ctx, c.userID)
			if err != nil {
				return err
			}
			st, err := settings.Update(ctx, c.app.Settings, c.userID, current, p)
			if err != nil {
				return err
			}
			c.invalidate(cmd)
			return c.printSettings(cmd, st)
		},
	}
	cmd.Flags().IntVar(&period, "period", 0, "RSI period")
	cmd.Flags().Float64Var(&upper, "upper", 0, "Upper (SELL) threshold")
	cmd.Flags().Float64Var(&lower, "lower", 0, "Lower (BUY) threshold")
	cmd.Flags().Float64Var(&tslPercent, "tsl", 0, "Trailing stop distance in percent")
	return cmd
}

func (c *cli) settingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset KEY",
		Short: "Drop a per-user override: " + strings.Join(settings.Keys, ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := settings.Reset(ctx, c.app.Settings, c.userID, args[0]); err != nil {
				return err
			}
			c.invalidate(cmd)
			st, err := c.app.Engine.Settings(ctx, c.userID)
			if err != nil {
				return err
			}
			return c.printSettings(cmd, st)
		},
	}
}

func (c *cli) invalidate(cmd *cobra.Command) {
	if c.app.Cache == nil {
		return
	}
	if err := c.app.Cache.Invalidate(cmd.Context(), c.userID); err != nil {
		slog.Warn("settings cache invalidate failed", "user_id", c.userID, "err", err)
	}
}

func (c *cli) printSettings(cmd *cobra.Command, st model.Settings) error {
	if c.asJSON {
		return writeJSON(cmd.OutOrStdout(), st)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rsi_period       %d\nupper_threshold  %.2f\nlower_threshold  %.2f\ntsl_percent      %.2f\n",
		st.RSIPeriod, st.UpperThreshold, st.LowerThreshold, st.TSLFraction*100)
	return nil
}
