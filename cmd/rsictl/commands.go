package main

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BibekSapkota1/Share-Project/config"
	"github.com/BibekSapkota1/Share-Project/internal/app"
	"github.com/BibekSapkota1/Share-Project/internal/logger"
)

// cli carries the state shared by every subcommand.
type cli struct {
	userID  int64
	asJSON  bool
	verbose bool

	app *app.App
}

// newRootCmd builds the command tree. The returned func releases whatever
// the run opened and must be called after Execute, which skips post-run
// hooks on error.
func newRootCmd() (*cobra.Command, func()) {
	c := &cli{}
	root := &cobra.Command{
		Use:           "rsictl",
		Short:         "Operate the NEPSE RSI scanner from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := slog.LevelWarn
			if c.verbose {
				level = slog.LevelDebug
			}
			logger.InitTo(cmd.ErrOrStderr(), "rsictl", level)

			c.app, err = app.New(cfg, app.Options{})
			return err
		},
	}
	root.PersistentFlags().Int64VarP(&c.userID, "user", "u", 1, "User id to act as")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print JSON instead of tables")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Debug logging on stderr")

	root.AddCommand(
		c.analyzeCmd(),
		c.scanCmd(),
		c.symbolsCmd(),
		c.cyclesCmd(),
		c.performanceCmd(),
		c.buyCmd(),
		c.sellCmd(),
		c.settingsCmd(),
	)
	return root, c.close
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
