// Ormkit evaluates search domains and relational commands over JSON records.
//
// Records are read as a JSON stream from stdin and results are written as JSON lines to stdout.
// Logs go to stderr, configured by ORMKIT_LOG_LEVEL and ORMKIT_LOG_FMT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/birdie-ai/ormkit/slog"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ormkit",
		Short: "Search domains and relational commands over JSON records",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := slog.LoadConfig("ORMKIT")
			if err != nil {
				return err
			}
			h, err := slog.NewHandler(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}
			cmd.SetContext(slog.NewContext(cmd.Context(), slog.New(h)))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFilterCmd(), newApplyCmd(), newSearchCmd())
	return root
}
