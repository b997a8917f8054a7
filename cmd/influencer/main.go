// Package main provides the influencer CLI: inspect creator profiles,
// generate video ideas and tune the few-shot demos behind them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/observable-agent/pkg/app"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var jsonLogs bool

	rootCmd := &cobra.Command{
		Use:           "influencer",
		Short:         "Video idea assistant for creator-led brands",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write structured JSON logs")

	load := func(cmd *cobra.Command) (*app.Env, error) {
		var options []app.Option
		if jsonLogs {
			options = append(options, app.WithJSONLogs())
		}
		return app.Load(cmd.Context(), options...)
	}

	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(ideasCmd(load))
	rootCmd.AddCommand(tuneCmd(load))
	return rootCmd
}
