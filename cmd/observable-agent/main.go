// Package main provides the observable-agent CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.2.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var personaFile string

	rootCmd := &cobra.Command{
		Use:           "observable-agent",
		Short:         "LLM agent with Langfuse observability",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", cmd.Name(), version)
			fmt.Fprintln(cmd.OutOrStdout(), "Ready. Add your commands to cmd/"+cmd.Name())
			return nil
		},
	}
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&personaFile, "personas", "", "YAML file with agent personas (defaults to the bundled ones)")

	rootCmd.AddCommand(routeCmd(&personaFile, false))
	rootCmd.AddCommand(routeCmd(&personaFile, true))
	rootCmd.AddCommand(serveCmd(&personaFile))
	rootCmd.AddCommand(mcpCmd(&personaFile))

	return rootCmd
}
