package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/observable-agent/pkg/app"
	"github.com/run-bigpig/observable-agent/pkg/influencer"
	"github.com/run-bigpig/observable-agent/pkg/mcp"
	"github.com/run-bigpig/observable-agent/pkg/routing"
	"github.com/run-bigpig/observable-agent/pkg/server"
)

// exampleRequest is routed when no text is given
const exampleRequest = "The invoice shows an extra fee on my account."

func loadEnv(cmd *cobra.Command, personaFile string, options ...app.Option) (*app.Env, error) {
	if personaFile != "" {
		options = append(options, app.WithPersonaFile(personaFile))
	}
	return app.Load(cmd.Context(), options...)
}

func newRouter(env *app.Env, triage bool) *routing.Router {
	if triage {
		base := env.NewAgent(routing.TriageObservation)
		return routing.NewTriageAgent(base, routing.WithGuardrails(routing.DefaultGuardrails(base)))
	}
	base := env.NewAgent(routing.RoutingObservation)
	return routing.NewRoutingAgent(base, routing.WithGuardrails(routing.DefaultGuardrails(base)))
}

func routeCmd(personaFile *string, triage bool) *cobra.Command {
	use, short := "route [text]", "Route a support request to billing, tech or sales"
	if triage {
		use, short = "triage [text]", "Neutrally triage a support ticket"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				text = exampleRequest
			}

			env, err := loadEnv(cmd, *personaFile)
			if err != nil {
				return err
			}
			defer env.Shutdown(cmd.Context())

			router := newRouter(env, triage)
			defer router.Flush()

			result, err := router.Route(cmd.Context(), text)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func serveCmd(personaFile *string) *cobra.Command {
	var port int
	var jsonLogs bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agents over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			var options []app.Option
			if jsonLogs {
				options = append(options, app.WithJSONLogs())
			}
			env, err := loadEnv(cmd, *personaFile, options...)
			if err != nil {
				return err
			}
			defer env.Shutdown(cmd.Context())

			if port == 0 {
				port = env.Config.Server.Port
			}
			router := newRouter(env, false)
			ideas := env.NewAgent(influencer.Observation)
			defer router.Flush()
			defer ideas.Flush()

			srv := server.New(
				server.WithRouter(router),
				server.WithIdeaAgent(ideas),
				server.WithLogger(env.Logger),
				server.WithOTel(env.OTel),
			)
			return srv.ListenAndServe(cmd.Context(), fmt.Sprintf(":%d", port))
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (defaults to PORT or 8000)")
	cmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "Write structured JSON logs")
	return cmd
}

func mcpCmd(personaFile *string) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the agents as MCP tools over stdio or HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd, *personaFile)
			if err != nil {
				return err
			}
			defer env.Shutdown(cmd.Context())

			tools := &mcp.Tools{
				Router:    newRouter(env, false),
				Triage:    newRouter(env, true),
				IdeaAgent: env.NewAgent(influencer.Observation),
				Logger:    env.Logger,
			}
			defer tools.Router.Flush()
			defer tools.Triage.Flush()
			defer tools.IdeaAgent.Flush()

			return mcp.Serve(cmd.Context(), tools, httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve over HTTP on this address (e.g. :8083) instead of stdio")
	return cmd
}
