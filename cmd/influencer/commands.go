package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/observable-agent/pkg/agent"
	"github.com/run-bigpig/observable-agent/pkg/app"
	"github.com/run-bigpig/observable-agent/pkg/influencer"
	"github.com/run-bigpig/observable-agent/pkg/influencer/tuning"
	"github.com/run-bigpig/observable-agent/pkg/llm/dummy"
)

const defaultFixture = "creator_snapshot.json"

type loader func(cmd *cobra.Command) (*app.Env, error)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func profileCmd() *cobra.Command {
	var fixture string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the context the model sees for a creator snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := influencer.LoadProfile(fixture)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), profile)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), influencer.RenderProfileContext(profile))
			return err
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", defaultFixture, "Bundled creator snapshot")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the structured profile")
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the bundled creator snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures, err := influencer.ListFixtures()
			if err != nil {
				return err
			}
			for _, f := range fixtures {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.Name, f.Label)
			}
			return nil
		},
	})
	return cmd
}

func ideasCmd(load loader) *cobra.Command {
	var (
		fixture   string
		request   string
		count     int
		variation string
		offline   bool
		guidance  string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ideas",
		Short: "Generate video ideas for a creator snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 2 || count > 5 {
				return fmt.Errorf("--count must be between 2 and 5, got %d", count)
			}
			profile, err := influencer.LoadProfile(fixture)
			if err != nil {
				return err
			}

			env, err := load(cmd)
			if err != nil {
				return err
			}
			defer env.Shutdown(cmd.Context())

			var agentOpts []agent.Option
			if offline {
				reply, err := json.Marshal(map[string]string{"response": influencer.OfflineIdeas})
				if err != nil {
					return err
				}
				agentOpts = append(agentOpts, agent.WithLLM(dummy.New(string(reply))))
			}
			base := env.NewAgent(influencer.Observation, agentOpts...)
			defer base.Flush()

			ideaOpts := []influencer.IdeaOption{influencer.WithTargetCount(count)}
			if guidance != "" {
				g, err := tuning.LoadGuidance(guidance)
				if err != nil {
					return err
				}
				ideaOpts = append(ideaOpts, influencer.WithDemos(g.Examples()...))
			}

			result := influencer.NewIdeaGenerator(base, ideaOpts...).Generate(cmd.Context(), profile, request, variation)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ideas for %s\n\n", profile.Handle)
			for i, idea := range result.Ideas {
				fmt.Fprintf(out, "%d. %s\n", i+1, idea.String())
			}
			if result.FallbackReason != "" {
				fmt.Fprintf(out, "\n(fallback: %s)\n", result.FallbackReason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", defaultFixture, "Bundled creator snapshot")
	cmd.Flags().StringVar(&request, "request", influencer.DashboardRequest, "Manager request or constraints")
	cmd.Flags().IntVar(&count, "count", influencer.DefaultTargetCount, "Number of ideas (2-5)")
	cmd.Flags().StringVar(&variation, "variation", "", "Token that nudges the model toward fresh ideas")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use a canned model reply instead of a provider")
	cmd.Flags().StringVar(&guidance, "guidance", "", "YAML guidance written by the tune command")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
