// Package main renames this template into a new project.
//
//	go run ./cmd/customize-template --name my_agent --author acme
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/observable-agent/pkg/customize"
)

func main() {
	if err := newRootCmd(".").Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(root string) *cobra.Command {
	var opts customize.Options
	var yes bool

	cmd := &cobra.Command{
		Use:           "customize-template",
		Short:         "Customize the Observable Agent Starter template for your project",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c, err := customize.New(root, opts, out)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Customizing template for: %s\n", opts.Name)
			fmt.Fprintf(out, "  Module: %s\n", opts.Module())
			fmt.Fprintf(out, "  Author: %s\n", opts.Author)
			if opts.Email != "" {
				fmt.Fprintf(out, "  Email: %s\n", opts.Email)
			}
			fmt.Fprintf(out, "  Description: %s\n\n", opts.DescriptionOrDefault())

			if !yes && !confirm(cmd.InOrStdin(), out) {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}

			if err := c.Run(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n✅ Template customized successfully!\n\n%s\n", c.NextSteps())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "Project name (lowercase, underscores allowed)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "GitHub user or organization")
	cmd.Flags().StringVar(&opts.Email, "email", "", "Author email")
	cmd.Flags().StringVar(&opts.Description, "description", "", "Short project description")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("author")
	return cmd
}

func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "Proceed with customization? [y/N]: ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
