package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/mirrorperf/packages/rest"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered scenarios",
	Long: `List every scenario mirrorperf can run, with its URL, required
parameters, checks and default thresholds.

Examples:
  mirrorperf list`,
	Args: cobra.NoArgs,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	for _, s := range rest.All() {
		opts := s.Options()

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", s.Name())
		if url, ok := opts.Tags["url"]; ok {
			fmt.Fprintf(cmd.OutOrStdout(), "  url:        GET %s\n", url)
		}
		if required := s.RequiredParameters(); len(required) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  requires:   %s\n", strings.Join(required, ", "))
		}
		for _, name := range s.CheckNames() {
			fmt.Fprintf(cmd.OutOrStdout(), "  check:      %s\n", name)
		}
		if opts.Thresholds != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  thresholds: %s\n", opts.Thresholds)
		}

		var tags []string
		for k, v := range opts.Tags {
			if k != "url" {
				tags = append(tags, k+"="+v)
			}
		}
		if len(tags) > 0 {
			sort.Strings(tags)
			fmt.Fprintf(cmd.OutOrStdout(), "  tags:       %v\n", tags)
		}
	}

	return nil
}
