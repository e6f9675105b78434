package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"yunmun/api/internal/trackchanges"
)

func newDiffCommand() *cobra.Command {
	var (
		policy   string
		asJSON   bool
		resolved bool
	)
	cmd := &cobra.Command{
		Use:         "diff BASELINE CANDIDATE",
		Short:       "Show the track-changes diff between two text files",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			candidate, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			chunks, err := trackchanges.Compute(string(baseline), string(candidate))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if resolved {
				p, err := trackchanges.ParsePolicy(policy)
				if err != nil {
					return err
				}
				fmt.Fprint(out, trackchanges.Materialize(chunks, nil, p))
				return nil
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"chunks": chunks, "stats": trackchanges.StatsOf(chunks)})
			}

			stats := trackchanges.StatsOf(chunks)
			if stats.Changes == 0 {
				fmt.Fprintln(out, "No changes")
				return nil
			}
			list := newListing("#", "Op", "Text").numeric(1)
			for _, chunk := range chunks {
				if chunk.Op != trackchanges.OpEqual {
					list.add(chunk.ID, chunk.Op, preview(chunk.Text, 60))
				}
			}
			list.print(out)
			fmt.Fprintf(out, "%d changes, +%d / -%d characters\n", stats.Changes, stats.Inserted, stats.Deleted)
			return nil
		},
	}
	cmd.Flags().StringVar(&policy, "policy", string(trackchanges.PolicyKeepEdit), "Undecided policy for --resolve: edit or original")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print chunks as JSON")
	cmd.Flags().BoolVar(&resolved, "resolve", false, "Print the merged text with every change undecided")
	return cmd
}

func preview(value string, limit int) string {
	value = strings.ReplaceAll(value, "\n", "⏎")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
