package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newChaptersCommand(ctx *commandContext) *cobra.Command {
	chaptersCmd := &cobra.Command{
		Use:   "chapters",
		Short: "Inspect chapters",
	}
	chaptersCmd.AddCommand(&cobra.Command{
		Use:   "list WORK_ID",
		Short: "List a work's chapters with status and version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			work, err := st.GetWork(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load work %s: %w", args[0], err)
			}
			chapters, err := st.ListChapters(cmd.Context(), work.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  [%s]  editor: %s\n", work.Title, work.Status, derefOr(work.EditorID, "-"))
			if len(chapters) == 0 {
				fmt.Fprintln(out, "No chapters")
				return nil
			}
			list := newListing("#", "Title", "Status", "Version", "Chars", "Updated").numeric(1, 4, 5)
			for _, ch := range chapters {
				list.add(ch.Number, preview(ch.TitleOrEmpty(), 30), ch.Status, ch.Version, ch.WordCount, formatStamp(ch.UpdatedAt))
			}
			list.print(out)
			return nil
		},
	})
	return chaptersCmd
}
