package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"yunmun/api/internal/app"
	"yunmun/api/internal/archive"
)

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Work with the git manuscript archive",
	}
	archiveCmd.AddCommand(newArchivePublishCommand(ctx))
	archiveCmd.AddCommand(newArchiveHistoryCommand(ctx))
	archiveCmd.AddCommand(newArchiveShowCommand(ctx))
	return archiveCmd
}

func (c *commandContext) archive() (*archive.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return archive.New(cfg.ArchiveDir), nil
}

func newArchivePublishCommand(ctx *commandContext) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "publish WORK_ID",
		Short: "Commit the current manuscript of a work",
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
			repo, err := ctx.archive()
			if err != nil {
				return err
			}
			if message == "" {
				message = fmt.Sprintf("Snapshot %s (%d chapters)", work.Title, len(chapters))
			}
			commit, err := repo.Publish(app.ArchiveManuscript(work, chapters), "yunmunctl", message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", shortHash(commit.Hash), commit.Message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	return cmd
}

func newArchiveHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history WORK_ID",
		Short: "List archive commits, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := ctx.archive()
			if err != nil {
				return err
			}
			commits, err := repo.History(args[0], limit)
			if errors.Is(err, archive.ErrNotArchived) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not archived yet")
				return nil
			}
			if err != nil {
				return err
			}
			list := newListing("Commit", "When", "Author", "Message")
			for _, c := range commits {
				list.add(shortHash(c.Hash), formatStamp(c.CreatedAt), c.Author, preview(c.Message, 50))
			}
			list.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum commits to show")
	return cmd
}

func newArchiveShowCommand(ctx *commandContext) *cobra.Command {
	var revision string
	cmd := &cobra.Command{
		Use:   "show WORK_ID CHAPTER",
		Short: "Print an archived chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("chapter must be a number: %w", err)
			}
			repo, err := ctx.archive()
			if err != nil {
				return err
			}
			text, err := repo.ChapterAt(args[0], revision, number)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&revision, "rev", "", "Revision (commit hash or tag); defaults to HEAD")
	return cmd
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
