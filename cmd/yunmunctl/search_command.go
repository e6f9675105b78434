package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"yunmun/api/internal/search"
	"yunmun/api/internal/store"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Maintain the chapter search index",
	}

	var workID string
	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "Push every chapter (or one work's chapters) to Meilisearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.MeiliURL) == "" {
				return errors.New("MEILI_URL is not configured")
			}
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}

			var works []store.Work
			if workID != "" {
				work, err := st.GetWork(cmd.Context(), workID)
				if err != nil {
					return fmt.Errorf("load work %s: %w", workID, err)
				}
				works = []store.Work{work}
			} else if works, err = st.ListWorks(cmd.Context(), "", true); err != nil {
				return err
			}

			var records []search.ChapterRecord
			for _, work := range works {
				chapters, err := st.ListChapters(cmd.Context(), work.ID)
				if err != nil {
					return err
				}
				for _, ch := range chapters {
					records = append(records, search.RecordFromChapter(ch))
				}
			}

			meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, ctx.logger)
			defer meili.Close()
			if !meili.Healthy() {
				return fmt.Errorf("meilisearch at %s is not reachable", cfg.MeiliURL)
			}
			if err := search.NewService(meili, st, ctx.logger).Reindex(records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chapters from %d works\n", len(records), len(works))
			return nil
		},
	}
	reindexCmd.Flags().StringVar(&workID, "work", "", "Limit to one work")
	searchCmd.AddCommand(reindexCmd)

	return searchCmd
}
