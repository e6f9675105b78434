package app

import (
	"context"
	"fmt"

	"yunmun/api/internal/auth"
	"yunmun/api/internal/email"
	"yunmun/api/internal/search"
	"yunmun/api/internal/store"
	"yunmun/api/internal/workflow"
)

func searchRecord(ch store.Chapter) search.ChapterRecord {
	return search.RecordFromChapter(ch)
}

// afterChapterWrite runs the side effects of a committed chapter write.
// None of them can fail the request.
func (s *Service) afterChapterWrite(actor auth.Actor, out mutationOutcome) {
	s.search.IndexChapter(searchRecord(out.after))

	if out.statusChanged && out.after.Status == workflow.StatusEdited {
		work, chapter := out.work, out.after
		s.goBackground(func(ctx context.Context) {
			s.notifyChapterReady(ctx, actor, work, chapter)
		})
	}
	if out.workCompleted {
		workID := out.work.ID
		s.goBackground(func(ctx context.Context) {
			s.publishCompletedWork(ctx, actor, workID)
		})
	}
}

func (s *Service) notifyChapterReady(ctx context.Context, actor auth.Actor, work store.Work, chapter store.Chapter) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	author, err := s.store.GetUserByID(ctx, work.AuthorID)
	if err != nil {
		s.logger.Warn("chapter ready notification skipped", "work_id", work.ID, "author_id", work.AuthorID, "error", err)
		return
	}
	editorName := actor.Name
	if editorName == "" {
		editorName = actor.UserID
	}
	err = s.mailer.SendChapterReady(author.Email, email.ChapterReadyData{
		RecipientName: author.DisplayName,
		WorkTitle:     work.Title,
		ChapterNumber: chapter.Number,
		EditorName:    editorName,
	})
	if err != nil {
		s.logger.Error("send chapter ready email failed", "work_id", work.ID, "chapter", chapter.Number, "error", err)
	}
}

// publishCompletedWork archives the finished manuscript and tells the
// author. It reads the committed state, not the in-flight transaction.
func (s *Service) publishCompletedWork(ctx context.Context, actor auth.Actor, workID string) {
	work, err := s.store.GetWork(ctx, workID)
	if err != nil {
		s.logger.Error("load completed work failed", "work_id", workID, "error", err)
		return
	}
	chapters, err := s.store.ListChapters(ctx, workID)
	if err != nil {
		s.logger.Error("load completed chapters failed", "work_id", workID, "error", err)
		return
	}

	archiveRef := ""
	if s.archive != nil {
		commit, err := s.archive.Publish(ArchiveManuscript(work, chapters), actor.UserID,
			fmt.Sprintf("Complete %s (%d chapters)", work.Title, len(chapters)))
		if err != nil {
			s.logger.Error("archive completed work failed", "work_id", workID, "error", err)
		} else {
			archiveRef = commit.Hash
			if work.CompletedAt != nil {
				tag := "completed-" + work.CompletedAt.UTC().Format("20060102T150405")
				if err := s.archive.Tag(workID, tag); err != nil {
					s.logger.Warn("tag archive failed", "work_id", workID, "tag", tag, "error", err)
				}
			}
			s.logger.Info("work archived", "work_id", workID, "commit", commit.Hash)
		}
	}

	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	author, err := s.store.GetUserByID(ctx, work.AuthorID)
	if err != nil {
		s.logger.Warn("completion notification skipped", "work_id", workID, "author_id", work.AuthorID, "error", err)
		return
	}
	err = s.mailer.SendWorkCompleted(author.Email, email.WorkCompletedData{
		RecipientName: author.DisplayName,
		WorkTitle:     work.Title,
		ChapterCount:  len(chapters),
		ArchiveRef:    archiveRef,
	})
	if err != nil {
		s.logger.Error("send completion email failed", "work_id", workID, "error", err)
	}
}
