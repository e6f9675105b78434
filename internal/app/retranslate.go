package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"yunmun/api/internal/auth"
	"yunmun/api/internal/glossary"
	"yunmun/api/internal/rbac"
	"yunmun/api/internal/store"
	"yunmun/api/internal/translator"
	"yunmun/api/internal/util"
	"yunmun/api/internal/workflow"
)

type RetranslateInput struct {
	Feedback     string  `json:"feedback"`
	SelectedText *string `json:"selectedText"`
}

// RetranslateChapter asks the translator for a new draft and replaces the
// chapter's translation with it. The model call happens outside the
// transaction; the write re-checks the version read before the call.
func (s *Service) RetranslateChapter(ctx context.Context, actor auth.Actor, workID string, number int, input RetranslateInput) (store.Chapter, error) {
	if err := requireActor(actor); err != nil {
		return store.Chapter{}, err
	}
	feedback := strings.TrimSpace(input.Feedback)
	if feedback == "" {
		return store.Chapter{}, errBadRequest("feedback is required")
	}

	work, err := loadWork(ctx, s.store, actor, workID)
	if err != nil {
		return store.Chapter{}, err
	}
	if actor.Role != rbac.RoleAuthor || work.AuthorID != actor.UserID {
		return store.Chapter{}, errForbidden("only the author may request a retranslation", nil)
	}
	chapter, err := loadChapter(ctx, s.store, workID, number)
	if err != nil {
		return store.Chapter{}, err
	}
	if chapter.Status == workflow.StatusEdited || chapter.Status == workflow.StatusApproved {
		return store.Chapter{}, errBadRequest("윤문 완료된 회차는 재번역할 수 없습니다")
	}
	if chapter.TranslatedContent == nil || strings.TrimSpace(*chapter.TranslatedContent) == "" {
		return store.Chapter{}, errBadRequest("chapter has no translation to revise")
	}

	terms, err := s.glossary.Terms(ctx, workID)
	if err != nil {
		s.logger.Warn("glossary unavailable for retranslation", "work_id", workID, "error", err)
		terms = nil
	}
	req := translator.Request{
		OriginalText:       chapter.OriginalContent,
		CurrentTranslation: *chapter.TranslatedContent,
		Feedback:           feedback,
		Glossary:           glossary.Pairs(terms),
	}
	if input.SelectedText != nil {
		req.SelectedText = *input.SelectedText
	}
	translated, err := s.translate(ctx, req)
	if err != nil {
		s.logger.Error("retranslation failed", "work_id", workID, "chapter", number, "error", err)
		return store.Chapter{}, domainError(http.StatusBadGateway, CodeTranslationFailed, "translation service failed", nil)
	}

	var updated store.Chapter
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		current, err := loadChapter(ctx, tx, workID, number)
		if err != nil {
			return err
		}
		if current.Version != chapter.Version {
			return staleChapter(current)
		}
		now := s.timestamp()
		if err := tx.InsertSnapshot(ctx, snapshotOf(current, store.SnapshotPreRetranslate, nil, actor.UserID, now)); err != nil {
			return err
		}

		next := current
		next.TranslatedContent = &translated
		next.EditedContent = nil
		next.Status = workflow.StatusTranslated
		next.Version = current.Version + 1
		next.UpdatedAt = now
		if err := tx.UpdateChapter(ctx, next, current.Version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				return staleChapter(current)
			}
			return err
		}

		metadata := map[string]any{
			"chapterNumber": next.Number,
			"version":       next.Version,
			"feedback":      feedback,
			"glossaryTerms": len(terms),
		}
		if current.Status != next.Status {
			metadata["from"] = current.Status
			metadata["to"] = next.Status
		}
		if err := tx.InsertActivity(ctx, store.Activity{
			ID:        util.NewID("act"),
			WorkID:    workID,
			ChapterID: &next.ID,
			ActorID:   actor.UserID,
			Type:      store.ActivityRetranslated,
			Summary:   fmt.Sprintf("%d화 재번역", next.Number),
			Metadata:  metadata,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if workStatus := workflow.WorkStatusAfter(work.Status, next.Status); workStatus != work.Status {
			if err := tx.UpdateWorkStatus(ctx, workID, workStatus, now); err != nil {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return store.Chapter{}, err
	}
	s.search.IndexChapter(searchRecord(updated))
	return updated, nil
}

func (s *Service) translate(ctx context.Context, req translator.Request) (string, error) {
	if s.translator == nil || !s.translator.IsConfigured() {
		return "", translator.ErrNotConfigured
	}
	return s.translator.Retranslate(ctx, req)
}
