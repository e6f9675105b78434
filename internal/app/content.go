package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"yunmun/api/internal/archive"
	"yunmun/api/internal/auth"
	"yunmun/api/internal/export"
	"yunmun/api/internal/glossary"
	"yunmun/api/internal/store"
	"yunmun/api/internal/util"
)

type AddGlossaryTermInput struct {
	Original   string  `json:"original"`
	Translated string  `json:"translated"`
	Note       *string `json:"note"`
}

func (s *Service) ListGlossary(ctx context.Context, actor auth.Actor, workID string) ([]glossary.Term, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := loadWork(ctx, s.store, actor, workID); err != nil {
		return nil, err
	}
	terms, err := s.glossary.Terms(ctx, workID)
	if err != nil {
		return nil, err
	}
	if terms == nil {
		terms = []glossary.Term{}
	}
	return terms, nil
}

func (s *Service) AddGlossaryTerm(ctx context.Context, actor auth.Actor, workID string, input AddGlossaryTermInput) (store.GlossaryTerm, error) {
	if err := requireActor(actor); err != nil {
		return store.GlossaryTerm{}, err
	}
	if _, err := requireEditableWork(ctx, s.store, actor, workID); err != nil {
		return store.GlossaryTerm{}, err
	}
	original := strings.TrimSpace(input.Original)
	translated := strings.TrimSpace(input.Translated)
	if original == "" || translated == "" {
		return store.GlossaryTerm{}, errBadRequest("original and translated are required")
	}

	term := store.GlossaryTerm{
		ID:         util.NewID("gls"),
		WorkID:     workID,
		Original:   original,
		Translated: translated,
		Note:       input.Note,
		CreatedAt:  s.timestamp(),
	}
	if err := s.store.InsertGlossaryTerm(ctx, term); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.GlossaryTerm{}, errConflict(fmt.Sprintf("glossary already has %q", original), nil)
		}
		return store.GlossaryTerm{}, err
	}
	s.glossary.Invalidate(ctx, workID)
	return term, nil
}

// ExportWork renders the manuscript in the requested format.
func (s *Service) ExportWork(ctx context.Context, actor auth.Actor, workID string, format export.Format) (*export.Result, error) {
	m, err := s.manuscript(ctx, actor, workID)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(ctx, m, format)
	if err != nil {
		return nil, exportError(err)
	}
	return result, nil
}

// PublishExport renders the manuscript and uploads it to object storage,
// returning a time-limited download link.
func (s *Service) PublishExport(ctx context.Context, actor auth.Actor, workID string, format export.Format) (export.Artifact, error) {
	m, err := s.manuscript(ctx, actor, workID)
	if err != nil {
		return export.Artifact{}, err
	}
	artifact, err := s.exporter.Publish(ctx, m, format)
	if err != nil {
		return export.Artifact{}, exportError(err)
	}
	return artifact, nil
}

func (s *Service) manuscript(ctx context.Context, actor auth.Actor, workID string) (export.Manuscript, error) {
	if err := requireActor(actor); err != nil {
		return export.Manuscript{}, err
	}
	work, err := loadWork(ctx, s.store, actor, workID)
	if err != nil {
		return export.Manuscript{}, err
	}
	chapters, err := s.store.ListChapters(ctx, workID)
	if err != nil {
		return export.Manuscript{}, err
	}
	authorName := work.AuthorID
	if author, err := s.store.GetUserByID(ctx, work.AuthorID); err == nil {
		authorName = author.DisplayName
	}
	return ManuscriptOf(work, authorName, chapters, s.timestamp()), nil
}

func exportError(err error) error {
	switch {
	case errors.Is(err, export.ErrUnsupportedFormat):
		return errBadRequest(err.Error())
	case errors.Is(err, export.ErrStorageNotConfigured):
		return domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "export storage is not configured", nil)
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil)
	default:
		return err
	}
}

// ArchiveHistory lists the archive commits of a completed work, newest first.
func (s *Service) ArchiveHistory(ctx context.Context, actor auth.Actor, workID string, limit int) ([]archive.CommitInfo, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := loadWork(ctx, s.store, actor, workID); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return []archive.CommitInfo{}, nil
	}
	history, err := s.archive.History(workID, limit)
	if err != nil {
		if errors.Is(err, archive.ErrNotArchived) {
			return []archive.CommitInfo{}, nil
		}
		return nil, err
	}
	return history, nil
}
