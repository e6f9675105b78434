package search

import (
	"context"
	"log/slog"
)

type engine interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexChapters(records []ChapterRecord) error
	DeleteChapter(id string) error
}

// Service tries Meilisearch first and falls back to the database.
type Service struct {
	engine   engine
	fallback Fallback
	logger   *slog.Logger
}

// NewService creates a search service. m may be nil if Meilisearch is not
// configured.
func NewService(m *Meili, fallback Fallback, logger *slog.Logger) *Service {
	s := &Service{fallback: fallback, logger: logger}
	if m != nil {
		s.engine = m
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) engineReady() bool {
	return s.engine != nil && s.engine.Healthy()
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.engineReady() {
		results, total, err := s.engine.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to database", "error", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	hits, err := s.fallback.SearchChapters(ctx, q.WorkID, q.Text, limit)
	if err != nil {
		s.logger.Error("database search failed", "work_id", q.WorkID, "error", err)
		return Response{Results: []Result{}, Query: q.Text}
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{WorkID: hit.WorkID, Number: hit.Number, Title: hit.Title, Snippet: hit.Snippet})
	}
	return Response{Results: results, Total: len(results), Query: q.Text}
}

// IndexChapter pushes one chapter to the engine without blocking the caller.
func (s *Service) IndexChapter(rec ChapterRecord) {
	if !s.engineReady() {
		return
	}
	go func() {
		if err := s.engine.IndexChapters([]ChapterRecord{rec}); err != nil {
			s.logger.Warn("index chapter failed", "chapter_id", rec.ID, "error", err)
		}
	}()
}

func (s *Service) DeleteChapter(id string) {
	if !s.engineReady() {
		return
	}
	go func() {
		if err := s.engine.DeleteChapter(id); err != nil {
			s.logger.Warn("delete chapter from index failed", "chapter_id", id, "error", err)
		}
	}()
}

// Reindex bulk-loads records synchronously; used by the CLI.
func (s *Service) Reindex(records []ChapterRecord) error {
	if !s.engineReady() {
		return nil
	}
	return s.engine.IndexChapters(records)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
