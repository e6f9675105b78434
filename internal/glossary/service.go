package glossary

import (
	"context"
	"log/slog"

	"yunmun/api/internal/store"
	"yunmun/api/internal/translator"
)

// Source loads glossary rows from the database.
type Source interface {
	ListGlossaryTerms(ctx context.Context, workID string) ([]store.GlossaryTerm, error)
}

// Cache is implemented by RedisCache.
type Cache interface {
	Get(ctx context.Context, workID string) ([]Term, bool, error)
	Set(ctx context.Context, workID string, terms []Term) error
	Invalidate(ctx context.Context, workID string) error
}

type Service struct {
	source Source
	cache  Cache
	logger *slog.Logger
}

// NewService builds a glossary service. A nil cache reads straight from
// the source.
func NewService(source Source, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: cache, logger: logger}
}

// Terms returns the work's glossary. Cache failures degrade to a direct
// read and are only logged.
func (s *Service) Terms(ctx context.Context, workID string) ([]Term, error) {
	if s.cache != nil {
		terms, ok, err := s.cache.Get(ctx, workID)
		if err != nil {
			s.logger.Warn("glossary cache read failed", "work_id", workID, "error", err)
		} else if ok {
			return terms, nil
		}
	}

	rows, err := s.source.ListGlossaryTerms(ctx, workID)
	if err != nil {
		return nil, err
	}
	terms := FromRows(rows)

	if s.cache != nil {
		if err := s.cache.Set(ctx, workID, terms); err != nil {
			s.logger.Warn("glossary cache write failed", "work_id", workID, "error", err)
		}
	}
	return terms, nil
}

func (s *Service) Invalidate(ctx context.Context, workID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, workID); err != nil {
		s.logger.Warn("glossary cache invalidate failed", "work_id", workID, "error", err)
	}
}

func FromRows(rows []store.GlossaryTerm) []Term {
	terms := make([]Term, 0, len(rows))
	for _, row := range rows {
		term := Term{Original: row.Original, Translated: row.Translated}
		if row.Note != nil {
			term.Note = *row.Note
		}
		terms = append(terms, term)
	}
	return terms
}

// Pairs converts terms into the translator prompt form.
func Pairs(terms []Term) []translator.GlossaryPair {
	pairs := make([]translator.GlossaryPair, 0, len(terms))
	for _, term := range terms {
		pairs = append(pairs, translator.GlossaryPair{Original: term.Original, Translated: term.Translated})
	}
	return pairs
}
