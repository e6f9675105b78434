package export

import (
	"context"
	"fmt"
	"sort"
)

type renderFunc func(ctx context.Context, html, title string) (*Result, error)

// Service renders manuscripts and optionally stores them as artifacts.
type Service struct {
	pdf       renderFunc
	docx      renderFunc
	artifacts ArtifactStore
}

type Option func(*Service)

// WithArtifacts enables Publish.
func WithArtifacts(store ArtifactStore) Option {
	return func(s *Service) {
		s.artifacts = store
	}
}

func NewService(opts ...Option) *Service {
	s := &Service{pdf: renderPDF, docx: renderDOCX}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export renders the manuscript with chapters in number order.
func (s *Service) Export(ctx context.Context, m Manuscript, format Format) (*Result, error) {
	chapters := append([]Chapter(nil), m.Chapters...)
	sort.SliceStable(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })
	m.Chapters = chapters

	html, err := RenderManuscriptHTML(m)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(m.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return s.pdf(ctx, html, m.Title)
	case FormatDOCX:
		return s.docx(ctx, html, m.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Publish exports and uploads the result under works/<workID>/.
func (s *Service) Publish(ctx context.Context, m Manuscript, format Format) (Artifact, error) {
	if s.artifacts == nil {
		return Artifact{}, ErrStorageNotConfigured
	}
	result, err := s.Export(ctx, m, format)
	if err != nil {
		return Artifact{}, err
	}
	key := fmt.Sprintf("works/%s/%s", m.WorkID, result.Filename)
	return s.artifacts.Put(ctx, key, result)
}

func (s *Service) StorageConfigured() bool {
	return s.artifacts != nil
}
