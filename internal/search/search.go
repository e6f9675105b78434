// Package search indexes chapter text in Meilisearch and falls back to a
// SQL substring match when the engine is absent or unhealthy.
package search

import (
	"context"

	"yunmun/api/internal/store"
)

// Result is a single chapter hit returned to the caller.
type Result struct {
	WorkID  string `json:"workId"`
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Query describes a search request. WorkID is always set; search never
// crosses works.
type Query struct {
	Text   string
	WorkID string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// ChapterRecord is the data we index for a chapter.
type ChapterRecord struct {
	ID      string `json:"id"`
	WorkID  string `json:"workId"`
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

// Fallback is the database search used without Meilisearch.
type Fallback interface {
	SearchChapters(ctx context.Context, workID, term string, limit int) ([]store.ChapterHit, error)
}

// RecordFromChapter picks the newest text of the chapter for indexing.
func RecordFromChapter(ch store.Chapter) ChapterRecord {
	return ChapterRecord{
		ID:      ch.ID,
		WorkID:  ch.WorkID,
		Number:  ch.Number,
		Title:   ch.TitleOrEmpty(),
		Content: ch.LatestText(),
		Status:  string(ch.Status),
	}
}
