package app

import (
	"time"

	"yunmun/api/internal/store"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func workView(w store.Work) map[string]any {
	return map[string]any{
		"id":            w.ID,
		"title":         w.Title,
		"authorId":      w.AuthorID,
		"editorId":      w.EditorID,
		"status":        w.Status,
		"totalChapters": w.TotalChapters,
		"createdAt":     formatTime(w.CreatedAt),
		"updatedAt":     formatTime(w.UpdatedAt),
		"completedAt":   formatOptionalTime(w.CompletedAt),
	}
}

func chapterView(c store.Chapter) map[string]any {
	return map[string]any{
		"id":                c.ID,
		"workId":            c.WorkID,
		"number":            c.Number,
		"title":             c.Title,
		"originalContent":   c.OriginalContent,
		"translatedContent": c.TranslatedContent,
		"editedContent":     c.EditedContent,
		"status":            c.Status,
		"wordCount":         c.WordCount,
		"version":           c.Version,
		"createdAt":         formatTime(c.CreatedAt),
		"updatedAt":         formatTime(c.UpdatedAt),
	}
}

// chapterSummaryView omits the texts for list responses.
func chapterSummaryView(c store.Chapter) map[string]any {
	return map[string]any{
		"id":        c.ID,
		"number":    c.Number,
		"title":     c.Title,
		"status":    c.Status,
		"wordCount": c.WordCount,
		"version":   c.Version,
		"updatedAt": formatTime(c.UpdatedAt),
	}
}

func contractView(c store.Contract) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"workId":       c.WorkID,
		"authorId":     c.AuthorID,
		"editorId":     c.EditorID,
		"chapterStart": c.ChapterStart,
		"chapterEnd":   c.ChapterEnd,
		"range":        c.RangeLabel(),
		"active":       c.Active,
		"createdAt":    formatTime(c.CreatedAt),
		"completedAt":  formatOptionalTime(c.CompletedAt),
	}
}

func snapshotView(s store.Snapshot) map[string]any {
	return map[string]any{
		"id":                s.ID,
		"chapterId":         s.ChapterID,
		"workId":            s.WorkID,
		"chapterNumber":     s.ChapterNumber,
		"type":              s.Type,
		"name":              s.Name,
		"status":            s.Status,
		"translatedContent": s.TranslatedContent,
		"editedContent":     s.EditedContent,
		"createdBy":         s.CreatedBy,
		"createdAt":         formatTime(s.CreatedAt),
	}
}

func activityView(a store.Activity) map[string]any {
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"id":        a.ID,
		"workId":    a.WorkID,
		"chapterId": a.ChapterID,
		"actorId":   a.ActorID,
		"type":      a.Type,
		"summary":   a.Summary,
		"metadata":  metadata,
		"createdAt": formatTime(a.CreatedAt),
	}
}

func glossaryTermView(t store.GlossaryTerm) map[string]any {
	return map[string]any{
		"id":         t.ID,
		"workId":     t.WorkID,
		"original":   t.Original,
		"translated": t.Translated,
		"note":       t.Note,
		"createdAt":  formatTime(t.CreatedAt),
	}
}

func mapViews[T any](items []T, view func(T) map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return out
}
