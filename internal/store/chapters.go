package store

import (
	"context"
	"database/sql"
	"fmt"

	"yunmun/api/internal/workflow"
)

const chapterColumns = `id, work_id, number, title, original_content, translated_content, edited_content,
	status, word_count, version, created_at, updated_at`

func scanChapter(row rowScanner) (Chapter, error) {
	var (
		chapter    Chapter
		title      sql.NullString
		translated sql.NullString
		edited     sql.NullString
		status     string
	)
	err := row.Scan(
		&chapter.ID, &chapter.WorkID, &chapter.Number, &title, &chapter.OriginalContent, &translated, &edited,
		&status, &chapter.WordCount, &chapter.Version,
		timeScanner{&chapter.CreatedAt}, timeScanner{&chapter.UpdatedAt},
	)
	if err != nil {
		return Chapter{}, err
	}
	chapter.Title = nullableString(title)
	chapter.TranslatedContent = nullableString(translated)
	chapter.EditedContent = nullableString(edited)
	chapter.Status = workflow.ChapterStatus(status)
	return chapter, nil
}

func (q queries) GetChapter(ctx context.Context, workID string, number int) (Chapter, error) {
	chapter, err := scanChapter(q.queryRow(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE work_id=? AND number=?`, workID, number))
	if err != nil {
		return Chapter{}, fmt.Errorf("get chapter: %w", err)
	}
	return chapter, nil
}

func (q queries) ListChapters(ctx context.Context, workID string) ([]Chapter, error) {
	rows, err := q.query(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE work_id=? ORDER BY number`, workID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	chapters := make([]Chapter, 0)
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		chapters = append(chapters, chapter)
	}
	return chapters, rows.Err()
}

func (q queries) InsertChapter(ctx context.Context, chapter Chapter) error {
	_, err := q.exec(ctx, `
		INSERT INTO chapters (id, work_id, number, title, original_content, translated_content, edited_content,
			status, word_count, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, chapter.ID, chapter.WorkID, chapter.Number, chapter.Title, chapter.OriginalContent,
		chapter.TranslatedContent, chapter.EditedContent, string(chapter.Status), chapter.WordCount,
		chapter.Version, q.timeArg(chapter.CreatedAt), q.timeArg(chapter.UpdatedAt))
	if err != nil {
		return wrapWrite("insert chapter", err)
	}
	return nil
}

// UpdateChapter writes every mutable column, predicated on the version the
// caller read. The chapter's Version must already be the new version.
func (q queries) UpdateChapter(ctx context.Context, chapter Chapter, expectedVersion int64) error {
	res, err := q.exec(ctx, `
		UPDATE chapters
		SET title=?, original_content=?, translated_content=?, edited_content=?, status=?,
			word_count=?, version=?, updated_at=?
		WHERE id=? AND version=?
	`, chapter.Title, chapter.OriginalContent, chapter.TranslatedContent, chapter.EditedContent,
		string(chapter.Status), chapter.WordCount, chapter.Version, q.timeArg(chapter.UpdatedAt),
		chapter.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update chapter rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update chapter %s: %w", chapter.ID, ErrVersionConflict)
	}
	return nil
}

func (q queries) DeleteChapter(ctx context.Context, chapterID string) error {
	res, err := q.exec(ctx, `DELETE FROM chapters WHERE id=?`, chapterID)
	if err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return requireRow(res, "delete chapter")
}

func (q queries) CountChapters(ctx context.Context, workID string) (int, error) {
	var count int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM chapters WHERE work_id=?`, workID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chapters: %w", err)
	}
	return count, nil
}

func (q queries) CountChaptersNotInStatus(ctx context.Context, workID string, status workflow.ChapterStatus) (int, error) {
	var count int
	err := q.queryRow(ctx, `SELECT COUNT(*) FROM chapters WHERE work_id=? AND status<>?`, workID, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chapters not %s: %w", status, err)
	}
	return count, nil
}

// SearchChapters is the substring fallback used when no search engine is
// configured. Matches title, translation and edited text.
func (q queries) SearchChapters(ctx context.Context, workID, term string, limit int) ([]ChapterHit, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(term) + "%"
	rows, err := q.query(ctx, `
		SELECT work_id, number, COALESCE(title, ''), COALESCE(edited_content, translated_content, original_content)
		FROM chapters
		WHERE work_id=?
			AND (LOWER(COALESCE(title, '')) LIKE LOWER(?) ESCAPE '\'
				OR LOWER(COALESCE(translated_content, '')) LIKE LOWER(?) ESCAPE '\'
				OR LOWER(COALESCE(edited_content, '')) LIKE LOWER(?) ESCAPE '\')
		ORDER BY number
		LIMIT ?
	`, workID, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search chapters: %w", err)
	}
	defer rows.Close()

	hits := make([]ChapterHit, 0)
	for rows.Next() {
		var hit ChapterHit
		var body string
		if err := rows.Scan(&hit.WorkID, &hit.Number, &hit.Title, &body); err != nil {
			return nil, fmt.Errorf("scan chapter hit: %w", err)
		}
		hit.Snippet = snippetAround(body, term, 80)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
