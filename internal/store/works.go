package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"yunmun/api/internal/workflow"
)

const workColumns = `id, title, author_id, editor_id, status, total_chapters, created_at, updated_at, completed_at`

func scanWork(row rowScanner) (Work, error) {
	var (
		work     Work
		editorID sql.NullString
		status   string
	)
	err := row.Scan(
		&work.ID, &work.Title, &work.AuthorID, &editorID, &status, &work.TotalChapters,
		timeScanner{&work.CreatedAt}, timeScanner{&work.UpdatedAt}, nullTimeScanner{&work.CompletedAt},
	)
	if err != nil {
		return Work{}, err
	}
	work.EditorID = nullableString(editorID)
	work.Status = workflow.WorkStatus(status)
	return work, nil
}

func (q queries) GetWork(ctx context.Context, workID string) (Work, error) {
	work, err := scanWork(q.queryRow(ctx, `SELECT `+workColumns+` FROM works WHERE id=?`, workID))
	if err != nil {
		return Work{}, fmt.Errorf("get work: %w", err)
	}
	return work, nil
}

// ListWorks returns every work visible to the user: all of them for admins,
// otherwise those they author, edit, or hold an active contract on.
func (q queries) ListWorks(ctx context.Context, userID string, all bool) ([]Work, error) {
	query := `SELECT ` + workColumns + ` FROM works
		WHERE author_id=? OR editor_id=?
			OR id IN (SELECT work_id FROM contracts WHERE editor_id=? AND active=?)
		ORDER BY created_at DESC, id`
	args := []any{userID, userID, userID, true}
	if all {
		query = `SELECT ` + workColumns + ` FROM works ORDER BY created_at DESC, id`
		args = nil
	}
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	defer rows.Close()

	var works []Work
	for rows.Next() {
		work, err := scanWork(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work: %w", err)
		}
		works = append(works, work)
	}
	return works, rows.Err()
}

func (q queries) LockWork(ctx context.Context, workID string) error {
	query := `SELECT id FROM works WHERE id=?`
	if q.dialect == DialectPostgres {
		query += ` FOR UPDATE`
	}
	var id string
	if err := q.queryRow(ctx, query, workID).Scan(&id); err != nil {
		return fmt.Errorf("lock work: %w", err)
	}
	return nil
}

func (q queries) InsertWork(ctx context.Context, work Work) error {
	_, err := q.exec(ctx, `
		INSERT INTO works (id, title, author_id, editor_id, status, total_chapters, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, work.ID, work.Title, work.AuthorID, work.EditorID, string(work.Status), work.TotalChapters,
		q.timeArg(work.CreatedAt), q.timeArg(work.UpdatedAt))
	if err != nil {
		return wrapWrite("insert work", err)
	}
	return nil
}

func (q queries) UpdateWorkStatus(ctx context.Context, workID string, status workflow.WorkStatus, at time.Time) error {
	var completedAt *time.Time
	if status == workflow.WorkCompleted {
		completedAt = &at
	}
	res, err := q.exec(ctx, `UPDATE works SET status=?, completed_at=?, updated_at=? WHERE id=?`,
		string(status), q.nullTimeArg(completedAt), q.timeArg(at), workID)
	if err != nil {
		return fmt.Errorf("update work status: %w", err)
	}
	return requireRow(res, "update work status")
}

func (q queries) SetWorkEditor(ctx context.Context, workID, editorID string, at time.Time) error {
	var editor any
	if editorID != "" {
		editor = editorID
	}
	res, err := q.exec(ctx, `UPDATE works SET editor_id=?, updated_at=? WHERE id=?`, editor, q.timeArg(at), workID)
	if err != nil {
		return fmt.Errorf("set work editor: %w", err)
	}
	return requireRow(res, "set work editor")
}

func (q queries) SetWorkTotalChapters(ctx context.Context, workID string, total int, at time.Time) error {
	res, err := q.exec(ctx, `UPDATE works SET total_chapters=?, updated_at=? WHERE id=?`, total, q.timeArg(at), workID)
	if err != nil {
		return fmt.Errorf("set total chapters: %w", err)
	}
	return requireRow(res, "set total chapters")
}

// requireRow turns a write that matched nothing into sql.ErrNoRows.
func requireRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}
