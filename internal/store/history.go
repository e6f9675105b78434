package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"yunmun/api/internal/workflow"
)

const snapshotColumns = `id, chapter_id, work_id, chapter_number, type, name, status, translated_content, edited_content,
	created_by, created_at`

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var (
		snapshot   Snapshot
		kind       string
		name       sql.NullString
		status     string
		translated sql.NullString
		edited     sql.NullString
	)
	err := row.Scan(
		&snapshot.ID, &snapshot.ChapterID, &snapshot.WorkID, &snapshot.ChapterNumber, &kind, &name, &status,
		&translated, &edited, &snapshot.CreatedBy, timeScanner{&snapshot.CreatedAt},
	)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Type = SnapshotType(kind)
	snapshot.Name = nullableString(name)
	snapshot.Status = workflow.ChapterStatus(status)
	snapshot.TranslatedContent = nullableString(translated)
	snapshot.EditedContent = nullableString(edited)
	return snapshot, nil
}

func (q queries) GetSnapshot(ctx context.Context, snapshotID string) (Snapshot, error) {
	snapshot, err := scanSnapshot(q.queryRow(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id=?`, snapshotID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return snapshot, nil
}

func (q queries) ListSnapshots(ctx context.Context, chapterID string) ([]Snapshot, error) {
	rows, err := q.query(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE chapter_id=? ORDER BY created_at DESC, id DESC`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

func (q queries) InsertSnapshot(ctx context.Context, snapshot Snapshot) error {
	_, err := q.exec(ctx, `
		INSERT INTO snapshots (id, chapter_id, work_id, chapter_number, type, name, status, translated_content,
			edited_content, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snapshot.ID, snapshot.ChapterID, snapshot.WorkID, snapshot.ChapterNumber, string(snapshot.Type),
		snapshot.Name, string(snapshot.Status), snapshot.TranslatedContent, snapshot.EditedContent,
		snapshot.CreatedBy, q.timeArg(snapshot.CreatedAt))
	if err != nil {
		return wrapWrite("insert snapshot", err)
	}
	return nil
}

func (q queries) InsertActivity(ctx context.Context, activity Activity) error {
	metadata := activity.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode activity metadata: %w", err)
	}
	_, err = q.exec(ctx, `
		INSERT INTO activities (id, work_id, chapter_id, actor_id, type, summary, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, activity.ID, activity.WorkID, activity.ChapterID, activity.ActorID, string(activity.Type),
		activity.Summary, string(encoded), q.timeArg(activity.CreatedAt))
	if err != nil {
		return wrapWrite("insert activity", err)
	}
	return nil
}

// ListActivities returns the newest entries first.
func (q queries) ListActivities(ctx context.Context, workID string, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := q.query(ctx, `
		SELECT id, work_id, chapter_id, actor_id, type, summary, metadata, created_at
		FROM activities
		WHERE work_id=?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, workID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	activities := make([]Activity, 0)
	for rows.Next() {
		var (
			activity  Activity
			chapterID sql.NullString
			kind      string
			metadata  string
		)
		if err := rows.Scan(&activity.ID, &activity.WorkID, &chapterID, &activity.ActorID, &kind,
			&activity.Summary, &metadata, timeScanner{&activity.CreatedAt}); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activity.ChapterID = nullableString(chapterID)
		activity.Type = ActivityType(kind)
		activity.Metadata = map[string]any{}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &activity.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}
