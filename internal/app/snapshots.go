package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"yunmun/api/internal/auth"
	"yunmun/api/internal/store"
	"yunmun/api/internal/util"
)

type CreateSnapshotInput struct {
	Name string `json:"name"`
}

type RestoreSnapshotInput struct {
	Version *int64 `json:"version"`
}

// CreateSnapshot saves a named MANUAL snapshot of the chapter as it is now.
func (s *Service) CreateSnapshot(ctx context.Context, actor auth.Actor, workID string, number int, input CreateSnapshotInput) (store.Snapshot, error) {
	if err := requireActor(actor); err != nil {
		return store.Snapshot{}, err
	}
	var snapshot store.Snapshot
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := loadWork(ctx, tx, actor, workID); err != nil {
			return err
		}
		chapter, err := loadChapter(ctx, tx, workID, number)
		if err != nil {
			return err
		}
		now := s.timestamp()
		var name *string
		if trimmed := strings.TrimSpace(input.Name); trimmed != "" {
			name = &trimmed
		}
		snapshot = snapshotOf(chapter, store.SnapshotManual, name, actor.UserID, now)
		if err := tx.InsertSnapshot(ctx, snapshot); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity{
			ID:        util.NewID("act"),
			WorkID:    workID,
			ChapterID: &chapter.ID,
			ActorID:   actor.UserID,
			Type:      store.ActivitySnapshotCreated,
			Summary:   fmt.Sprintf("%d화 스냅샷 저장", chapter.Number),
			Metadata:  map[string]any{"chapterNumber": chapter.Number, "snapshotId": snapshot.ID, "name": input.Name},
			CreatedAt: now,
		})
	})
	if err != nil {
		return store.Snapshot{}, err
	}
	return snapshot, nil
}

func (s *Service) ListSnapshots(ctx context.Context, actor auth.Actor, workID string, number int) ([]store.Snapshot, error) {
	chapter, err := s.GetChapter(ctx, actor, workID, number)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.store.ListSnapshots(ctx, chapter.ID)
	if err != nil {
		return nil, err
	}
	if snapshots == nil {
		snapshots = []store.Snapshot{}
	}
	return snapshots, nil
}

// RestoreSnapshot writes a snapshot's texts back through the orchestrator,
// so the same permission, contract and freshness rules apply.
func (s *Service) RestoreSnapshot(ctx context.Context, actor auth.Actor, workID string, number int, snapshotID string, input RestoreSnapshotInput) (store.Chapter, error) {
	chapter, err := s.GetChapter(ctx, actor, workID, number)
	if err != nil {
		return store.Chapter{}, err
	}
	snapshot, err := s.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Chapter{}, errNotFound("snapshot")
		}
		return store.Chapter{}, err
	}
	if snapshot.ChapterID != chapter.ID {
		return store.Chapter{}, errNotFound("snapshot")
	}

	version := chapter.Version
	if input.Version != nil {
		version = *input.Version
	}
	patch := ChapterPatch{Version: &version}
	if snapshot.TranslatedContent != nil && !sameText(chapter.TranslatedContent, snapshot.TranslatedContent) {
		patch.TranslatedContent = snapshot.TranslatedContent
	}
	if !sameText(chapter.EditedContent, snapshot.EditedContent) {
		restored := ""
		if snapshot.EditedContent != nil {
			restored = *snapshot.EditedContent
		}
		patch.EditedContent = &restored
	}
	if len(patch.fields()) == 0 {
		return chapter, nil
	}
	return s.applyMutation(ctx, actor, workID, number, patch, mutationSource{
		activity: store.ActivitySnapshotRestored,
		summary:  fmt.Sprintf("%d화 스냅샷 복원", number),
		metadata: map[string]any{"snapshotId": snapshot.ID, "snapshotType": snapshot.Type},
	})
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
