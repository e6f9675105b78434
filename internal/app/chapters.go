package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"yunmun/api/internal/auth"
	"yunmun/api/internal/rbac"
	"yunmun/api/internal/store"
	"yunmun/api/internal/util"
	"yunmun/api/internal/workflow"
)

// ChapterPatch is a partial chapter update. Nil fields are left alone.
// Version and UpdatedAt echo the caller's last read; on the wire the
// timestamp travels as _updatedAt.
type ChapterPatch struct {
	Title              *string                 `json:"title"`
	OriginalContent    *string                 `json:"originalContent"`
	TranslatedContent  *string                 `json:"translatedContent"`
	EditedContent      *string                 `json:"editedContent"`
	TrackChangesResult *string                 `json:"trackChangesResult"`
	Status             *workflow.ChapterStatus `json:"status"`
	UpdatedAt          *time.Time              `json:"_updatedAt"`
	Version            *int64                  `json:"version"`
}

// UnmarshalJSON also takes a bare updatedAt from older clients when
// _updatedAt is absent.
func (p *ChapterPatch) UnmarshalJSON(data []byte) error {
	type plain ChapterPatch
	var raw struct {
		plain
		LegacyUpdatedAt *time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ChapterPatch(raw.plain)
	if p.UpdatedAt == nil {
		p.UpdatedAt = raw.LegacyUpdatedAt
	}
	return nil
}

func (p ChapterPatch) fields() []workflow.Field {
	var fields []workflow.Field
	if p.Title != nil {
		fields = append(fields, workflow.FieldTitle)
	}
	if p.OriginalContent != nil {
		fields = append(fields, workflow.FieldOriginalContent)
	}
	if p.TranslatedContent != nil {
		fields = append(fields, workflow.FieldTranslatedContent)
	}
	if p.EditedContent != nil {
		fields = append(fields, workflow.FieldEditedContent)
	}
	if p.TrackChangesResult != nil {
		fields = append(fields, workflow.FieldTrackChangesResult)
	}
	return fields
}

func (p ChapterPatch) contentEdited() bool {
	return p.OriginalContent != nil || p.TranslatedContent != nil || p.EditedContent != nil
}

func (p ChapterPatch) apply(ch *store.Chapter) {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			ch.Title = nil
		} else {
			ch.Title = &title
		}
	}
	if p.OriginalContent != nil {
		ch.OriginalContent = *p.OriginalContent
		ch.WordCount = wordCount(*p.OriginalContent)
	}
	if p.TranslatedContent != nil {
		ch.TranslatedContent = p.TranslatedContent
	}
	if p.EditedContent != nil {
		ch.EditedContent = p.EditedContent
	}
	if p.TrackChangesResult != nil {
		ch.EditedContent = p.TrackChangesResult
	}
}

// mutationSource overrides the activity recorded when another operation
// funnels its write through the orchestrator.
type mutationSource struct {
	activity store.ActivityType
	summary  string
	metadata map[string]any
}

type mutationOutcome struct {
	work          store.Work
	before        store.Chapter
	after         store.Chapter
	written       bool
	statusChanged bool
	workCompleted bool
}

// ApplyChapterMutation is the single write path for chapter content and
// status. Everything it persists commits together or not at all.
func (s *Service) ApplyChapterMutation(ctx context.Context, actor auth.Actor, workID string, number int, patch ChapterPatch) (store.Chapter, error) {
	return s.applyMutation(ctx, actor, workID, number, patch, mutationSource{})
}

func (s *Service) applyMutation(ctx context.Context, actor auth.Actor, workID string, number int, patch ChapterPatch, source mutationSource) (store.Chapter, error) {
	if err := requireActor(actor); err != nil {
		return store.Chapter{}, err
	}
	if len(patch.fields()) == 0 && patch.Status == nil {
		return store.Chapter{}, errBadRequest("nothing to update")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return store.Chapter{}, errBadRequest(fmt.Sprintf("unknown status %q", string(*patch.Status)))
	}

	var out mutationOutcome
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = s.mutateChapter(ctx, tx, actor, workID, number, patch, source)
		return err
	})
	if err != nil {
		return store.Chapter{}, err
	}
	if out.written {
		s.afterChapterWrite(actor, out)
	}
	return out.after, nil
}

func (s *Service) mutateChapter(ctx context.Context, tx store.Tx, actor auth.Actor, workID string, number int, patch ChapterPatch, source mutationSource) (mutationOutcome, error) {
	work, err := tx.GetWork(ctx, workID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mutationOutcome{}, errNotFound("work")
		}
		return mutationOutcome{}, err
	}
	before, err := loadChapter(ctx, tx, workID, number)
	if err != nil {
		return mutationOutcome{}, err
	}
	if err := authorizeWork(ctx, tx, actor, work); err != nil {
		return mutationOutcome{}, err
	}
	if actor.Role == rbac.RoleEditor {
		if err := checkContract(ctx, tx, actor, workID, number); err != nil {
			return mutationOutcome{}, err
		}
	}

	freshness := workflow.Freshness{ExpectedVersion: patch.Version, LastSeen: patch.UpdatedAt}
	if err := freshness.Check(before.Version, before.UpdatedAt); err != nil {
		return mutationOutcome{}, staleChapter(before)
	}

	fields := patch.fields()
	for _, field := range fields {
		if !workflow.CanEditChapterField(actor.Role, field) {
			return mutationOutcome{}, errForbidden(fmt.Sprintf("%s may not change %s", actor.Role, field), map[string]any{"field": field})
		}
	}
	contentEdited := patch.contentEdited()
	if contentEdited && !workflow.CanEditChapterContent(actor.Role, before.Status) {
		return mutationOutcome{}, errForbidden(
			fmt.Sprintf("%s cannot edit chapter content while it is %s", actor.Role, before.Status),
			map[string]any{"status": before.Status},
		)
	}
	if patch.TrackChangesResult != nil && !workflow.CanApplyTrackChanges(actor.Role, before.Status) {
		return mutationOutcome{}, errForbidden(
			fmt.Sprintf("%s cannot apply track changes while the chapter is %s", actor.Role, before.Status),
			map[string]any{"status": before.Status},
		)
	}

	target := before.Status
	if patch.Status != nil {
		target = *patch.Status
	}
	autoPromoted := false
	if promoted, fired := workflow.AutoPromoteOnEditorEdit(actor.Role, before.Status, contentEdited || patch.TrackChangesResult != nil); fired && target == before.Status {
		target = promoted
		autoPromoted = true
	}
	if err := workflow.ValidateTransition(actor.Role, before.Status, target); err != nil {
		return mutationOutcome{}, errForbidden(err.Error(), map[string]any{
			"from":    before.Status,
			"to":      target,
			"allowed": workflow.AllowedTransitions(actor.Role, before.Status),
		})
	}

	statusChanged := target != before.Status
	if len(fields) == 0 && !statusChanged {
		return mutationOutcome{work: work, before: before, after: before}, nil
	}

	now := s.timestamp()
	after := before
	patch.apply(&after)
	after.Status = target
	after.Version = before.Version + 1
	after.UpdatedAt = now
	if err := tx.UpdateChapter(ctx, after, before.Version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			current, readErr := tx.GetChapter(ctx, workID, number)
			if readErr != nil {
				return mutationOutcome{}, errConflict("chapter was modified by someone else", nil)
			}
			return mutationOutcome{}, staleChapter(current)
		}
		return mutationOutcome{}, err
	}

	snapshotType := store.SnapshotAutoSave
	if statusChanged {
		snapshotType = store.SnapshotStatusChange
	}
	if err := tx.InsertSnapshot(ctx, snapshotOf(after, snapshotType, nil, actor.UserID, now)); err != nil {
		return mutationOutcome{}, err
	}

	activity := mutationActivity(actor, after, before.Status, fields, autoPromoted, source, now)
	if err := tx.InsertActivity(ctx, activity); err != nil {
		return mutationOutcome{}, err
	}

	out := mutationOutcome{work: work, before: before, after: after, written: true, statusChanged: statusChanged}
	if statusChanged {
		completed, err := s.syncWorkStatus(ctx, tx, actor, work, target, now)
		if err != nil {
			return mutationOutcome{}, err
		}
		out.workCompleted = completed
	}
	return out, nil
}

// checkContract requires an active contract for the editor whose range
// covers number.
func checkContract(ctx context.Context, r store.Reader, actor auth.Actor, workID string, number int) error {
	contract, err := r.ActiveContract(ctx, workID, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errForbidden("no active contract for this work", nil)
		}
		return err
	}
	if !contract.Covers(number) {
		return errForbidden(
			fmt.Sprintf("chapter %d is outside your contract range %s", number, contract.RangeLabel()),
			map[string]any{"chapterStart": contract.ChapterStart, "chapterEnd": contract.ChapterEnd},
		)
	}
	return nil
}

func staleChapter(current store.Chapter) *DomainError {
	return errConflict("chapter was modified by someone else", map[string]any{
		"currentVersion": current.Version,
		"updatedAt":      current.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func snapshotOf(ch store.Chapter, kind store.SnapshotType, name *string, actorID string, at time.Time) store.Snapshot {
	return store.Snapshot{
		ID:                util.NewID("snap"),
		ChapterID:         ch.ID,
		WorkID:            ch.WorkID,
		ChapterNumber:     ch.Number,
		Type:              kind,
		Name:              name,
		Status:            ch.Status,
		TranslatedContent: ch.TranslatedContent,
		EditedContent:     ch.EditedContent,
		CreatedBy:         actorID,
		CreatedAt:         at,
	}
}

func mutationActivity(actor auth.Actor, ch store.Chapter, from workflow.ChapterStatus, fields []workflow.Field, autoPromoted bool, source mutationSource, at time.Time) store.Activity {
	metadata := map[string]any{
		"chapterNumber": ch.Number,
		"version":       ch.Version,
	}
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for _, f := range fields {
			names = append(names, string(f))
		}
		metadata["fields"] = names
	}

	activity := store.Activity{
		ID:        util.NewID("act"),
		WorkID:    ch.WorkID,
		ChapterID: &ch.ID,
		ActorID:   actor.UserID,
		CreatedAt: at,
	}
	switch {
	case from != ch.Status:
		activity.Type = store.ActivityStatusChanged
		activity.Summary = fmt.Sprintf("%d화 상태 변경: %s → %s", ch.Number, from, ch.Status)
		metadata["from"] = from
		metadata["to"] = ch.Status
		if autoPromoted {
			metadata["autoPromoted"] = true
		}
	case containsField(fields, workflow.FieldTrackChangesResult):
		activity.Type = store.ActivityChangeAccepted
		activity.Summary = fmt.Sprintf("%d화 수정 사항 반영", ch.Number)
	default:
		activity.Type = store.ActivityEditMade
		activity.Summary = fmt.Sprintf("%d화 편집", ch.Number)
	}
	if source.activity != "" && from == ch.Status {
		activity.Type = source.activity
		if source.summary != "" {
			activity.Summary = source.summary
		}
	}
	for k, v := range source.metadata {
		metadata[k] = v
	}
	activity.Metadata = metadata
	return activity
}

func containsField(fields []workflow.Field, want workflow.Field) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}

// syncWorkStatus moves the work along with a chapter that just changed
// status and reports whether the work was completed by it.
func (s *Service) syncWorkStatus(ctx context.Context, tx store.Tx, actor auth.Actor, work store.Work, chapterStatus workflow.ChapterStatus, at time.Time) (bool, error) {
	if chapterStatus == workflow.StatusApproved {
		return s.completeWorkIfReady(ctx, tx, actor, work, at)
	}
	next := workflow.WorkStatusAfter(work.Status, chapterStatus)
	if next == work.Status {
		return false, nil
	}
	if err := tx.UpdateWorkStatus(ctx, work.ID, next, at); err != nil {
		return false, err
	}
	return false, nil
}

// completeWorkIfReady marks the work COMPLETED when no contract is active
// and every chapter is APPROVED. The work row is locked first so two final
// approvals cannot both miss each other.
func (s *Service) completeWorkIfReady(ctx context.Context, tx store.Tx, actor auth.Actor, work store.Work, at time.Time) (bool, error) {
	if work.Status == workflow.WorkCompleted {
		return false, nil
	}
	if err := tx.LockWork(ctx, work.ID); err != nil {
		return false, err
	}
	active, err := tx.HasActiveContract(ctx, work.ID)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}
	total, err := tx.CountChapters(ctx, work.ID)
	if err != nil {
		return false, err
	}
	remaining, err := tx.CountChaptersNotInStatus(ctx, work.ID, workflow.StatusApproved)
	if err != nil {
		return false, err
	}
	if total == 0 || remaining > 0 {
		return false, nil
	}
	if err := tx.UpdateWorkStatus(ctx, work.ID, workflow.WorkCompleted, at); err != nil {
		return false, err
	}
	err = tx.InsertActivity(ctx, store.Activity{
		ID:        util.NewID("act"),
		WorkID:    work.ID,
		ActorID:   actor.UserID,
		Type:      store.ActivityWorkCompleted,
		Summary:   fmt.Sprintf("「%s」 윤문 완료", work.Title),
		Metadata:  map[string]any{"totalChapters": total},
		CreatedAt: at,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateChapterInput is the body of a chapter upload.
type CreateChapterInput struct {
	Number            int     `json:"number"`
	Title             *string `json:"title"`
	OriginalContent   string  `json:"originalContent"`
	TranslatedContent *string `json:"translatedContent"`
}

func (s *Service) CreateChapter(ctx context.Context, actor auth.Actor, workID string, input CreateChapterInput) (store.Chapter, error) {
	if err := requireActor(actor); err != nil {
		return store.Chapter{}, err
	}
	if input.Number < 0 {
		return store.Chapter{}, errBadRequest("chapter number must not be negative")
	}
	if strings.TrimSpace(input.OriginalContent) == "" {
		return store.Chapter{}, errBadRequest("originalContent is required")
	}

	now := s.timestamp()
	chapter := store.Chapter{
		ID:              util.NewID("ch"),
		WorkID:          workID,
		Number:          input.Number,
		OriginalContent: input.OriginalContent,
		Status:          workflow.StatusPending,
		WordCount:       wordCount(input.OriginalContent),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	ChapterPatch{Title: input.Title}.apply(&chapter)
	if input.TranslatedContent != nil && strings.TrimSpace(*input.TranslatedContent) != "" {
		chapter.TranslatedContent = input.TranslatedContent
		chapter.Status = workflow.StatusTranslated
	}

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		work, err := requireEditableWork(ctx, tx, actor, workID)
		if err != nil {
			return err
		}
		if err := tx.InsertChapter(ctx, chapter); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errConflict(fmt.Sprintf("chapter %d already exists", input.Number), map[string]any{"number": input.Number})
			}
			return err
		}
		if err := recountChapters(ctx, tx, workID, now); err != nil {
			return err
		}
		if next := workflow.WorkStatusAfter(work.Status, chapter.Status); next != work.Status {
			if err := tx.UpdateWorkStatus(ctx, workID, next, now); err != nil {
				return err
			}
		}
		return tx.InsertActivity(ctx, store.Activity{
			ID:        util.NewID("act"),
			WorkID:    workID,
			ChapterID: &chapter.ID,
			ActorID:   actor.UserID,
			Type:      store.ActivityChapterCreated,
			Summary:   fmt.Sprintf("%d화 등록", chapter.Number),
			Metadata:  map[string]any{"chapterNumber": chapter.Number, "status": chapter.Status},
			CreatedAt: now,
		})
	})
	if err != nil {
		return store.Chapter{}, err
	}
	s.search.IndexChapter(searchRecord(chapter))
	return chapter, nil
}

// DeleteChapter removes a chapter and keeps the work's chapter total equal
// to the rows that remain.
func (s *Service) DeleteChapter(ctx context.Context, actor auth.Actor, workID string, number int) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	var deleted store.Chapter
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireEditableWork(ctx, tx, actor, workID); err != nil {
			return err
		}
		chapter, err := loadChapter(ctx, tx, workID, number)
		if err != nil {
			return err
		}
		if err := tx.DeleteChapter(ctx, chapter.ID); err != nil {
			return err
		}
		now := s.timestamp()
		if err := recountChapters(ctx, tx, workID, now); err != nil {
			return err
		}
		deleted = chapter
		return tx.InsertActivity(ctx, store.Activity{
			ID:        util.NewID("act"),
			WorkID:    workID,
			ChapterID: &chapter.ID,
			ActorID:   actor.UserID,
			Type:      store.ActivityChapterDeleted,
			Summary:   fmt.Sprintf("%d화 삭제", chapter.Number),
			Metadata:  map[string]any{"chapterNumber": chapter.Number},
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	s.search.DeleteChapter(deleted.ID)
	return nil
}

func recountChapters(ctx context.Context, tx store.Tx, workID string, at time.Time) error {
	total, err := tx.CountChapters(ctx, workID)
	if err != nil {
		return err
	}
	return tx.SetWorkTotalChapters(ctx, workID, total, at)
}

// wordCount counts the non-space characters of a text.
func wordCount(text string) int {
	count := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count
}
