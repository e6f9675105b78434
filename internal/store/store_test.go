package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"yunmun/api/internal/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DialectSQLite, filepath.Join(t.TempDir(), "yunmun.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(ctx, db, DialectSQLite); err != nil {
		t.Fatalf("ApplyMigrations() error = %v", err)
	}
	return New(db, DialectSQLite)
}

var fixtureTime = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func strPtr(v string) *string { return &v }

func seedWork(t *testing.T, s *Store, id string) Work {
	t.Helper()
	work := Work{
		ID:        id,
		Title:     "달빛 항해",
		AuthorID:  "author-1",
		Status:    workflow.WorkTranslating,
		CreatedAt: fixtureTime,
		UpdatedAt: fixtureTime,
	}
	if err := s.WithinTx(context.Background(), func(tx Tx) error { return tx.InsertWork(context.Background(), work) }); err != nil {
		t.Fatalf("InsertWork() error = %v", err)
	}
	return work
}

func seedChapter(t *testing.T, s *Store, workID string, number int, status workflow.ChapterStatus) Chapter {
	t.Helper()
	chapter := Chapter{
		ID:                workID + "-ch-" + string(rune('a'+number)),
		WorkID:            workID,
		Number:            number,
		OriginalContent:   "原文",
		TranslatedContent: strPtr("번역문"),
		Status:            status,
		WordCount:         2,
		Version:           1,
		CreatedAt:         fixtureTime,
		UpdatedAt:         fixtureTime,
	}
	if err := s.InsertChapter(context.Background(), chapter); err != nil {
		t.Fatalf("InsertChapter() error = %v", err)
	}
	return chapter
}

func TestApplyMigrationsIsIdempotentAndReversible(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := ApplyMigrations(ctx, s.DB(), DialectSQLite); err != nil {
		t.Fatalf("second ApplyMigrations() error = %v", err)
	}
	if err := RollbackMigrations(ctx, s.DB(), DialectSQLite); err != nil {
		t.Fatalf("RollbackMigrations() error = %v", err)
	}
	if _, err := s.GetWork(ctx, "missing"); err == nil {
		t.Fatal("expected works table to be gone after rollback")
	}
	if err := ApplyMigrations(ctx, s.DB(), DialectSQLite); err != nil {
		t.Fatalf("ApplyMigrations() after rollback error = %v", err)
	}
	if _, err := s.GetWork(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("GetWork() error = %v, want sql.ErrNoRows", err)
	}
}

func TestRebind(t *testing.T) {
	query := `UPDATE chapters SET status=? WHERE id=? AND version=?`
	if got := DialectSQLite.rebind(query); got != query {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `UPDATE chapters SET status=$1 WHERE id=$2 AND version=$3`
	if got := DialectPostgres.rebind(query); got != want {
		t.Fatalf("postgres rebind = %s, want %s", got, want)
	}
}

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{"": DialectPostgres, "pgx": DialectPostgres, "SQLite": DialectSQLite}
	for input, want := range cases {
		got, err := ParseDialect(input)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestChapterRoundTripPreservesNullsAndTimes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWork(t, s, "work-1")
	want := seedChapter(t, s, "work-1", 0, workflow.StatusTranslated)

	got, err := s.GetChapter(ctx, "work-1", 0)
	if err != nil {
		t.Fatalf("GetChapter() error = %v", err)
	}
	if got.Title != nil || got.EditedContent != nil {
		t.Fatalf("expected NULL title and edited content, got %+v", got)
	}
	if got.TranslatedContent == nil || *got.TranslatedContent != "번역문" {
		t.Fatalf("TranslatedContent = %v", got.TranslatedContent)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) || got.Status != workflow.StatusTranslated || got.Version != 1 {
		t.Fatalf("GetChapter() = %+v", got)
	}
}

func TestDuplicateChapterNumberIsReported(t *testing.T) {
	s := newTestStore(t)
	seedWork(t, s, "work-1")
	seedChapter(t, s, "work-1", 3, workflow.StatusPending)

	dup := Chapter{
		ID: "other", WorkID: "work-1", Number: 3, OriginalContent: "x", Status: workflow.StatusPending,
		Version: 1, CreatedAt: fixtureTime, UpdatedAt: fixtureTime,
	}
	if err := s.InsertChapter(context.Background(), dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("InsertChapter() error = %v, want ErrDuplicate", err)
	}
}

func TestUpdateChapterIsVersionPredicated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWork(t, s, "work-1")
	chapter := seedChapter(t, s, "work-1", 1, workflow.StatusTranslated)

	next := chapter
	next.EditedContent = strPtr("윤문")
	next.Status = workflow.StatusReviewing
	next.Version = 2
	next.UpdatedAt = fixtureTime.Add(time.Minute)
	if err := s.UpdateChapter(ctx, next, 1); err != nil {
		t.Fatalf("UpdateChapter() error = %v", err)
	}

	stale := chapter
	stale.EditedContent = strPtr("늦은 편집")
	stale.Version = 2
	if err := s.UpdateChapter(ctx, stale, 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale UpdateChapter() error = %v, want ErrVersionConflict", err)
	}

	got, err := s.GetChapter(ctx, "work-1", 1)
	if err != nil {
		t.Fatalf("GetChapter() error = %v", err)
	}
	if got.Version != 2 || *got.EditedContent != "윤문" || got.Status != workflow.StatusReviewing {
		t.Fatalf("GetChapter() = %+v", got)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWork(t, s, "work-1")
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx Tx) error {
		if err := tx.SetWorkTotalChapters(ctx, "work-1", 42, fixtureTime); err != nil {
			return err
		}
		if err := tx.InsertActivity(ctx, Activity{
			ID: "act-1", WorkID: "work-1", ActorID: "author-1", Type: ActivityEditMade,
			Summary: "edit", CreatedAt: fixtureTime,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx() error = %v, want boom", err)
	}

	work, err := s.GetWork(ctx, "work-1")
	if err != nil {
		t.Fatalf("GetWork() error = %v", err)
	}
	if work.TotalChapters != 0 {
		t.Fatalf("TotalChapters = %d, want rollback to 0", work.TotalChapters)
	}
	activities, err := s.ListActivities(ctx, "work-1", 10)
	if err != nil {
		t.Fatalf("ListActivities() error = %v", err)
	}
	if len(activities) != 0 {
		t.Fatalf("expected no activities after rollback, got %d", len(activities))
	}
}

func TestCountChaptersNotInStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWork(t, s, "work-1")
	seedChapter(t, s, "work-1", 1, workflow.StatusApproved)
	seedChapter(t, s, "work-1", 2, workflow.StatusEdited)
	seedChapter(t, s, "work-1", 3, workflow.StatusApproved)

	total, err := s.CountChapters(ctx, "work-1")
	if err != nil || total != 3 {
		t.Fatalf("CountChapters() = %d, %v", total, err)
	}
	open, err := s.CountChaptersNotInStatus(ctx, "work-1", workflow.StatusApproved)
	if err != nil || open != 1 {
		t.Fatalf("CountChaptersNotInStatus() = %d, %v", open, err)
	}
}

func TestContractsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWork(t, s, "work-1")

	end := 10
	contract := Contract{
		ID: "contract-1", WorkID: "work-1", AuthorID: "author-1", EditorID: "editor-1",
		ChapterStart: 1, ChapterEnd: &end, Active: true, CreatedAt: fixtureTime,
	}
	if err := s.WithinTx(ctx, func(tx Tx) error { return tx.InsertContract(ctx, contract) }); err != nil {
		t.Fatalf("InsertContract() error = %v", err)
	}

	active, err := s.ActiveContract(ctx, "work-1", "editor-1")
	if err != nil {
		t.Fatalf("ActiveContract() error = %v", err)
	}
	if !active.Active || active.ChapterEnd == nil || *active.ChapterEnd != 10 {
		t.Fatalf("ActiveContract() = %+v", active)
	}
	if !active.Covers(5) || active.Covers(15) || active.Covers(0) {
		t.Fatal("Covers() disagrees with range 1-10")
	}
	if label := active.RangeLabel(); label != "1-10" {
		t.Fatalf("RangeLabel() = %q", label)
	}

	if _, err := s.ActiveContract(ctx, "work-1", "editor-2"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("ActiveContract(other editor) error = %v, want sql.ErrNoRows", err)
	}
	has, err := s.HasActiveContract(ctx, "work-1")
	if err != nil || !has {
		t.Fatalf("HasActiveContract() = %v, %v", has, err)
	}

	if err := s.WithinTx(ctx, func(tx Tx) error { return tx.CompleteContract(ctx, "contract-1", fixtureTime) }); err != nil {
		t.Fatalf("CompleteContract() error = %v", err)
	}
	if err := s.WithinTx(ctx, func(tx Tx) error { return tx.CompleteContract(ctx, "contract-1", fixtureTime) }); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second CompleteContract() error = %v, want sql.ErrNoRows", err)
	}
	has, err = s.HasActiveContract(ctx, "work-1")
	if err != nil || has {
		t.Fatalf("HasActiveContract() after completion = %v, %v", has, err)
	}
	done, err := s.GetContract(ctx, "contract-1")
	if err != nil {
		t.Fatalf("GetContract() error = %v", err)
	}
	if done.Active || done.CompletedAt == nil {
		t.Fatalf("GetContract() = %+v", done)
	}
}

func TestOpenEndedContractCovers(t *testing.T) {
	contract := Contract{ChapterStart: 20}
	if contract.Covers(19) || !contract.Covers(20) || !contract.Covers(500) {
		t.Fatal("open-ended contract should cover every chapter from its start")
	}
	if label := contract.RangeLabel(); label != "20+" {
		t.Fatalf("RangeLabel() = %q", label)
	}
}

func TestActivitiesNewestFirstWithMetadata(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWork(t, s, "work-1")

	for i, kind := range []ActivityType{ActivityChapterCreated, ActivityStatusChanged} {
		err := s.InsertActivity(ctx, Activity{
			ID: "act-" + string(rune('a'+i)), WorkID: "work-1", ChapterID: strPtr("ch-1"), ActorID: "author-1",
			Type: kind, Summary: string(kind), Metadata: map[string]any{"to": "TRANSLATED"},
			CreatedAt: fixtureTime.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("InsertActivity() error = %v", err)
		}
	}

	activities, err := s.ListActivities(ctx, "work-1", 10)
	if err != nil {
		t.Fatalf("ListActivities() error = %v", err)
	}
	if len(activities) != 2 || activities[0].Type != ActivityStatusChanged {
		t.Fatalf("ListActivities() = %+v", activities)
	}
	if activities[0].Metadata["to"] != "TRANSLATED" || *activities[0].ChapterID != "ch-1" {
		t.Fatalf("metadata not preserved: %+v", activities[0])
	}
}

func TestSnapshotsFollowChapterDeletion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWork(t, s, "work-1")
	chapter := seedChapter(t, s, "work-1", 1, workflow.StatusTranslated)

	snapshot := Snapshot{
		ID: "snap-1", ChapterID: chapter.ID, WorkID: "work-1", ChapterNumber: 1, Type: SnapshotManual,
		Name: strPtr("before edit"), Status: workflow.StatusTranslated, TranslatedContent: chapter.TranslatedContent,
		CreatedBy: "author-1", CreatedAt: fixtureTime,
	}
	if err := s.InsertSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("InsertSnapshot() error = %v", err)
	}
	got, err := s.GetSnapshot(ctx, "snap-1")
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if got.Type != SnapshotManual || *got.Name != "before edit" || got.EditedContent != nil {
		t.Fatalf("GetSnapshot() = %+v", got)
	}

	if err := s.DeleteChapter(ctx, chapter.ID); err != nil {
		t.Fatalf("DeleteChapter() error = %v", err)
	}
	if _, err := s.GetSnapshot(ctx, "snap-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("GetSnapshot() after delete error = %v, want sql.ErrNoRows", err)
	}
	if err := s.DeleteChapter(ctx, chapter.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second DeleteChapter() error = %v, want sql.ErrNoRows", err)
	}
}

func TestGlossaryTermsUniquePerWork(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWork(t, s, "work-1")

	term := GlossaryTerm{ID: "g-1", WorkID: "work-1", Original: "魔法", Translated: "마법", CreatedAt: fixtureTime}
	if err := s.InsertGlossaryTerm(ctx, term); err != nil {
		t.Fatalf("InsertGlossaryTerm() error = %v", err)
	}
	term.ID = "g-2"
	if err := s.InsertGlossaryTerm(ctx, term); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate InsertGlossaryTerm() error = %v, want ErrDuplicate", err)
	}
	terms, err := s.ListGlossaryTerms(ctx, "work-1")
	if err != nil || len(terms) != 1 || terms[0].Translated != "마법" {
		t.Fatalf("ListGlossaryTerms() = %+v, %v", terms, err)
	}
}

func TestSearchChaptersFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWork(t, s, "work-1")
	chapter := seedChapter(t, s, "work-1", 1, workflow.StatusTranslated)
	chapter.TranslatedContent = strPtr("Captain Yoon steered the ship through the storm")
	chapter.Version = 2
	if err := s.UpdateChapter(ctx, chapter, 1); err != nil {
		t.Fatalf("UpdateChapter() error = %v", err)
	}
	seedChapter(t, s, "work-1", 2, workflow.StatusPending)

	hits, err := s.SearchChapters(ctx, "work-1", "STORM", 10)
	if err != nil {
		t.Fatalf("SearchChapters() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Number != 1 {
		t.Fatalf("SearchChapters() = %+v", hits)
	}

	hits, err = s.SearchChapters(ctx, "work-1", "100%", 10)
	if err != nil {
		t.Fatalf("SearchChapters(wildcard) error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected literal %% to match nothing, got %+v", hits)
	}
}

func TestSnippetAround(t *testing.T) {
	body := "가나다라마바사아자차카타파하 " + "the needle sits here " + "가나다라마바사아자차카타파하"
	got := snippetAround(body, "NEEDLE", 20)
	if got == "" || got[0:3] != "…" {
		t.Fatalf("snippetAround() = %q, want leading ellipsis", got)
	}
	if short := snippetAround("short", "x", 20); short != "short" {
		t.Fatalf("snippetAround(short) = %q", short)
	}
}

func TestUsersNormalizeRole(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.InsertUser(ctx, User{ID: "u-1", DisplayName: "Kim", Email: " Kim@Example.com ", Role: "editor", CreatedAt: fixtureTime}); err != nil {
		t.Fatalf("InsertUser() error = %v", err)
	}
	user, err := s.GetUserByID(ctx, "u-1")
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.Email != "kim@example.com" || user.Role != "editor" {
		t.Fatalf("GetUserByID() = %+v", user)
	}
	if err := s.InsertUser(ctx, User{ID: "u-2", DisplayName: "Kim 2", Email: "kim@example.com", Role: "author", CreatedAt: fixtureTime}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email error = %v, want ErrDuplicate", err)
	}
}
