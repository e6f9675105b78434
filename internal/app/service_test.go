package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"yunmun/api/internal/archive"
	"yunmun/api/internal/auth"
	"yunmun/api/internal/email"
	"yunmun/api/internal/logging"
	"yunmun/api/internal/rbac"
	"yunmun/api/internal/store"
	"yunmun/api/internal/translator"
	"yunmun/api/internal/workflow"
)

var fixtureTime = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

var (
	authorActor   = auth.Actor{UserID: "author-1", Name: "Han", Role: rbac.RoleAuthor}
	editorActor   = auth.Actor{UserID: "editor-1", Name: "Seo", Role: rbac.RoleEditor}
	outsideEditor = auth.Actor{UserID: "editor-2", Name: "Park", Role: rbac.RoleEditor}
	strangerActor = auth.Actor{UserID: "author-2", Name: "Kim", Role: rbac.RoleAuthor}
	adminActor    = auth.Actor{UserID: "admin-1", Name: "Ops", Role: rbac.RoleAdmin}
)

// tickingClock advances one second per reading so consecutive writes get
// distinct timestamps.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fakeTranslator struct {
	retranslateFn func(context.Context, translator.Request) (string, error)
}

func (f *fakeTranslator) IsConfigured() bool { return true }

func (f *fakeTranslator) Retranslate(ctx context.Context, req translator.Request) (string, error) {
	if f.retranslateFn != nil {
		return f.retranslateFn(ctx, req)
	}
	return "", errors.New("not implemented")
}

type recordingArchive struct {
	mu        sync.Mutex
	published []archive.Manuscript
	tags      []string
}

func (a *recordingArchive) Publish(m archive.Manuscript, author, message string) (archive.CommitInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.published = append(a.published, m)
	return archive.CommitInfo{Hash: "abc1234", Message: message, Author: author}, nil
}

func (a *recordingArchive) Tag(workID, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tags = append(a.tags, name)
	return nil
}

func (a *recordingArchive) History(workID string, limit int) ([]archive.CommitInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.published) == 0 {
		return nil, archive.ErrNotArchived
	}
	return []archive.CommitInfo{{Hash: "abc1234"}}, nil
}

type recordingMailer struct {
	mu        sync.Mutex
	to        []string
	completed []email.WorkCompletedData
	ready     []email.ChapterReadyData
}

func (m *recordingMailer) IsConfigured() bool { return true }

func (m *recordingMailer) SendWorkCompleted(to string, data email.WorkCompletedData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.completed = append(m.completed, data)
	return nil
}

func (m *recordingMailer) SendChapterReady(to string, data email.ChapterReadyData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.ready = append(m.ready, data)
	return nil
}

type fixture struct {
	store      *store.Store
	svc        *Service
	workID     string
	contractID string
	archive    *recordingArchive
	mailer     *recordingMailer
	translator *fakeTranslator
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.DialectSQLite, filepath.Join(t.TempDir(), "yunmun.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(ctx, db, store.DialectSQLite); err != nil {
		t.Fatalf("ApplyMigrations() error = %v", err)
	}
	return store.New(db, store.DialectSQLite)
}

// newFixture builds a service over a fresh SQLite database holding one work
// by author-1 with editor-1 contracted for chapters 1-10.
func newFixture(t *testing.T, wrap func(*store.Store) DataStore) *fixture {
	t.Helper()
	ctx := context.Background()
	st := newTestStore(t)
	users := []store.User{
		{ID: "author-1", DisplayName: "Han", Email: "han@example.com", Role: rbac.RoleAuthor},
		{ID: "author-2", DisplayName: "Kim", Email: "kim@example.com", Role: rbac.RoleAuthor},
		{ID: "editor-1", DisplayName: "Seo", Email: "seo@example.com", Role: rbac.RoleEditor},
		{ID: "editor-2", DisplayName: "Park", Email: "park@example.com", Role: rbac.RoleEditor},
		{ID: "admin-1", DisplayName: "Ops", Email: "ops@example.com", Role: rbac.RoleAdmin},
	}
	for _, u := range users {
		u.CreatedAt = fixtureTime
		if err := st.InsertUser(ctx, u); err != nil {
			t.Fatalf("InsertUser(%s) error = %v", u.ID, err)
		}
	}

	var ds DataStore = st
	if wrap != nil {
		ds = wrap(st)
	}
	f := &fixture{
		store:      st,
		archive:    &recordingArchive{},
		mailer:     &recordingMailer{},
		translator: &fakeTranslator{},
	}
	clock := &tickingClock{now: fixtureTime}
	f.svc = New(ds,
		WithLogger(logging.Discard()),
		WithClock(clock.Now),
		WithArchive(f.archive),
		WithMailer(f.mailer),
		WithTranslator(f.translator),
	)
	t.Cleanup(f.svc.Wait)

	work, err := f.svc.CreateWork(ctx, authorActor, CreateWorkInput{Title: "달빛 항해"})
	if err != nil {
		t.Fatalf("CreateWork() error = %v", err)
	}
	f.workID = work.ID
	end := 10
	contract, err := f.svc.CreateContract(ctx, authorActor, work.ID, CreateContractInput{EditorID: "editor-1", ChapterStart: 1, ChapterEnd: &end})
	if err != nil {
		t.Fatalf("CreateContract() error = %v", err)
	}
	f.contractID = contract.ID
	return f
}

func strPtr(v string) *string { return &v }

func statusPtr(s workflow.ChapterStatus) *workflow.ChapterStatus { return &s }

func (f *fixture) seedChapter(t *testing.T, number int, status workflow.ChapterStatus, edited *string) store.Chapter {
	t.Helper()
	chapter := store.Chapter{
		ID:                f.workID + "-ch-" + strings.Repeat("i", number+1),
		WorkID:            f.workID,
		Number:            number,
		OriginalContent:   "月が海を照らしていた。",
		TranslatedContent: strPtr("달이 바다를 비추고 있었다."),
		EditedContent:     edited,
		Status:            status,
		WordCount:         11,
		Version:           1,
		CreatedAt:         fixtureTime,
		UpdatedAt:         fixtureTime,
	}
	if err := f.store.InsertChapter(context.Background(), chapter); err != nil {
		t.Fatalf("InsertChapter() error = %v", err)
	}
	return chapter
}

func (f *fixture) chapter(t *testing.T, number int) store.Chapter {
	t.Helper()
	chapter, err := f.store.GetChapter(context.Background(), f.workID, number)
	if err != nil {
		t.Fatalf("GetChapter(%d) error = %v", number, err)
	}
	return chapter
}

func (f *fixture) work(t *testing.T) store.Work {
	t.Helper()
	work, err := f.store.GetWork(context.Background(), f.workID)
	if err != nil {
		t.Fatalf("GetWork() error = %v", err)
	}
	return work
}

func (f *fixture) activities(t *testing.T) []store.Activity {
	t.Helper()
	activities, err := f.store.ListActivities(context.Background(), f.workID, 100)
	if err != nil {
		t.Fatalf("ListActivities() error = %v", err)
	}
	return activities
}

func (f *fixture) snapshots(t *testing.T, chapterID string) []store.Snapshot {
	t.Helper()
	snapshots, err := f.store.ListSnapshots(context.Background(), chapterID)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	return snapshots
}

func hasActivity(activities []store.Activity, kind store.ActivityType) bool {
	for _, a := range activities {
		if a.Type == kind {
			return true
		}
	}
	return false
}

func requireDomainError(t *testing.T, err error, code string) *DomainError {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("error = %v, want %s", err, code)
	}
	if domainErr.Code != code {
		t.Fatalf("error code = %s (%s), want %s", domainErr.Code, domainErr.Message, code)
	}
	return domainErr
}

func TestApplyChapterMutationRequiresActor(t *testing.T) {
	f := newFixture(t, nil)
	f.seedChapter(t, 1, workflow.StatusTranslated, nil)

	_, err := f.svc.ApplyChapterMutation(context.Background(), auth.Actor{}, f.workID, 1, ChapterPatch{EditedContent: strPtr("x")})
	requireDomainError(t, err, CodeUnauthenticated)
}

func TestApplyChapterMutationNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.ApplyChapterMutation(ctx, authorActor, "missing", 1, ChapterPatch{Title: strPtr("t")})
	requireDomainError(t, err, CodeNotFound)

	_, err = f.svc.ApplyChapterMutation(ctx, strangerActor, f.workID, 99, ChapterPatch{Title: strPtr("t")})
	requireDomainError(t, err, CodeNotFound)
}

func TestApplyChapterMutationRejectsOutsiders(t *testing.T) {
	f := newFixture(t, nil)
	f.seedChapter(t, 1, workflow.StatusTranslated, nil)

	_, err := f.svc.ApplyChapterMutation(context.Background(), strangerActor, f.workID, 1, ChapterPatch{Title: strPtr("t")})
	requireDomainError(t, err, CodeForbidden)
}

func TestEditorNeedsCoveringContract(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedChapter(t, 3, workflow.StatusTranslated, nil)
	f.seedChapter(t, 15, workflow.StatusTranslated, nil)

	// editor-2 is not the work's editor at all.
	_, err := f.svc.ApplyChapterMutation(ctx, outsideEditor, f.workID, 3, ChapterPatch{EditedContent: strPtr("x")})
	requireDomainError(t, err, CodeForbidden)

	_, err = f.svc.ApplyChapterMutation(ctx, editorActor, f.workID, 15, ChapterPatch{EditedContent: strPtr("x")})
	domainErr := requireDomainError(t, err, CodeForbidden)
	if domainErr.Message != "chapter 15 is outside your contract range 1-10" {
		t.Fatalf("message = %q", domainErr.Message)
	}

	if _, err := f.svc.CompleteContract(ctx, authorActor, f.workID, f.contractID); err != nil {
		t.Fatalf("CompleteContract() error = %v", err)
	}
	_, err = f.svc.ApplyChapterMutation(ctx, editorActor, f.workID, 3, ChapterPatch{EditedContent: strPtr("x")})
	domainErr = requireDomainError(t, err, CodeForbidden)
	if domainErr.Message != "no active contract for this work" {
		t.Fatalf("message = %q", domainErr.Message)
	}
}

func TestEditorsShareWorkOnDisjointRanges(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedChapter(t, 5, workflow.StatusTranslated, nil)
	f.seedChapter(t, 15, workflow.StatusTranslated, nil)

	end := 20
	if _, err := f.svc.CreateContract(ctx, authorActor, f.workID, CreateContractInput{EditorID: "editor-2", ChapterStart: 11, ChapterEnd: &end}); err != nil {
		t.Fatalf("CreateContract(editor-2) error = %v", err)
	}

	if _, err := f.svc.ApplyChapterMutation(ctx, editorActor, f.workID, 5, ChapterPatch{EditedContent: strPtr("5화 수정")}); err != nil {
		t.Fatalf("editor-1 on chapter 5: error = %v", err)
	}
	if _, err := f.svc.ApplyChapterMutation(ctx, outsideEditor, f.workID, 15, ChapterPatch{EditedContent: strPtr("15화 수정")}); err != nil {
		t.Fatalf("editor-2 on chapter 15: error = %v", err)
	}
	_, err := f.svc.ApplyChapterMutation(ctx, outsideEditor, f.workID, 5, ChapterPatch{EditedContent: strPtr("x")})
	domainErr := requireDomainError(t, err, CodeForbidden)
	if domainErr.Message != "chapter 5 is outside your contract range 11-20" {
		t.Fatalf("message = %q", domainErr.Message)
	}

	for _, actor := range []auth.Actor{editorActor, outsideEditor} {
		if _, err := f.svc.GetWork(ctx, actor, f.workID); err != nil {
			t.Fatalf("GetWork(%s) error = %v", actor.UserID, err)
		}
		works, err := f.svc.ListWorks(ctx, actor)
		if err != nil {
			t.Fatalf("ListWorks(%s) error = %v", actor.UserID, err)
		}
		if len(works) != 1 || works[0].ID != f.workID {
			t.Fatalf("ListWorks(%s) = %+v", actor.UserID, works)
		}
	}
}

func TestStaleWritesConflict(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seeded := f.seedChapter(t, 1, workflow.StatusReviewing, strPtr("초안"))

	version := seeded.Version
	first, err := f.svc.ApplyChapterMutation(ctx, editorActor, f.workID, 1, ChapterPatch{EditedContent: strPtr("첫 수정"), Version: &version})
	if err != nil {
		t.Fatalf("first ApplyChapterMutation() error = %v", err)
	}
	if first.Version != seeded.Version+1 {
		t.Fatalf("version = %d, want %d", first.Version, seeded.Version+1)
	}

	_, err = f.svc.ApplyChapterMutation(ctx, editorActor, f.workID, 1, ChapterPatch{EditedContent: strPtr("두 번째"), Version: &version})
	domainErr := requireDomainError(t, err, CodeConflict)
	details, ok := domainErr.Details.(map[string]any)
	if !ok || details["currentVersion"] != first.Version {
		t.Fatalf("details = %#v", domainErr.Details)
	}

	lastSeen := seeded.UpdatedAt
	_, err = f.svc.ApplyChapterMutation(ctx, editorActor, f.workID, 1, ChapterPatch{EditedContent: strPtr("세 번째"), UpdatedAt: &lastSeen})
	requireDomainError(t, err, CodeConflict)

	if got := f.chapter(t, 1); got.Version != first.Version || *got.EditedContent != "첫 수정" {
		t.Fatalf("chapter changed by a rejected write: %+v", got)
	}
}

func TestFieldAndContentPermissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedChapter(t, 1, workflow.StatusReviewing, nil)
	f.seedChapter(t, 2, workflow.StatusTranslated, nil)
	f.seedChapter(t, 3, workflow.StatusEdited, strPtr("윤문 완료본"))

	tests := []struct {
		name   string
		actor  auth.Actor
		number int
		patch  ChapterPatch
	}{
		{name: "author edits translation during review", actor: authorActor, number: 1, patch: ChapterPatch{TranslatedContent: strPtr("x")}},
		{name: "editor writes translation", actor: editorActor, number: 2, patch: ChapterPatch{TranslatedContent: strPtr("x")}},
		{name: "editor renames chapter", actor: editorActor, number: 2, patch: ChapterPatch{Title: strPtr("x")}},
		{name: "author applies track changes before review", actor: authorActor, number: 2, patch: ChapterPatch{TrackChangesResult: strPtr("x")}},
		{name: "author rewrites edited content after editing", actor: authorActor, number: 3, patch: ChapterPatch{EditedContent: strPtr("x")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ApplyChapterMutation(ctx, tc.actor, f.workID, tc.number, tc.patch)
			requireDomainError(t, err, CodeForbidden)
		})
	}
	if got := f.chapter(t, 3); got.Version != 1 || *got.EditedContent != "윤문 완료본" {
		t.Fatalf("chapter 3 changed by a forbidden write: %+v", got)
	}
}

func TestEditorEditAutoPromotesTranslatedChapter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seeded := f.seedChapter(t, 1, workflow.StatusTranslated, nil)

	updated, err := f.svc.ApplyChapterMutation(ctx, editorActor, f.workID, 1, ChapterPatch{EditedContent: strPtr("달빛이 바다를 적셨다.")})
	if err != nil {
		t.Fatalf("ApplyChapterMutation() error = %v", err)
	}
	if updated.Status != workflow.StatusReviewing || updated.Version != 2 {
		t.Fatalf("updated = status %s version %d", updated.Status, updated.Version)
	}

	snapshots := f.snapshots(t, seeded.ID)
	if len(snapshots) != 1 || snapshots[0].Type != store.SnapshotStatusChange || snapshots[0].Status != workflow.StatusReviewing {
		t.Fatalf("snapshots = %+v", snapshots)
	}
	latest := f.activities(t)[0]
	if latest.Type != store.ActivityStatusChanged || latest.Metadata["autoPromoted"] != true {
		t.Fatalf("latest activity = %+v", latest)
	}
	if got := f.work(t).Status; got != workflow.WorkInReview {
		t.Fatalf("work status = %s, want IN_REVIEW", got)
	}
}

func TestContentOnlyEditIsAutoSaved(t *testing.T) {
	f := newFixture(t, nil)
	seeded := f.seedChapter(t, 1, workflow.StatusReviewing, strPtr("초안"))

	updated, err := f.svc.ApplyChapterMutation(context.Background(), editorActor, f.workID, 1, ChapterPatch{EditedContent: strPtr("수정안")})
	if err != nil {
		t.Fatalf("ApplyChapterMutation() error = %v", err)
	}
	if updated.Status != workflow.StatusReviewing {
		t.Fatalf("status = %s", updated.Status)
	}
	snapshots := f.snapshots(t, seeded.ID)
	if len(snapshots) != 1 || snapshots[0].Type != store.SnapshotAutoSave {
		t.Fatalf("snapshots = %+v", snapshots)
	}
	if latest := f.activities(t)[0]; latest.Type != store.ActivityEditMade {
		t.Fatalf("latest activity = %s", latest.Type)
	}
}

func TestIllegalTransitionIsForbidden(t *testing.T) {
	f := newFixture(t, nil)
	f.seedChapter(t, 1, workflow.StatusReviewing, strPtr("초안"))

	_, err := f.svc.ApplyChapterMutation(context.Background(), editorActor, f.workID, 1, ChapterPatch{Status: statusPtr(workflow.StatusApproved)})
	domainErr := requireDomainError(t, err, CodeForbidden)
	if !strings.Contains(domainErr.Message, "cannot move chapter from REVIEWING to APPROVED") {
		t.Fatalf("message = %q", domainErr.Message)
	}
}

func TestUnknownStatusIsBadRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.seedChapter(t, 1, workflow.StatusReviewing, nil)

	_, err := f.svc.ApplyChapterMutation(context.Background(), adminActor, f.workID, 1, ChapterPatch{Status: statusPtr("DONE")})
	requireDomainError(t, err, CodeBadRequest)
}

func TestEditedChapterNotifiesAuthor(t *testing.T) {
	f := newFixture(t, nil)
	f.seedChapter(t, 4, workflow.StatusReviewing, strPtr("수정안"))

	if _, err := f.svc.ApplyChapterMutation(context.Background(), editorActor, f.workID, 4, ChapterPatch{Status: statusPtr(workflow.StatusEdited)}); err != nil {
		t.Fatalf("ApplyChapterMutation() error = %v", err)
	}
	f.svc.Wait()

	f.mailer.mu.Lock()
	defer f.mailer.mu.Unlock()
	if len(f.mailer.ready) != 1 || f.mailer.to[0] != "han@example.com" || f.mailer.ready[0].ChapterNumber != 4 {
		t.Fatalf("ready notifications = %+v to %v", f.mailer.ready, f.mailer.to)
	}
}

func TestFinalApprovalCompletesWork(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedChapter(t, 1, workflow.StatusApproved, strPtr("완성 1"))
	f.seedChapter(t, 2, workflow.StatusEdited, strPtr("완성 2"))

	if _, err := f.svc.CompleteContract(ctx, authorActor, f.workID, f.contractID); err != nil {
		t.Fatalf("CompleteContract() error = %v", err)
	}
	if got := f.work(t).Status; got == workflow.WorkCompleted {
		t.Fatal("work completed while a chapter is still EDITED")
	}

	if _, err := f.svc.ApplyChapterMutation(ctx, authorActor, f.workID, 2, ChapterPatch{Status: statusPtr(workflow.StatusApproved)}); err != nil {
		t.Fatalf("ApplyChapterMutation() error = %v", err)
	}
	work := f.work(t)
	if work.Status != workflow.WorkCompleted || work.CompletedAt == nil {
		t.Fatalf("work = %+v, want COMPLETED", work)
	}
	if !hasActivity(f.activities(t), store.ActivityWorkCompleted) {
		t.Fatal("no WORK_COMPLETED activity recorded")
	}

	f.svc.Wait()
	f.archive.mu.Lock()
	published := f.archive.published
	f.archive.mu.Unlock()
	if len(published) != 1 || len(published[0].Chapters) != 2 || published[0].Chapters[1].Text != "완성 2" {
		t.Fatalf("archive published = %+v", published)
	}
	f.mailer.mu.Lock()
	defer f.mailer.mu.Unlock()
	if len(f.mailer.completed) != 1 || f.mailer.completed[0].ArchiveRef != "abc1234" {
		t.Fatalf("completion mails = %+v", f.mailer.completed)
	}
}

func TestActiveContractBlocksCompletion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedChapter(t, 1, workflow.StatusEdited, strPtr("완성"))

	if _, err := f.svc.ApplyChapterMutation(ctx, authorActor, f.workID, 1, ChapterPatch{Status: statusPtr(workflow.StatusApproved)}); err != nil {
		t.Fatalf("ApplyChapterMutation() error = %v", err)
	}
	if got := f.work(t).Status; got == workflow.WorkCompleted {
		t.Fatal("work completed with an active contract")
	}

	if _, err := f.svc.CompleteContract(ctx, authorActor, f.workID, f.contractID); err != nil {
		t.Fatalf("CompleteContract() error = %v", err)
	}
	if got := f.work(t).Status; got != workflow.WorkCompleted {
		t.Fatalf("work status = %s after closing the last contract", got)
	}

	// Reopening a chapter reopens the work.
	if _, err := f.svc.ApplyChapterMutation(ctx, authorActor, f.workID, 1, ChapterPatch{Status: statusPtr(workflow.StatusReviewing)}); err != nil {
		t.Fatalf("reopen ApplyChapterMutation() error = %v", err)
	}
	if got := f.work(t).Status; got != workflow.WorkInReview {
		t.Fatalf("work status = %s after reopening, want IN_REVIEW", got)
	}
}

var errInjected = errors.New("injected failure")

// failingStore fails activity inserts once armed, after the fixture is built.
type failingStore struct {
	*store.Store
	armed *bool
}

func (f failingStore) WithinTx(ctx context.Context, fn func(store.Tx) error) error {
	return f.Store.WithinTx(ctx, func(tx store.Tx) error {
		return fn(failingTx{Tx: tx, armed: *f.armed})
	})
}

type failingTx struct {
	store.Tx
	armed bool
}

func (t failingTx) InsertActivity(ctx context.Context, activity store.Activity) error {
	if t.armed {
		return errInjected
	}
	return t.Tx.InsertActivity(ctx, activity)
}

func TestMutationRollsBackWhenActivityWriteFails(t *testing.T) {
	armed := false
	f := newFixture(t, func(st *store.Store) DataStore { return failingStore{Store: st, armed: &armed} })
	armed = true
	seeded := f.seedChapter(t, 1, workflow.StatusTranslated, nil)

	_, err := f.svc.ApplyChapterMutation(context.Background(), editorActor, f.workID, 1, ChapterPatch{EditedContent: strPtr("수정")})
	if !errors.Is(err, errInjected) {
		t.Fatalf("ApplyChapterMutation() error = %v, want injected failure", err)
	}
	got := f.chapter(t, 1)
	if got.Version != seeded.Version || got.Status != workflow.StatusTranslated || got.EditedContent != nil {
		t.Fatalf("chapter = %+v, want untouched", got)
	}
	if snapshots := f.snapshots(t, seeded.ID); len(snapshots) != 0 {
		t.Fatalf("snapshots = %+v, want none", snapshots)
	}
}

func TestCreateAndDeleteChapterKeepTotals(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, n := range []int{0, 1, 2} {
		if _, err := f.svc.CreateChapter(ctx, authorActor, f.workID, CreateChapterInput{Number: n, OriginalContent: "月 が 出た"}); err != nil {
			t.Fatalf("CreateChapter(%d) error = %v", n, err)
		}
	}
	_, err := f.svc.CreateChapter(ctx, authorActor, f.workID, CreateChapterInput{Number: 1, OriginalContent: "again"})
	requireDomainError(t, err, CodeConflict)

	_, err = f.svc.CreateChapter(ctx, editorActor, f.workID, CreateChapterInput{Number: 5, OriginalContent: "x"})
	requireDomainError(t, err, CodeForbidden)

	if got := f.work(t).TotalChapters; got != 3 {
		t.Fatalf("totalChapters = %d, want 3", got)
	}
	if got := f.chapter(t, 0); got.WordCount != 4 || got.Status != workflow.StatusPending {
		t.Fatalf("chapter 0 = %+v", got)
	}

	err = f.svc.DeleteChapter(ctx, editorActor, f.workID, 1)
	requireDomainError(t, err, CodeForbidden)

	if err := f.svc.DeleteChapter(ctx, authorActor, f.workID, 1); err != nil {
		t.Fatalf("DeleteChapter() error = %v", err)
	}
	counted, err := f.store.CountChapters(ctx, f.workID)
	if err != nil {
		t.Fatalf("CountChapters() error = %v", err)
	}
	if got := f.work(t).TotalChapters; got != counted || counted != 2 {
		t.Fatalf("totalChapters = %d, counted rows = %d, want 2", got, counted)
	}
	if latest := f.activities(t)[0]; latest.Type != store.ActivityChapterDeleted {
		t.Fatalf("latest activity = %s", latest.Type)
	}
	err = f.svc.DeleteChapter(ctx, authorActor, f.workID, 1)
	requireDomainError(t, err, CodeNotFound)
}

func TestWordCountIgnoresWhitespace(t *testing.T) {
	if got := wordCount(" 달빛  항해\n月 "); got != 5 {
		t.Fatalf("wordCount() = %d, want 5", got)
	}
}
