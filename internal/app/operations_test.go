package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"yunmun/api/internal/store"
	"yunmun/api/internal/trackchanges"
	"yunmun/api/internal/translator"
	"yunmun/api/internal/workflow"
)

func TestRetranslateChapterRules(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedChapter(t, 1, workflow.StatusTranslated, nil)
	f.seedChapter(t, 2, workflow.StatusEdited, strPtr("완성"))

	input := RetranslateInput{Feedback: "더 서정적으로"}
	tests := []struct {
		name   string
		call   func() error
		code   string
		status int
	}{
		{
			name: "empty feedback",
			call: func() error {
				_, err := f.svc.RetranslateChapter(ctx, authorActor, f.workID, 1, RetranslateInput{Feedback: "  "})
				return err
			},
			code: CodeBadRequest,
		},
		{
			name: "editor",
			call: func() error {
				_, err := f.svc.RetranslateChapter(ctx, editorActor, f.workID, 1, input)
				return err
			},
			code: CodeForbidden,
		},
		{
			name: "admin",
			call: func() error {
				_, err := f.svc.RetranslateChapter(ctx, adminActor, f.workID, 1, input)
				return err
			},
			code: CodeForbidden,
		},
		{
			name: "finished chapter",
			call: func() error {
				_, err := f.svc.RetranslateChapter(ctx, authorActor, f.workID, 2, input)
				return err
			},
			code: CodeBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			requireDomainError(t, tc.call(), tc.code)
		})
	}

	f.translator.retranslateFn = func(context.Context, translator.Request) (string, error) {
		return "", errors.New("upstream 500")
	}
	_, err := f.svc.RetranslateChapter(ctx, authorActor, f.workID, 1, input)
	domainErr := requireDomainError(t, err, CodeTranslationFailed)
	if domainErr.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", domainErr.Status)
	}
	if got := f.chapter(t, 1); got.Version != 1 {
		t.Fatalf("version = %d after failed retranslation", got.Version)
	}
}

func TestRetranslateChapterReplacesTranslation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seeded := f.seedChapter(t, 1, workflow.StatusReviewing, strPtr("편집 중"))
	if _, err := f.svc.AddGlossaryTerm(ctx, authorActor, f.workID, AddGlossaryTermInput{Original: "月", Translated: "달"}); err != nil {
		t.Fatalf("AddGlossaryTerm() error = %v", err)
	}

	var got translator.Request
	f.translator.retranslateFn = func(_ context.Context, req translator.Request) (string, error) {
		got = req
		return "달빛이 바다 위에 번졌다.", nil
	}
	updated, err := f.svc.RetranslateChapter(ctx, authorActor, f.workID, 1, RetranslateInput{Feedback: "더 서정적으로", SelectedText: strPtr("비추고")})
	if err != nil {
		t.Fatalf("RetranslateChapter() error = %v", err)
	}
	if got.Feedback != "더 서정적으로" || got.SelectedText != "비추고" || len(got.Glossary) != 1 || got.Glossary[0].Translated != "달" {
		t.Fatalf("translator request = %+v", got)
	}
	if updated.Status != workflow.StatusTranslated || updated.EditedContent != nil || *updated.TranslatedContent != "달빛이 바다 위에 번졌다." {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.Version != seeded.Version+1 {
		t.Fatalf("version = %d", updated.Version)
	}

	snapshots := f.snapshots(t, seeded.ID)
	if len(snapshots) != 1 || snapshots[0].Type != store.SnapshotPreRetranslate || *snapshots[0].EditedContent != "편집 중" {
		t.Fatalf("snapshots = %+v", snapshots)
	}
	if latest := f.activities(t)[0]; latest.Type != store.ActivityRetranslated {
		t.Fatalf("latest activity = %s", latest.Type)
	}
}

func TestTrackChangesReviewAndApply(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedChapter(t, 1, workflow.StatusReviewing, strPtr("달빛이 바다를 비추고 있었다."))

	view, err := f.svc.ReviewTrackChanges(ctx, authorActor, f.workID, 1)
	if err != nil {
		t.Fatalf("ReviewTrackChanges() error = %v", err)
	}
	if view.Stats.Changes == 0 || view.Version != 1 || view.Policy != trackchanges.PolicyKeepEdit {
		t.Fatalf("view = %+v", view)
	}

	stale := int64(7)
	_, err = f.svc.ApplyTrackChanges(ctx, editorActor, f.workID, 1, ApplyTrackChangesInput{All: trackchanges.Rejected, Version: &stale})
	requireDomainError(t, err, CodeConflict)

	_, err = f.svc.ApplyTrackChanges(ctx, editorActor, f.workID, 1, ApplyTrackChangesInput{Decisions: map[int]trackchanges.Decision{99: trackchanges.Accepted}})
	requireDomainError(t, err, CodeBadRequest)

	updated, err := f.svc.ApplyTrackChanges(ctx, editorActor, f.workID, 1, ApplyTrackChangesInput{All: trackchanges.Rejected})
	if err != nil {
		t.Fatalf("ApplyTrackChanges() error = %v", err)
	}
	if *updated.EditedContent != "달이 바다를 비추고 있었다." || updated.Status != workflow.StatusReviewing {
		t.Fatalf("updated = %+v", updated)
	}
	latest := f.activities(t)[0]
	if latest.Type != store.ActivityChangeRejected {
		t.Fatalf("latest activity = %s, want CHANGE_REJECTED", latest.Type)
	}
	if latest.Metadata["policy"] != string(trackchanges.PolicyKeepEdit) {
		t.Fatalf("metadata = %#v", latest.Metadata)
	}
}

func TestSnapshotCreateAndRestore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seeded := f.seedChapter(t, 1, workflow.StatusReviewing, strPtr("첫 원고"))
	f.seedChapter(t, 2, workflow.StatusReviewing, nil)

	snapshot, err := f.svc.CreateSnapshot(ctx, editorActor, f.workID, 1, CreateSnapshotInput{Name: "before polish"})
	if err != nil {
		t.Fatalf("CreateSnapshot() error = %v", err)
	}
	if snapshot.Type != store.SnapshotManual || snapshot.Name == nil || *snapshot.Name != "before polish" {
		t.Fatalf("snapshot = %+v", snapshot)
	}
	if _, err := f.svc.ApplyChapterMutation(ctx, editorActor, f.workID, 1, ChapterPatch{EditedContent: strPtr("다듬은 원고")}); err != nil {
		t.Fatalf("ApplyChapterMutation() error = %v", err)
	}

	_, err = f.svc.RestoreSnapshot(ctx, editorActor, f.workID, 2, snapshot.ID, RestoreSnapshotInput{})
	requireDomainError(t, err, CodeNotFound)

	restored, err := f.svc.RestoreSnapshot(ctx, editorActor, f.workID, 1, snapshot.ID, RestoreSnapshotInput{})
	if err != nil {
		t.Fatalf("RestoreSnapshot() error = %v", err)
	}
	if *restored.EditedContent != "첫 원고" || restored.Version != seeded.Version+2 {
		t.Fatalf("restored = %+v", restored)
	}
	if latest := f.activities(t)[0]; latest.Type != store.ActivitySnapshotRestored {
		t.Fatalf("latest activity = %s", latest.Type)
	}

	// Restoring the same content again is a no-op.
	again, err := f.svc.RestoreSnapshot(ctx, editorActor, f.workID, 1, snapshot.ID, RestoreSnapshotInput{})
	if err != nil {
		t.Fatalf("second RestoreSnapshot() error = %v", err)
	}
	if again.Version != restored.Version {
		t.Fatalf("version = %d, want unchanged %d", again.Version, restored.Version)
	}
}

func TestContractLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	end := 2
	_, err := f.svc.CreateContract(ctx, authorActor, f.workID, CreateContractInput{EditorID: "editor-1", ChapterStart: 5, ChapterEnd: &end})
	requireDomainError(t, err, CodeBadRequest)

	_, err = f.svc.CreateContract(ctx, authorActor, f.workID, CreateContractInput{EditorID: "author-2", ChapterStart: 1})
	requireDomainError(t, err, CodeBadRequest)

	_, err = f.svc.CreateContract(ctx, editorActor, f.workID, CreateContractInput{EditorID: "editor-1", ChapterStart: 1})
	requireDomainError(t, err, CodeForbidden)

	replacement, err := f.svc.CreateContract(ctx, authorActor, f.workID, CreateContractInput{EditorID: "editor-1", ChapterStart: 11})
	if err != nil {
		t.Fatalf("CreateContract() error = %v", err)
	}
	contracts, err := f.svc.ListContracts(ctx, editorActor, f.workID)
	if err != nil {
		t.Fatalf("ListContracts() error = %v", err)
	}
	active := 0
	for _, c := range contracts {
		if c.Active {
			active++
			if c.ID != replacement.ID {
				t.Fatalf("active contract = %s, want %s", c.ID, replacement.ID)
			}
		}
	}
	if len(contracts) != 2 || active != 1 {
		t.Fatalf("contracts = %+v", contracts)
	}

	_, err = f.svc.CompleteContract(ctx, authorActor, f.workID, f.contractID)
	requireDomainError(t, err, CodeConflict)
	_, err = f.svc.CompleteContract(ctx, authorActor, f.workID, "ctr-missing")
	requireDomainError(t, err, CodeNotFound)
}

func TestGlossaryTerms(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.AddGlossaryTerm(ctx, authorActor, f.workID, AddGlossaryTermInput{Original: "勇者", Translated: "용사"}); err != nil {
		t.Fatalf("AddGlossaryTerm() error = %v", err)
	}
	_, err := f.svc.AddGlossaryTerm(ctx, authorActor, f.workID, AddGlossaryTermInput{Original: "勇者", Translated: "영웅"})
	requireDomainError(t, err, CodeConflict)
	_, err = f.svc.AddGlossaryTerm(ctx, editorActor, f.workID, AddGlossaryTermInput{Original: "魔王", Translated: "마왕"})
	requireDomainError(t, err, CodeForbidden)

	terms, err := f.svc.ListGlossary(ctx, editorActor, f.workID)
	if err != nil {
		t.Fatalf("ListGlossary() error = %v", err)
	}
	if len(terms) != 1 || terms[0].Translated != "용사" {
		t.Fatalf("terms = %+v", terms)
	}
}

func TestSearchChaptersFallsBackToStore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedChapter(t, 1, workflow.StatusTranslated, nil)
	f.seedChapter(t, 2, workflow.StatusReviewing, strPtr("별이 쏟아지는 밤"))

	_, err := f.svc.SearchChapters(ctx, editorActor, f.workID, " ", 10)
	requireDomainError(t, err, CodeBadRequest)

	resp, err := f.svc.SearchChapters(ctx, editorActor, f.workID, "별이", 10)
	if err != nil {
		t.Fatalf("SearchChapters() error = %v", err)
	}
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].Number != 2 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestListWorksScopesByParticipant(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, tc := range []struct {
		name  string
		works func() ([]store.Work, error)
		want  int
	}{
		{name: "author", works: func() ([]store.Work, error) { return f.svc.ListWorks(ctx, authorActor) }, want: 1},
		{name: "editor", works: func() ([]store.Work, error) { return f.svc.ListWorks(ctx, editorActor) }, want: 1},
		{name: "stranger", works: func() ([]store.Work, error) { return f.svc.ListWorks(ctx, strangerActor) }, want: 0},
		{name: "admin", works: func() ([]store.Work, error) { return f.svc.ListWorks(ctx, adminActor) }, want: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			works, err := tc.works()
			if err != nil {
				t.Fatalf("ListWorks() error = %v", err)
			}
			if len(works) != tc.want {
				t.Fatalf("len(works) = %d, want %d", len(works), tc.want)
			}
		})
	}

	_, err := f.svc.GetWork(ctx, strangerActor, f.workID)
	requireDomainError(t, err, CodeForbidden)
}
