package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yunmun/api/internal/auth"
	"yunmun/api/internal/store"
	"yunmun/api/internal/trackchanges"
)

// TrackChangesView is what a reviewer sees: the diff of the editor's text
// against the translation it started from.
type TrackChangesView struct {
	Chunks  []trackchanges.Chunk `json:"chunks"`
	Stats   trackchanges.Stats   `json:"stats"`
	Policy  trackchanges.Policy  `json:"policy"`
	Version int64                `json:"version"`
}

// ApplyTrackChangesInput carries per-chunk verdicts. All, when set, applies
// one verdict to every change and overrides Decisions.
type ApplyTrackChangesInput struct {
	Decisions map[int]trackchanges.Decision `json:"decisions"`
	All       trackchanges.Decision         `json:"all"`
	Policy    trackchanges.Policy           `json:"policy"`
	Version   *int64                        `json:"version"`
}

// ComputeDiff is the stateless diff used by editors and the CLI.
func (s *Service) ComputeDiff(baseline, candidate string) (TrackChangesView, error) {
	chunks, err := trackchanges.Compute(baseline, candidate)
	if err != nil {
		return TrackChangesView{}, trackChangesError(err)
	}
	return TrackChangesView{Chunks: chunks, Stats: trackchanges.StatsOf(chunks), Policy: s.policy}, nil
}

// MaterializeResult merges chunks under the given decisions. An empty
// policy uses the service default.
func (s *Service) MaterializeResult(chunks []trackchanges.Chunk, decisions map[int]trackchanges.Decision, policy trackchanges.Policy) (string, error) {
	policy, err := s.resolvePolicy(policy)
	if err != nil {
		return "", err
	}
	if err := trackchanges.ValidateDecisions(chunks, decisions); err != nil {
		return "", trackChangesError(err)
	}
	return trackchanges.Materialize(chunks, decisions, policy), nil
}

func (s *Service) ReviewTrackChanges(ctx context.Context, actor auth.Actor, workID string, number int) (TrackChangesView, error) {
	chapter, err := s.GetChapter(ctx, actor, workID, number)
	if err != nil {
		return TrackChangesView{}, err
	}
	chunks, err := reviewChunks(chapter)
	if err != nil {
		return TrackChangesView{}, err
	}
	return TrackChangesView{
		Chunks:  chunks,
		Stats:   trackchanges.StatsOf(chunks),
		Policy:  s.policy,
		Version: chapter.Version,
	}, nil
}

// ApplyTrackChanges merges the review on the server and writes the result
// through the orchestrator as a track-changes result.
func (s *Service) ApplyTrackChanges(ctx context.Context, actor auth.Actor, workID string, number int, input ApplyTrackChangesInput) (store.Chapter, error) {
	policy, err := s.resolvePolicy(input.Policy)
	if err != nil {
		return store.Chapter{}, err
	}
	chapter, err := s.GetChapter(ctx, actor, workID, number)
	if err != nil {
		return store.Chapter{}, err
	}
	chunks, err := reviewChunks(chapter)
	if err != nil {
		return store.Chapter{}, err
	}

	review := trackchanges.FromChunks(chunks, policy)
	switch input.All {
	case "":
		for id, decision := range input.Decisions {
			if err := review.Decide(id, decision); err != nil {
				return store.Chapter{}, trackChangesError(err)
			}
		}
	case trackchanges.Accepted:
		review.AcceptAll()
	case trackchanges.Rejected:
		review.RejectAll()
	default:
		return store.Chapter{}, errBadRequest(fmt.Sprintf("unknown decision %q", string(input.All)))
	}

	version := chapter.Version
	if input.Version != nil {
		version = *input.Version
	}
	accepted, rejected, undecided := review.Counts()
	result := review.Result()
	source := mutationSource{
		metadata: map[string]any{
			"accepted":  accepted,
			"rejected":  rejected,
			"undecided": undecided,
			"policy":    policy,
		},
	}
	if accepted == 0 && rejected > 0 {
		source.activity = store.ActivityChangeRejected
		source.summary = fmt.Sprintf("%d화 수정 사항 거절", number)
	}
	return s.applyMutation(ctx, actor, workID, number, ChapterPatch{
		TrackChangesResult: &result,
		Version:            &version,
	}, source)
}

func (s *Service) resolvePolicy(policy trackchanges.Policy) (trackchanges.Policy, error) {
	if policy == "" {
		return s.policy, nil
	}
	parsed, err := trackchanges.ParsePolicy(string(policy))
	if err != nil {
		return "", trackChangesError(err)
	}
	return parsed, nil
}

// reviewChunks diffs the edited text against the translation. A chapter
// without edits yields a single unchanged chunk.
func reviewChunks(ch store.Chapter) ([]trackchanges.Chunk, error) {
	if ch.TranslatedContent == nil || strings.TrimSpace(*ch.TranslatedContent) == "" {
		return nil, errBadRequest("chapter has no translation to compare against")
	}
	candidate := *ch.TranslatedContent
	if ch.EditedContent != nil {
		candidate = *ch.EditedContent
	}
	chunks, err := trackchanges.Compute(*ch.TranslatedContent, candidate)
	if err != nil {
		return nil, trackChangesError(err)
	}
	return chunks, nil
}

func trackChangesError(err error) error {
	switch {
	case errors.Is(err, trackchanges.ErrEmptyBaseline):
		return errBadRequest("baseline text is required")
	case errors.Is(err, trackchanges.ErrUnknownChunk),
		errors.Is(err, trackchanges.ErrUnknownDecision),
		errors.Is(err, trackchanges.ErrUnknownPolicy):
		return errBadRequest(err.Error())
	default:
		return err
	}
}
