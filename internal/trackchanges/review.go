package trackchanges

import "fmt"

// Review holds a diff together with the reviewer's decisions. It is not safe
// for concurrent use.
type Review struct {
	chunks    []Chunk
	decisions map[int]Decision
	policy    Policy
}

func NewReview(baseline, candidate string, policy Policy) (*Review, error) {
	chunks, err := Compute(baseline, candidate)
	if err != nil {
		return nil, err
	}
	return FromChunks(chunks, policy), nil
}

// FromChunks wraps an existing diff, all chunks undecided.
func FromChunks(chunks []Chunk, policy Policy) *Review {
	if policy == "" {
		policy = PolicyKeepEdit
	}
	return &Review{
		chunks:    append([]Chunk(nil), chunks...),
		decisions: make(map[int]Decision),
		policy:    policy,
	}
}

func (r *Review) Chunks() []Chunk {
	return append([]Chunk(nil), r.chunks...)
}

func (r *Review) Stats() Stats {
	return StatsOf(r.chunks)
}

func (r *Review) Policy() Policy {
	return r.policy
}

// Decide records a verdict for one non-equal chunk.
func (r *Review) Decide(id int, decision Decision) error {
	if id < 0 || id >= len(r.chunks) || r.chunks[id].Op == OpEqual {
		return fmt.Errorf("%w: %d", ErrUnknownChunk, id)
	}
	switch decision {
	case Accepted, Rejected:
		r.decisions[id] = decision
	case Undecided:
		delete(r.decisions, id)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDecision, decision)
	}
	return nil
}

func (r *Review) AcceptAll() {
	r.decisions = Uniform(r.chunks, Accepted)
}

func (r *Review) RejectAll() {
	r.decisions = Uniform(r.chunks, Rejected)
}

func (r *Review) Decision(id int) Decision {
	if decision, ok := r.decisions[id]; ok {
		return decision
	}
	return Undecided
}

func (r *Review) Decisions() map[int]Decision {
	out := make(map[int]Decision, len(r.decisions))
	for id, decision := range r.decisions {
		out[id] = decision
	}
	return out
}

func (r *Review) HasUndecided() bool {
	return HasUndecided(r.chunks, r.decisions)
}

// Counts tallies decisions over non-equal chunks.
func (r *Review) Counts() (accepted, rejected, undecided int) {
	for _, chunk := range r.chunks {
		if chunk.Op == OpEqual {
			continue
		}
		switch r.decisions[chunk.ID] {
		case Accepted:
			accepted++
		case Rejected:
			rejected++
		default:
			undecided++
		}
	}
	return accepted, rejected, undecided
}

// Result materializes the merged text under the review's policy.
func (r *Review) Result() string {
	return Materialize(r.chunks, r.decisions, r.policy)
}
