// Package trackchanges diffs an edited text against its baseline and merges
// the result back according to per-chunk accept/reject decisions.
package trackchanges

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Op tags a chunk as unchanged, added by the editor, or removed by the editor.
type Op string

const (
	OpEqual  Op = "equal"
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Decision is the reviewer's verdict on a single non-equal chunk.
type Decision string

const (
	Undecided Decision = "undecided"
	Accepted  Decision = "accepted"
	Rejected  Decision = "rejected"
)

// Policy decides what an undecided chunk contributes to the merged result.
type Policy string

const (
	// PolicyKeepEdit treats undecided chunks as provisionally accepted: an
	// undecided insert is present and an undecided delete is omitted.
	PolicyKeepEdit Policy = "edit"
	// PolicyKeepOriginal resolves undecided chunks to the baseline text.
	PolicyKeepOriginal Policy = "original"
)

var (
	ErrEmptyBaseline   = errors.New("trackchanges: empty baseline")
	ErrUnknownChunk    = errors.New("trackchanges: unknown chunk")
	ErrUnknownDecision = errors.New("trackchanges: unknown decision")
	ErrUnknownPolicy   = errors.New("trackchanges: unknown policy")
)

// Chunk is one span of the diff. IDs are positions in the chunk list.
type Chunk struct {
	ID   int    `json:"id"`
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Stats summarizes a diff in characters (runes) and changed chunks.
type Stats struct {
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
	Changes  int `json:"changes"`
}

func ParseDecision(value string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(value))) {
	case Accepted:
		return Accepted, nil
	case Rejected:
		return Rejected, nil
	case Undecided, "":
		return Undecided, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDecision, value)
	}
}

// ParsePolicy maps an empty value to PolicyKeepEdit.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyKeepEdit, "":
		return PolicyKeepEdit, nil
	case PolicyKeepOriginal:
		return PolicyKeepOriginal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, value)
	}
}

func StatsOf(chunks []Chunk) Stats {
	var stats Stats
	for _, chunk := range chunks {
		switch chunk.Op {
		case OpInsert:
			stats.Inserted += utf8.RuneCountInString(chunk.Text)
			stats.Changes++
		case OpDelete:
			stats.Deleted += utf8.RuneCountInString(chunk.Text)
			stats.Changes++
		}
	}
	return stats
}

// Materialize walks the chunks and emits the merged text. Missing decisions
// count as undecided.
func Materialize(chunks []Chunk, decisions map[int]Decision, policy Policy) string {
	var out strings.Builder
	for _, chunk := range chunks {
		if keep(chunk.Op, decisions[chunk.ID], policy) {
			out.WriteString(chunk.Text)
		}
	}
	return out.String()
}

// HasUndecided reports whether any non-equal chunk still lacks a verdict.
func HasUndecided(chunks []Chunk, decisions map[int]Decision) bool {
	for _, chunk := range chunks {
		if chunk.Op == OpEqual {
			continue
		}
		switch decisions[chunk.ID] {
		case Accepted, Rejected:
		default:
			return true
		}
	}
	return false
}

// Uniform assigns the same decision to every non-equal chunk.
func Uniform(chunks []Chunk, decision Decision) map[int]Decision {
	decisions := make(map[int]Decision, len(chunks))
	for _, chunk := range chunks {
		if chunk.Op != OpEqual {
			decisions[chunk.ID] = decision
		}
	}
	return decisions
}

// ValidateDecisions checks that every decided id names a non-equal chunk.
func ValidateDecisions(chunks []Chunk, decisions map[int]Decision) error {
	for id, decision := range decisions {
		if id < 0 || id >= len(chunks) || chunks[id].ID != id || chunks[id].Op == OpEqual {
			return fmt.Errorf("%w: %d", ErrUnknownChunk, id)
		}
		switch decision {
		case Accepted, Rejected, Undecided:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownDecision, decision)
		}
	}
	return nil
}

func keep(op Op, decision Decision, policy Policy) bool {
	switch op {
	case OpInsert:
		switch decision {
		case Accepted:
			return true
		case Rejected:
			return false
		default:
			return policy != PolicyKeepOriginal
		}
	case OpDelete:
		switch decision {
		case Accepted:
			return false
		case Rejected:
			return true
		default:
			return policy == PolicyKeepOriginal
		}
	default:
		return true
	}
}
