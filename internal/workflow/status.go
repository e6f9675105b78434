// Package workflow defines the chapter pipeline: status values, the per-role
// transition table, content-edit permissions and the optimistic concurrency guard.
package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ChapterStatus is the lifecycle position of a single chapter.
type ChapterStatus string

const (
	StatusPending     ChapterStatus = "PENDING"
	StatusTranslating ChapterStatus = "TRANSLATING"
	StatusTranslated  ChapterStatus = "TRANSLATED"
	StatusReviewing   ChapterStatus = "REVIEWING"
	StatusEdited      ChapterStatus = "EDITED"
	StatusApproved    ChapterStatus = "APPROVED"
)

// allChapterStatuses is ordered from initial to terminal.
var allChapterStatuses = []ChapterStatus{
	StatusPending,
	StatusTranslating,
	StatusTranslated,
	StatusReviewing,
	StatusEdited,
	StatusApproved,
}

var chapterStatusRank = func() map[ChapterStatus]int {
	ranks := make(map[ChapterStatus]int, len(allChapterStatuses))
	for i, status := range allChapterStatuses {
		ranks[status] = i
	}
	return ranks
}()

// WorkStatus is the lifecycle position of a whole work.
type WorkStatus string

const (
	WorkDrafting    WorkStatus = "DRAFTING"
	WorkTranslating WorkStatus = "TRANSLATING"
	WorkInReview    WorkStatus = "IN_REVIEW"
	WorkCompleted   WorkStatus = "COMPLETED"
)

var allWorkStatuses = []WorkStatus{
	WorkDrafting,
	WorkTranslating,
	WorkInReview,
	WorkCompleted,
}

// ErrUnknownStatus is returned when a status string matches no known value.
var ErrUnknownStatus = errors.New("unknown status")

// ChapterStatuses returns every chapter status in pipeline order.
func ChapterStatuses() []ChapterStatus {
	return append([]ChapterStatus(nil), allChapterStatuses...)
}

// ParseChapterStatus accepts any casing and surrounding whitespace.
func ParseChapterStatus(value string) (ChapterStatus, error) {
	candidate := ChapterStatus(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := chapterStatusRank[candidate]; ok {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
}

// UnmarshalText accepts any casing of a known status. Unknown values are kept
// as given so Valid can reject them with the caller's spelling.
func (s *ChapterStatus) UnmarshalText(text []byte) error {
	if parsed, err := ParseChapterStatus(string(text)); err == nil {
		*s = parsed
		return nil
	}
	*s = ChapterStatus(text)
	return nil
}

// Valid reports whether s is one of the defined chapter statuses.
func (s ChapterStatus) Valid() bool {
	_, ok := chapterStatusRank[s]
	return ok
}

// Terminal reports whether s is the final per-chapter state.
func (s ChapterStatus) Terminal() bool {
	return s == StatusApproved
}

func (s ChapterStatus) String() string {
	return string(s)
}

func ParseWorkStatus(value string) (WorkStatus, error) {
	candidate := WorkStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range allWorkStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
}

func (s WorkStatus) String() string {
	return string(s)
}
