package workflow

import (
	"fmt"

	"yunmun/api/internal/rbac"
)

type transitionKey struct {
	role rbac.Role
	from ChapterStatus
}

type statusSet map[ChapterStatus]struct{}

func setOf(statuses ...ChapterStatus) statusSet {
	set := make(statusSet, len(statuses))
	for _, status := range statuses {
		set[status] = struct{}{}
	}
	return set
}

func (s statusSet) has(status ChapterStatus) bool {
	_, ok := s[status]
	return ok
}

// transitionTable lists, per (role, from), every reachable destination.
// A missing key means the role cannot move the chapter out of that status.
var transitionTable = map[transitionKey]statusSet{
	{rbac.RoleAuthor, StatusPending}:     setOf(StatusTranslating),
	{rbac.RoleAuthor, StatusTranslating}: setOf(StatusTranslated, StatusPending),
	{rbac.RoleAuthor, StatusEdited}:      setOf(StatusApproved, StatusReviewing),
	{rbac.RoleAuthor, StatusApproved}:    setOf(StatusReviewing),

	{rbac.RoleEditor, StatusTranslated}: setOf(StatusReviewing),
	{rbac.RoleEditor, StatusReviewing}:  setOf(StatusReviewing, StatusEdited),

	{rbac.RoleAdmin, StatusPending}:     setOf(StatusTranslating),
	{rbac.RoleAdmin, StatusTranslating}: setOf(StatusTranslated, StatusPending),
	{rbac.RoleAdmin, StatusTranslated}:  setOf(StatusReviewing),
	{rbac.RoleAdmin, StatusReviewing}:   setOf(StatusReviewing, StatusEdited),
	{rbac.RoleAdmin, StatusEdited}:      setOf(StatusApproved, StatusReviewing),
	{rbac.RoleAdmin, StatusApproved}:    setOf(StatusReviewing),
}

// CanTransition reports whether role may move a chapter from one status to another.
func CanTransition(role rbac.Role, from, to ChapterStatus) bool {
	allowed, ok := transitionTable[transitionKey{role: role, from: from}]
	if !ok {
		return false
	}
	return allowed.has(to)
}

// AllowedTransitions lists the destinations reachable by role from a status,
// in pipeline order.
func AllowedTransitions(role rbac.Role, from ChapterStatus) []ChapterStatus {
	allowed := transitionTable[transitionKey{role: role, from: from}]
	result := make([]ChapterStatus, 0, len(allowed))
	for _, status := range allChapterStatuses {
		if allowed.has(status) {
			result = append(result, status)
		}
	}
	return result
}

// TransitionError names the rejected from → to pair.
type TransitionError struct {
	Role rbac.Role
	From ChapterStatus
	To   ChapterStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move chapter from %s to %s", e.Role, e.From, e.To)
}

// ValidateTransition returns a *TransitionError for an illegal move. Staying in
// the current status is not a transition and always passes.
func ValidateTransition(role rbac.Role, from, to ChapterStatus) error {
	if from == to {
		return nil
	}
	if !CanTransition(role, from, to) {
		return &TransitionError{Role: role, From: from, To: to}
	}
	return nil
}

// AutoPromoteOnEditorEdit is the rule that an editor touching a TRANSLATED
// draft puts it into review. It returns the promoted status and true when the
// rule fires.
func AutoPromoteOnEditorEdit(role rbac.Role, current ChapterStatus, contentEdited bool) (ChapterStatus, bool) {
	if role != rbac.RoleEditor || !contentEdited || current != StatusTranslated {
		return current, false
	}
	return StatusReviewing, true
}
