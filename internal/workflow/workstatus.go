package workflow

// WorkStatusAfter returns the work status implied by one of its chapters
// entering chapter. Works only move forward through DRAFTING, TRANSLATING
// and IN_REVIEW. A COMPLETED work reopens when a chapter leaves APPROVED.
// Completion itself is decided by the caller, which can see every chapter.
func WorkStatusAfter(current WorkStatus, chapter ChapterStatus) WorkStatus {
	stage := WorkTranslating
	if chapterStatusRank[chapter] >= chapterStatusRank[StatusReviewing] {
		stage = WorkInReview
	}
	switch current {
	case WorkCompleted:
		if chapter == StatusApproved {
			return WorkCompleted
		}
		return stage
	case WorkDrafting:
		if chapter == StatusPending {
			return WorkDrafting
		}
		return stage
	case WorkTranslating:
		return stage
	default:
		return current
	}
}
