package store

import (
	"fmt"
	"time"

	"yunmun/api/internal/rbac"
	"yunmun/api/internal/workflow"
)

type User struct {
	ID          string
	DisplayName string
	Email       string
	Role        rbac.Role
	CreatedAt   time.Time
}

type Work struct {
	ID            string
	Title         string
	AuthorID      string
	EditorID      *string
	Status        workflow.WorkStatus
	TotalChapters int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// Ref is the ownership view the permission predicates consume.
func (w Work) Ref() rbac.WorkRef {
	ref := rbac.WorkRef{AuthorID: w.AuthorID}
	if w.EditorID != nil {
		ref.EditorID = *w.EditorID
	}
	return ref
}

type Chapter struct {
	ID                string
	WorkID            string
	Number            int
	Title             *string
	OriginalContent   string
	TranslatedContent *string
	EditedContent     *string
	Status            workflow.ChapterStatus
	WordCount         int
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LatestText is the most refined text available: edited, then translated,
// then the original.
func (c Chapter) LatestText() string {
	if c.EditedContent != nil && *c.EditedContent != "" {
		return *c.EditedContent
	}
	if c.TranslatedContent != nil && *c.TranslatedContent != "" {
		return *c.TranslatedContent
	}
	return c.OriginalContent
}

// TitleOrEmpty dereferences Title.
func (c Chapter) TitleOrEmpty() string {
	if c.Title == nil {
		return ""
	}
	return *c.Title
}

type Contract struct {
	ID           string
	WorkID       string
	AuthorID     string
	EditorID     string
	ChapterStart int
	ChapterEnd   *int
	Active       bool
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// Covers reports whether the chapter number lies inside the contract range.
// A nil end leaves the range open.
func (c Contract) Covers(number int) bool {
	if number < c.ChapterStart {
		return false
	}
	return c.ChapterEnd == nil || number <= *c.ChapterEnd
}

func (c Contract) RangeLabel() string {
	if c.ChapterEnd == nil {
		return fmt.Sprintf("%d+", c.ChapterStart)
	}
	return fmt.Sprintf("%d-%d", c.ChapterStart, *c.ChapterEnd)
}

type SnapshotType string

const (
	SnapshotManual         SnapshotType = "MANUAL"
	SnapshotAutoSave       SnapshotType = "AUTO_SAVE"
	SnapshotStatusChange   SnapshotType = "STATUS_CHANGE"
	SnapshotPreRetranslate SnapshotType = "PRE_RETRANSLATE"
)

type Snapshot struct {
	ID                string
	ChapterID         string
	WorkID            string
	ChapterNumber     int
	Type              SnapshotType
	Name              *string
	Status            workflow.ChapterStatus
	TranslatedContent *string
	EditedContent     *string
	CreatedBy         string
	CreatedAt         time.Time
}

type ActivityType string

const (
	ActivityEditMade          ActivityType = "EDIT_MADE"
	ActivityStatusChanged     ActivityType = "STATUS_CHANGED"
	ActivityCommentAdded      ActivityType = "COMMENT_ADDED"
	ActivitySnapshotCreated   ActivityType = "SNAPSHOT_CREATED"
	ActivitySnapshotRestored  ActivityType = "SNAPSHOT_RESTORED"
	ActivityChangeAccepted    ActivityType = "CHANGE_ACCEPTED"
	ActivityChangeRejected    ActivityType = "CHANGE_REJECTED"
	ActivityChapterCreated    ActivityType = "CHAPTER_CREATED"
	ActivityChapterDeleted    ActivityType = "CHAPTER_DELETED"
	ActivityRetranslated      ActivityType = "RETRANSLATED"
	ActivityWorkCompleted     ActivityType = "WORK_COMPLETED"
	ActivityContractCompleted ActivityType = "CONTRACT_COMPLETED"
)

type Activity struct {
	ID        string
	WorkID    string
	ChapterID *string
	ActorID   string
	Type      ActivityType
	Summary   string
	Metadata  map[string]any
	CreatedAt time.Time
}

type GlossaryTerm struct {
	ID         string
	WorkID     string
	Original   string
	Translated string
	Note       *string
	CreatedAt  time.Time
}

// ChapterHit is one row of the SQL search fallback.
type ChapterHit struct {
	WorkID  string
	Number  int
	Title   string
	Snippet string
}
