package workflow

import "yunmun/api/internal/rbac"

// Field names a writable chapter attribute.
type Field string

const (
	FieldTitle              Field = "title"
	FieldOriginalContent    Field = "originalContent"
	FieldTranslatedContent  Field = "translatedContent"
	FieldEditedContent      Field = "editedContent"
	FieldTrackChangesResult Field = "trackChangesResult"
)

var contentEditable = map[rbac.Role]statusSet{
	rbac.RoleAuthor: setOf(StatusPending, StatusTranslating, StatusTranslated),
	rbac.RoleEditor: setOf(StatusTranslated, StatusReviewing),
	rbac.RoleAdmin:  setOf(allChapterStatuses...),
}

var trackChangesApplicable = map[rbac.Role]statusSet{
	rbac.RoleAuthor: setOf(StatusReviewing, StatusEdited),
	rbac.RoleEditor: setOf(StatusTranslated, StatusReviewing),
	rbac.RoleAdmin:  setOf(allChapterStatuses...),
}

var editorFields = map[Field]struct{}{
	FieldEditedContent:      {},
	FieldTrackChangesResult: {},
}

// CanEditChapterContent reports whether role may write chapter content while
// the chapter sits in status. Authors lose free-form edit rights once the
// chapter passes TRANSLATED.
func CanEditChapterContent(role rbac.Role, status ChapterStatus) bool {
	return contentEditable[role].has(status)
}

// CanApplyTrackChanges reports whether role may apply a reviewed track-changes
// result while the chapter sits in status.
func CanApplyTrackChanges(role rbac.Role, status ChapterStatus) bool {
	return trackChangesApplicable[role].has(status)
}

// CanEditChapterField reports whether role may write field at all. Editors are
// limited to the edited text.
func CanEditChapterField(role rbac.Role, field Field) bool {
	switch role {
	case rbac.RoleAdmin, rbac.RoleAuthor:
		return true
	case rbac.RoleEditor:
		_, ok := editorFields[field]
		return ok
	default:
		return false
	}
}
