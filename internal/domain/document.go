package domain

import (
	"strings"
	"time"
)

const DefaultTitle = "Untitled"

const (
	DocumentFieldID                = "_id"
	DocumentFieldTitle             = "title"
	DocumentFieldCharCount         = "char_count"
	DocumentFieldCharCountNoSpaces = "char_count_no_spaces"
	DocumentFieldWordCount         = "word_count"
	DocumentFieldContent           = "content"
	DocumentFieldPermRead          = "perm_read"
	DocumentFieldPermEdit          = "perm_edit"
	DocumentFieldOwner             = "owner"
	DocumentFieldReadLink          = "read_link"
	DocumentFieldEditLink          = "edit_link"
	DocumentFieldCreationDate      = "creation_date"
	DocumentFieldEditDate          = "edit_date"
)

var DocumentFields = []string{
	DocumentFieldID,
	DocumentFieldTitle,
	DocumentFieldCharCount,
	DocumentFieldCharCountNoSpaces,
	DocumentFieldWordCount,
	DocumentFieldContent,
	DocumentFieldPermRead,
	DocumentFieldPermEdit,
	DocumentFieldOwner,
	DocumentFieldReadLink,
	DocumentFieldEditLink,
	DocumentFieldCreationDate,
	DocumentFieldEditDate,
}

// Document is a rich text document. The counters are maintained by the editor, not computed here.
type Document struct {
	ID                ID        `json:"_id"`
	Title             string    `json:"title"`
	CharCount         int       `json:"char_count"`
	CharCountNoSpaces int       `json:"char_count_no_spaces"`
	WordCount         int       `json:"word_count"`
	Content           Content   `json:"content"`
	PermRead          IDs       `json:"perm_read"`
	PermEdit          IDs       `json:"perm_edit"`
	Owner             ID        `json:"owner"`
	ReadLink          *string   `json:"read_link,omitempty"`
	EditLink          *string   `json:"edit_link,omitempty"`
	CreationDate      time.Time `json:"creation_date"`
	EditDate          time.Time `json:"edit_date"`
}

// NewDocument returns a fresh document owned by owner with both permission sets set to the owner.
func NewDocument(owner ID, title string, now time.Time) Document {
	if title == "" {
		title = DefaultTitle
	}
	return Document{
		ID:           NewID(),
		Title:        title,
		Content:      DefaultContent(),
		PermRead:     IDs{owner},
		PermEdit:     IDs{owner},
		Owner:        owner,
		CreationDate: now,
		EditDate:     now,
	}
}

// PermissionsOf evaluates read, edit and owner independently.
func (d Document) PermissionsOf(user ID) Permissions {
	perms := Permissions{}
	if d.PermRead.Contains(user) {
		perms = append(perms, PermissionRead)
	}
	if d.PermEdit.Contains(user) {
		perms = append(perms, PermissionEdit)
	}
	if d.Owner.Equal(user) {
		perms = append(perms, PermissionOwner)
	}
	return perms
}

// DocumentFilter selects documents. Unset fields do not constrain the result and
// set conditions are combined with AND, except AvailableTo which is an OR of its own.
type DocumentFilter struct {
	ID       *ID
	IDs      IDs
	Owner    *ID
	Title    *string
	ReadLink *string
	EditLink *string

	// ReadHasAll and EditHasAll match when every listed id is in the set.
	ReadHasAll IDs
	EditHasAll IDs

	// ReadHasNone and EditHasNone match when no listed id is in the set.
	ReadHasNone IDs
	EditHasNone IDs

	// AvailableTo matches documents the user owns, can read or can edit.
	AvailableTo *ID
}

func DocumentByID(id ID) DocumentFilter {
	return DocumentFilter{ID: &id}
}

// DocumentPatch lists the document fields a caller may change. Nil fields are left
// untouched; an empty link string clears the link.
type DocumentPatch struct {
	Title             *string  `json:"title,omitempty"`
	CharCount         *int     `json:"char_count,omitempty"`
	CharCountNoSpaces *int     `json:"char_count_no_spaces,omitempty"`
	WordCount         *int     `json:"word_count,omitempty"`
	Content           *Content `json:"content,omitempty"`
	ReadLink          *string  `json:"read_link,omitempty"`
	EditLink          *string  `json:"edit_link,omitempty"`
}

func (p DocumentPatch) IsEmpty() bool {
	return p.Title == nil && p.CharCount == nil && p.CharCountNoSpaces == nil && p.WordCount == nil &&
		p.Content == nil && p.ReadLink == nil && p.EditLink == nil
}

func (p DocumentPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ValidationError{Field: DocumentFieldTitle, Reason: "must not be empty"}
	}
	counters := map[string]*int{
		DocumentFieldCharCount:         p.CharCount,
		DocumentFieldCharCountNoSpaces: p.CharCountNoSpaces,
		DocumentFieldWordCount:         p.WordCount,
	}
	for field, v := range counters {
		if v != nil && *v < 0 {
			return ValidationError{Field: field, Reason: "must not be negative"}
		}
	}
	if p.Content != nil {
		if err := p.Content.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Fields returns the changed fields keyed by field name.
func (p DocumentPatch) Fields() map[string]any {
	fields := map[string]any{}
	if p.Title != nil {
		fields[DocumentFieldTitle] = *p.Title
	}
	if p.CharCount != nil {
		fields[DocumentFieldCharCount] = *p.CharCount
	}
	if p.CharCountNoSpaces != nil {
		fields[DocumentFieldCharCountNoSpaces] = *p.CharCountNoSpaces
	}
	if p.WordCount != nil {
		fields[DocumentFieldWordCount] = *p.WordCount
	}
	if p.Content != nil {
		fields[DocumentFieldContent] = *p.Content
	}
	if p.ReadLink != nil {
		fields[DocumentFieldReadLink] = *p.ReadLink
	}
	if p.EditLink != nil {
		fields[DocumentFieldEditLink] = *p.EditLink
	}
	return fields
}

func (p DocumentPatch) Apply(d *Document) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.CharCount != nil {
		d.CharCount = *p.CharCount
	}
	if p.CharCountNoSpaces != nil {
		d.CharCountNoSpaces = *p.CharCountNoSpaces
	}
	if p.WordCount != nil {
		d.WordCount = *p.WordCount
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
	if p.ReadLink != nil {
		d.ReadLink = emptyToNil(*p.ReadLink)
	}
	if p.EditLink != nil {
		d.EditLink = emptyToNil(*p.EditLink)
	}
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// DocumentUpdate is a single find-and-update against a document.
type DocumentUpdate struct {
	Set      DocumentPatch
	EditDate *time.Time
	AddRead  IDs
	AddEdit  IDs
	PullRead IDs
	PullEdit IDs
}

// PermissionDelta is a requested change to the permission sets of a document.
type PermissionDelta struct {
	Read IDs `json:"read"`
	Edit IDs `json:"edit"`
}

func (d PermissionDelta) IsEmpty() bool {
	return len(d.Read) == 0 && len(d.Edit) == 0
}

func (d PermissionDelta) Fields() map[string]any {
	return map[string]any{
		DocumentFieldPermRead: d.Read.Strings(),
		DocumentFieldPermEdit: d.Edit.Strings(),
	}
}

func (u DocumentUpdate) IsEmpty() bool {
	return u.Set.IsEmpty() && u.EditDate == nil &&
		len(u.AddRead) == 0 && len(u.AddEdit) == 0 && len(u.PullRead) == 0 && len(u.PullEdit) == 0
}

// Validate rejects updates that both add to and pull from the same permission set.
func (u DocumentUpdate) Validate() error {
	if len(u.AddRead) > 0 && len(u.PullRead) > 0 {
		return ValidationError{Field: DocumentFieldPermRead, Reason: "cannot add and remove at once"}
	}
	if len(u.AddEdit) > 0 && len(u.PullEdit) > 0 {
		return ValidationError{Field: DocumentFieldPermEdit, Reason: "cannot add and remove at once"}
	}
	return u.Set.Validate()
}
