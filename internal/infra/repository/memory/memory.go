// Package memory keeps users and documents in process memory. It backs local runs
// without a database and the HTTP tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/totegamma/quire/internal/domain"
)

type UserRepository struct {
	mu    sync.RWMutex
	users []domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func matchUser(u domain.User, f domain.UserFilter) bool {
	if f.ID != nil && !u.ID.Equal(*f.ID) {
		return false
	}
	if f.IDs != nil && !f.IDs.Contains(u.ID) {
		return false
	}
	if f.Username != nil && u.Username != *f.Username {
		return false
	}
	if f.Email != nil && u.Email != *f.Email {
		return false
	}
	if f.Token != nil && u.Token != *f.Token {
		return false
	}
	if f.EmailVerified != nil && u.EmailVerified != *f.EmailVerified {
		return false
	}
	return true
}

func projectUser(u domain.User, fields []string) domain.User {
	if len(fields) == 0 {
		return u
	}
	var p domain.User
	for _, f := range fields {
		switch f {
		case domain.UserFieldID:
			p.ID = u.ID
		case domain.UserFieldUsername:
			p.Username = u.Username
		case domain.UserFieldEmail:
			p.Email = u.Email
		case domain.UserFieldPassword:
			p.Password = u.Password
		case domain.UserFieldToken:
			p.Token = u.Token
		case domain.UserFieldEmailVerified:
			p.EmailVerified = u.EmailVerified
		case domain.UserFieldJoinDate:
			p.JoinDate = u.JoinDate
		}
	}
	return p
}

func (r *UserRepository) Find(ctx context.Context, filter domain.UserFilter, projection []string) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []domain.User{}
	for _, u := range r.users {
		if matchUser(u, filter) {
			result = append(result, projectUser(u, projection))
		}
	}
	return result, nil
}

func (r *UserRepository) FindOne(ctx context.Context, filter domain.UserFilter, projection []string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if matchUser(u, filter) {
			return projectUser(u, projection), nil
		}
	}
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

func (r *UserRepository) Count(ctx context.Context, filter domain.UserFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.users {
		if matchUser(u, filter) {
			n++
		}
	}
	return n, nil
}

func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
		if u.ID.Equal(user.ID) {
			return domain.ConflictError{Resource: "user", Field: "id"}
		}
	}
	r.users = append(r.users, user)
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id domain.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, u := range r.users {
		if u.ID.Equal(id) {
			r.users = slices.Delete(r.users, i, i+1)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *UserRepository) Update(ctx context.Context, id domain.ID, patch domain.UserPatch) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if patch.Username != nil {
		for _, u := range r.users {
			if u.Username == *patch.Username && !u.ID.Equal(id) {
				return domain.User{}, domain.ErrUsernameTaken
			}
		}
	}
	for i := range r.users {
		if r.users[i].ID.Equal(id) {
			patch.Apply(&r.users[i])
			return r.users[i], nil
		}
	}
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

type DocumentRepository struct {
	mu   sync.RWMutex
	docs []domain.Document
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{}
}

func hasAll(set domain.IDs, ids domain.IDs) bool {
	for _, id := range ids {
		if !set.Contains(id) {
			return false
		}
	}
	return true
}

func hasNone(set domain.IDs, ids domain.IDs) bool {
	for _, id := range ids {
		if set.Contains(id) {
			return false
		}
	}
	return true
}

func linkEquals(link *string, want *string) bool {
	return want == nil || (link != nil && *link == *want)
}

func matchDocument(d domain.Document, f domain.DocumentFilter) bool {
	if f.ID != nil && !d.ID.Equal(*f.ID) {
		return false
	}
	if f.IDs != nil && !f.IDs.Contains(d.ID) {
		return false
	}
	if f.Owner != nil && !d.Owner.Equal(*f.Owner) {
		return false
	}
	if f.Title != nil && d.Title != *f.Title {
		return false
	}
	if !linkEquals(d.ReadLink, f.ReadLink) || !linkEquals(d.EditLink, f.EditLink) {
		return false
	}
	if !hasAll(d.PermRead, f.ReadHasAll) || !hasAll(d.PermEdit, f.EditHasAll) {
		return false
	}
	if !hasNone(d.PermRead, f.ReadHasNone) || !hasNone(d.PermEdit, f.EditHasNone) {
		return false
	}
	if f.AvailableTo != nil {
		u := *f.AvailableTo
		if !d.Owner.Equal(u) && !d.PermRead.Contains(u) && !d.PermEdit.Contains(u) {
			return false
		}
	}
	return true
}

// clone detaches the permission sets, content and links so callers never alias stored data.
func clone(d domain.Document) domain.Document {
	d.PermRead = slices.Clone(d.PermRead)
	d.PermEdit = slices.Clone(d.PermEdit)
	d.Content = d.Content.Clone()
	d.ReadLink = cloneString(d.ReadLink)
	d.EditLink = cloneString(d.EditLink)
	return d
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func projectDocument(d domain.Document, fields []string) domain.Document {
	d = clone(d)
	if len(fields) == 0 {
		return d
	}
	var p domain.Document
	for _, f := range fields {
		switch f {
		case domain.DocumentFieldID:
			p.ID = d.ID
		case domain.DocumentFieldTitle:
			p.Title = d.Title
		case domain.DocumentFieldCharCount:
			p.CharCount = d.CharCount
		case domain.DocumentFieldCharCountNoSpaces:
			p.CharCountNoSpaces = d.CharCountNoSpaces
		case domain.DocumentFieldWordCount:
			p.WordCount = d.WordCount
		case domain.DocumentFieldContent:
			p.Content = d.Content
		case domain.DocumentFieldPermRead:
			p.PermRead = d.PermRead
		case domain.DocumentFieldPermEdit:
			p.PermEdit = d.PermEdit
		case domain.DocumentFieldOwner:
			p.Owner = d.Owner
		case domain.DocumentFieldReadLink:
			p.ReadLink = d.ReadLink
		case domain.DocumentFieldEditLink:
			p.EditLink = d.EditLink
		case domain.DocumentFieldCreationDate:
			p.CreationDate = d.CreationDate
		case domain.DocumentFieldEditDate:
			p.EditDate = d.EditDate
		}
	}
	return p
}

func (r *DocumentRepository) Find(ctx context.Context, filter domain.DocumentFilter, projection []string) ([]domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []domain.Document{}
	for _, d := range r.docs {
		if matchDocument(d, filter) {
			result = append(result, projectDocument(d, projection))
		}
	}
	return result, nil
}

func (r *DocumentRepository) FindOne(ctx context.Context, filter domain.DocumentFilter, projection []string) (domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.docs {
		if matchDocument(d, filter) {
			return projectDocument(d, projection), nil
		}
	}
	return domain.Document{}, domain.NotFoundError{Resource: "document"}
}

func (r *DocumentRepository) Count(ctx context.Context, filter domain.DocumentFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, d := range r.docs {
		if matchDocument(d, filter) {
			n++
		}
	}
	return n, nil
}

func (r *DocumentRepository) Insert(ctx context.Context, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ID.Equal(doc.ID) {
			return domain.ConflictError{Resource: "document", Field: "id"}
		}
	}
	r.docs = append(r.docs, clone(doc))
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id domain.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.docs {
		if d.ID.Equal(id) {
			r.docs = slices.Delete(r.docs, i, i+1)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *DocumentRepository) Update(ctx context.Context, id domain.ID, update domain.DocumentUpdate) (domain.Document, error) {
	if err := update.Validate(); err != nil {
		return domain.Document{}, err
	}

	if update.IsEmpty() {
		return r.FindOne(ctx, domain.DocumentByID(id), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.docs {
		d := &r.docs[i]
		if !d.ID.Equal(id) {
			continue
		}
		update.Set.Apply(d)
		if update.Set.Content != nil {
			d.Content = d.Content.Clone()
		}
		if update.EditDate != nil {
			d.EditDate = *update.EditDate
		}
		d.PermRead = d.PermRead.Union(update.AddRead).Difference(update.PullRead)
		d.PermEdit = d.PermEdit.Union(update.AddEdit).Difference(update.PullEdit)
		return clone(*d), nil
	}
	return domain.Document{}, domain.NotFoundError{Resource: "document"}
}
