package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/totegamma/quire"
	"github.com/totegamma/quire/internal/domain"
)

// --- users ---

type fakeUserRepo struct {
	mu            sync.Mutex
	users         []domain.User
	enforceUnique bool
	afterCount    func()
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{enforceUnique: true}
}

func matchUser(u domain.User, f domain.UserFilter) bool {
	if f.ID != nil && !u.ID.Equal(*f.ID) {
		return false
	}
	if len(f.IDs) > 0 && !f.IDs.Contains(u.ID) {
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

func (r *fakeUserRepo) Find(ctx context.Context, filter domain.UserFilter, projection []string) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []domain.User{}
	for _, u := range r.users {
		if matchUser(u, filter) {
			result = append(result, u)
		}
	}
	return result, nil
}

func (r *fakeUserRepo) FindOne(ctx context.Context, filter domain.UserFilter, projection []string) (domain.User, error) {
	users, _ := r.Find(ctx, filter, projection)
	if len(users) == 0 {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return users[0], nil
}

func (r *fakeUserRepo) Count(ctx context.Context, filter domain.UserFilter) (int64, error) {
	users, _ := r.Find(ctx, filter, nil)
	if r.afterCount != nil {
		r.afterCount()
	}
	return int64(len(users)), nil
}

func (r *fakeUserRepo) Insert(ctx context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enforceUnique {
		for _, u := range r.users {
			if u.Username == user.Username {
				return domain.ErrUsernameTaken
			}
		}
	}
	r.users = append(r.users, user)
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id domain.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, u := range r.users {
		if u.ID.Equal(id) {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, id domain.ID, patch domain.UserPatch) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ID.Equal(id) {
			patch.Apply(&r.users[i])
			return r.users[i], nil
		}
	}
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

// --- documents ---

type fakeDocumentRepo struct {
	mu      sync.Mutex
	docs    []domain.Document
	updates int
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

func matchDocument(d domain.Document, f domain.DocumentFilter) bool {
	if f.ID != nil && !d.ID.Equal(*f.ID) {
		return false
	}
	if len(f.IDs) > 0 && !f.IDs.Contains(d.ID) {
		return false
	}
	if f.Owner != nil && !d.Owner.Equal(*f.Owner) {
		return false
	}
	if f.Title != nil && d.Title != *f.Title {
		return false
	}
	if f.ReadLink != nil && (d.ReadLink == nil || *d.ReadLink != *f.ReadLink) {
		return false
	}
	if f.EditLink != nil && (d.EditLink == nil || *d.EditLink != *f.EditLink) {
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

func (r *fakeDocumentRepo) Find(ctx context.Context, filter domain.DocumentFilter, projection []string) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []domain.Document{}
	for _, d := range r.docs {
		if matchDocument(d, filter) {
			result = append(result, d)
		}
	}
	return result, nil
}

func (r *fakeDocumentRepo) FindOne(ctx context.Context, filter domain.DocumentFilter, projection []string) (domain.Document, error) {
	docs, _ := r.Find(ctx, filter, projection)
	if len(docs) == 0 {
		return domain.Document{}, domain.NotFoundError{Resource: "document"}
	}
	return docs[0], nil
}

func (r *fakeDocumentRepo) Count(ctx context.Context, filter domain.DocumentFilter) (int64, error) {
	docs, _ := r.Find(ctx, filter, nil)
	return int64(len(docs)), nil
}

func (r *fakeDocumentRepo) Insert(ctx context.Context, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

func (r *fakeDocumentRepo) Delete(ctx context.Context, id domain.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.docs {
		if d.ID.Equal(id) {
			r.docs = append(r.docs[:i], r.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeDocumentRepo) Update(ctx context.Context, id domain.ID, update domain.DocumentUpdate) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.docs {
		d := &r.docs[i]
		if !d.ID.Equal(id) {
			continue
		}
		r.updates++
		update.Set.Apply(d)
		if update.EditDate != nil {
			d.EditDate = *update.EditDate
		}
		d.PermRead = d.PermRead.Union(update.AddRead).Difference(update.PullRead)
		d.PermEdit = d.PermEdit.Union(update.AddEdit).Difference(update.PullEdit)
		return *d, nil
	}
	return domain.Document{}, domain.NotFoundError{Resource: "document"}
}

// --- collaborators ---

type recordedEvents struct {
	mu     sync.Mutex
	events []quire.Event
}

func (r *recordedEvents) Publish(ctx context.Context, name string, typ quire.EventType, subject quire.Subject, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, quire.Event{Name: name, Type: typ, Subject: subject, Data: data})
}

func (r *recordedEvents) ofType(typ quire.EventType) []quire.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []quire.Event{}
	for _, e := range r.events {
		if e.Type == typ {
			result = append(result, e)
		}
	}
	return result
}

type prefixHasher struct{}

func (prefixHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	return "hashed$" + plaintext, nil
}

func (prefixHasher) Compare(hashed, plaintext string) error {
	if !strings.HasPrefix(hashed, "hashed$") || strings.TrimPrefix(hashed, "hashed$") != plaintext {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
