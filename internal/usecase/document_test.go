package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/quire"
	"github.com/totegamma/quire/internal/domain"
)

type documentFixture struct {
	uc     *DocumentUsecase
	users  *UserUsecase
	repo   *fakeDocumentRepo
	events *recordedEvents
	clock  *clock
}

func newDocumentFixture() documentFixture {
	userRepo := newFakeUserRepo()
	docRepo := &fakeDocumentRepo{}
	events := &recordedEvents{}
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	users := NewUserUsecase(userRepo, prefixHasher{}, events)
	users.now = c.now
	docs := NewDocumentUsecase(docRepo, userRepo, events)
	docs.now = c.now

	return documentFixture{uc: docs, users: users, repo: docRepo, events: events, clock: c}
}

func (f documentFixture) user(t *testing.T, name string) domain.ID {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), CreateUserInput{Username: name, Password: "pw"}, true)
	require.NoError(t, err)
	return u.ID
}

func TestCreateDocument(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	owner := f.user(t, "alice")

	doc, err := f.uc.CreateDocument(ctx, owner, "", true)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, domain.DefaultTitle, doc.Title)
	assert.Equal(t, domain.DefaultContent(), doc.Content)
	assert.Equal(t, domain.IDs{owner}, doc.PermRead)
	assert.Equal(t, domain.IDs{owner}, doc.PermEdit)
	assert.Equal(t, f.clock.t, doc.CreationDate)
	assert.Equal(t, f.clock.t, doc.EditDate)

	adds := f.events.ofType(quire.EventAdd)
	require.Len(t, adds, 2)
	assert.Equal(t, quire.Subject{Type: quire.SubjectDocument, ID: doc.ID.String()}, adds[1].Subject)

	titled, err := f.uc.CreateDocument(ctx, owner, "Plans", false)
	require.NoError(t, err)
	assert.Nil(t, titled)
	found, err := f.uc.FindDocument(ctx, domain.DocumentFilter{Title: ptr("Plans")})
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestCreateDocumentOwnerMissing(t *testing.T) {
	f := newDocumentFixture()
	_, err := f.uc.CreateDocument(context.Background(), domain.NewID(), "orphan", true)
	assert.True(t, errors.Is(err, domain.ErrReference))
	assert.Empty(t, f.repo.docs)
	assert.Empty(t, f.events.ofType(quire.EventAdd))
}

func TestDeleteDocumentAbsent(t *testing.T) {
	f := newDocumentFixture()
	missing := domain.NewID()
	require.NoError(t, f.uc.DeleteDocument(context.Background(), missing))

	removes := f.events.ofType(quire.EventRemove)
	require.Len(t, removes, 1)
	assert.Equal(t, quire.Subject{Type: quire.SubjectDocument, ID: missing.String()}, removes[0].Subject)
}

func TestSetDocumentStampsEditDate(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	owner := f.user(t, "alice")
	doc, err := f.uc.CreateDocument(ctx, owner, "", true)
	require.NoError(t, err)

	f.clock.advance(time.Hour)
	title := "Renamed"
	words := 2
	updated, err := f.uc.SetDocument(ctx, doc.ID, domain.DocumentPatch{Title: &title, WordCount: &words}, true)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 2, updated.WordCount)
	assert.Equal(t, f.clock.t, updated.EditDate)
	assert.Equal(t, doc.CreationDate, updated.CreationDate)

	changes := f.events.ofType(quire.EventChange)
	require.Len(t, changes, 1)
	assert.Equal(t, map[string]any{domain.DocumentFieldTitle: "Renamed", domain.DocumentFieldWordCount: 2}, changes[0].Data)

	_, err = f.uc.SetDocument(ctx, domain.NewID(), domain.DocumentPatch{Title: &title}, true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSetContent(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	owner := f.user(t, "alice")
	doc, err := f.uc.CreateDocument(ctx, owner, "", true)
	require.NoError(t, err)

	content := domain.Content{{Type: "heading", Children: []domain.Node{domain.TextNode("Hello")}}}
	updated, err := f.uc.SetContent(ctx, doc.ID, content, true)
	require.NoError(t, err)
	assert.Equal(t, content, updated.Content)

	_, err = f.uc.SetContent(ctx, doc.ID, domain.Content{}, true)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.uc.SetContent(ctx, domain.NewID(), content, false)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAddPermissionsRedundant(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	a := f.user(t, "alice")
	doc, err := f.uc.CreateDocument(ctx, a, "", true)
	require.NoError(t, err)
	updatesBefore := f.repo.updates

	f.clock.advance(time.Minute)
	for i := 0; i < 2; i++ {
		result, err := f.uc.AddPermissions(ctx, doc.ID, domain.PermissionDelta{Read: domain.IDs{a}}, true)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, doc.EditDate, result.EditDate)
		assert.Equal(t, domain.IDs{a}, result.PermRead)
	}

	assert.Empty(t, f.events.ofType(quire.EventChange))
	assert.Equal(t, updatesBefore, f.repo.updates)
}

func TestEmptyPermissionDelta(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	a := f.user(t, "alice")
	doc, err := f.uc.CreateDocument(ctx, a, "", true)
	require.NoError(t, err)
	updatesBefore := f.repo.updates

	added, err := f.uc.AddPermissions(ctx, doc.ID, domain.PermissionDelta{}, true)
	require.NoError(t, err)
	assert.Equal(t, domain.IDs{a}, added.PermRead)

	removed, err := f.uc.RemovePermissions(ctx, doc.ID, domain.PermissionDelta{Read: domain.IDs{}}, true)
	require.NoError(t, err)
	assert.Equal(t, domain.IDs{a}, removed.PermEdit)

	_, err = f.uc.AddPermissions(ctx, domain.NewID(), domain.PermissionDelta{}, false)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.Empty(t, f.events.ofType(quire.EventChange))
	assert.Equal(t, updatesBefore, f.repo.updates)
}

func TestAddPermissions(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	doc, err := f.uc.CreateDocument(ctx, a, "", true)
	require.NoError(t, err)

	f.clock.advance(time.Minute)
	delta := domain.PermissionDelta{Read: domain.IDs{a, b}, Edit: domain.IDs{b}}
	updated, err := f.uc.AddPermissions(ctx, doc.ID, delta, true)
	require.NoError(t, err)
	assert.Equal(t, domain.IDs{a, b}, updated.PermRead)
	assert.Equal(t, domain.IDs{a, b}, updated.PermEdit)
	assert.Equal(t, f.clock.t, updated.EditDate)

	changes := f.events.ofType(quire.EventChange)
	require.Len(t, changes, 1)
	assert.Equal(t, delta.Fields(), changes[0].Data)

	// repeating the same grant is now a no-op
	_, err = f.uc.AddPermissions(ctx, doc.ID, delta, false)
	require.NoError(t, err)
	assert.Len(t, f.events.ofType(quire.EventChange), 1)

	_, err = f.uc.AddPermissions(ctx, domain.NewID(), delta, true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRemovePermissions(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	doc, err := f.uc.CreateDocument(ctx, a, "", true)
	require.NoError(t, err)
	_, err = f.uc.AddPermissions(ctx, doc.ID, domain.PermissionDelta{Read: domain.IDs{b}}, false)
	require.NoError(t, err)
	changesBefore := len(f.events.ofType(quire.EventChange))

	// none of the ids are present
	before, err := f.uc.FindDocument(ctx, domain.DocumentByID(doc.ID))
	require.NoError(t, err)
	f.clock.advance(time.Minute)
	result, err := f.uc.RemovePermissions(ctx, doc.ID, domain.PermissionDelta{Read: domain.IDs{domain.NewID()}, Edit: domain.IDs{b}}, true)
	require.NoError(t, err)
	assert.Equal(t, before.EditDate, result.EditDate)
	assert.Len(t, f.events.ofType(quire.EventChange), changesBefore)

	// b is a reader
	f.clock.advance(time.Minute)
	result, err = f.uc.RemovePermissions(ctx, doc.ID, domain.PermissionDelta{Read: domain.IDs{b}}, true)
	require.NoError(t, err)
	assert.Equal(t, domain.IDs{a}, result.PermRead)
	assert.Equal(t, f.clock.t, result.EditDate)
	assert.Len(t, f.events.ofType(quire.EventChange), changesBefore+1)

	_, err = f.uc.RemovePermissions(ctx, domain.NewID(), domain.PermissionDelta{Read: domain.IDs{b}}, true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetUserPermissions(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	owner := f.user(t, "alice")
	reader := f.user(t, "bob")
	doc, err := f.uc.CreateDocument(ctx, owner, "", true)
	require.NoError(t, err)

	perms, err := f.uc.GetUserPermissions(ctx, owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Permissions{domain.PermissionRead, domain.PermissionEdit, domain.PermissionOwner}, perms)

	// owner keeps "owner" after losing read and edit
	_, err = f.uc.RemovePermissions(ctx, doc.ID, domain.PermissionDelta{Read: domain.IDs{owner}, Edit: domain.IDs{owner}}, false)
	require.NoError(t, err)
	perms, err = f.uc.GetUserPermissions(ctx, owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Permissions{domain.PermissionOwner}, perms)
	assert.NotContains(t, perms, domain.PermissionRead)

	_, err = f.uc.AddPermissions(ctx, doc.ID, domain.PermissionDelta{Read: domain.IDs{reader}}, false)
	require.NoError(t, err)
	perms, err = f.uc.GetUserPermissions(ctx, reader, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Permissions{domain.PermissionRead}, perms)

	_, err = f.uc.GetUserPermissions(ctx, owner, domain.NewID())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDocumentsAvailable(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	u := f.user(t, "alice")
	other := f.user(t, "bob")

	owned, err := f.uc.CreateDocument(ctx, u, "owned", true)
	require.NoError(t, err)
	readable, err := f.uc.CreateDocument(ctx, other, "readable", true)
	require.NoError(t, err)
	editable, err := f.uc.CreateDocument(ctx, other, "editable", true)
	require.NoError(t, err)
	both, err := f.uc.CreateDocument(ctx, other, "both", true)
	require.NoError(t, err)
	_, err = f.uc.CreateDocument(ctx, other, "private", true)
	require.NoError(t, err)

	_, err = f.uc.AddPermissions(ctx, readable.ID, domain.PermissionDelta{Read: domain.IDs{u}}, false)
	require.NoError(t, err)
	_, err = f.uc.AddPermissions(ctx, editable.ID, domain.PermissionDelta{Edit: domain.IDs{u}}, false)
	require.NoError(t, err)
	_, err = f.uc.AddPermissions(ctx, both.ID, domain.PermissionDelta{Read: domain.IDs{u}, Edit: domain.IDs{u}}, false)
	require.NoError(t, err)

	docs, err := f.uc.DocumentsAvailable(ctx, u)
	require.NoError(t, err)

	titles := []string{}
	for _, d := range docs {
		titles = append(titles, d.Title)
	}
	assert.ElementsMatch(t, []string{owned.Title, readable.Title, editable.Title, both.Title}, titles)
}

func TestIsValidDocumentID(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	owner := f.user(t, "alice")
	doc, err := f.uc.CreateDocument(ctx, owner, "", true)
	require.NoError(t, err)

	ok, err := f.uc.IsValidDocumentID(ctx, doc.ID.String())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.uc.IsValidDocumentID(ctx, "xyz")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShareLinks(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	owner := f.user(t, "alice")
	doc, err := f.uc.CreateDocument(ctx, owner, "", true)
	require.NoError(t, err)

	readToken, err := f.uc.CreateShareLink(ctx, doc.ID, domain.PermissionRead)
	require.NoError(t, err)
	editToken, err := f.uc.CreateShareLink(ctx, doc.ID, domain.PermissionEdit)
	require.NoError(t, err)
	assert.NotEqual(t, readToken, editToken)

	found, perm, err := f.uc.FindDocumentByLink(ctx, readToken)
	require.NoError(t, err)
	assert.True(t, found.ID.Equal(doc.ID))
	assert.Equal(t, domain.PermissionRead, perm)

	_, perm, err = f.uc.FindDocumentByLink(ctx, editToken)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionEdit, perm)

	require.NoError(t, f.uc.RevokeShareLink(ctx, doc.ID, domain.PermissionRead))
	_, _, err = f.uc.FindDocumentByLink(ctx, readToken)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.uc.CreateShareLink(ctx, doc.ID, domain.PermissionOwner)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func ptr[T any](v T) *T { return &v }
