package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/quire/internal/domain"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	alice := domain.User{ID: domain.NewID(), Username: "alice", Email: "alice@example.com", Password: "hash"}
	require.NoError(t, repo.Insert(ctx, alice))

	err := repo.Insert(ctx, domain.User{ID: domain.NewID(), Username: "alice"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	got, err := repo.FindOne(ctx, domain.UserByUsername("alice"), []string{domain.UserFieldEmail})
	require.NoError(t, err)
	assert.Equal(t, domain.User{Email: "alice@example.com"}, got)

	_, err = repo.FindOne(ctx, domain.UserByUsername("bob"), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	email := "a@example.com"
	updated, err := repo.Update(ctx, alice.ID, domain.UserPatch{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)

	n, err := repo.Delete(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDocumentRepositoryPermissions(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository()

	owner, reader, editor := domain.NewID(), domain.NewID(), domain.NewID()
	doc := domain.NewDocument(owner, "", time.Now())
	require.NoError(t, repo.Insert(ctx, doc))

	n, err := repo.Count(ctx, domain.DocumentFilter{ID: &doc.ID, ReadHasAll: domain.IDs{owner}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	updated, err := repo.Update(ctx, doc.ID, domain.DocumentUpdate{
		AddRead: domain.IDs{reader, owner},
		AddEdit: domain.IDs{editor},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IDs{owner, reader}, updated.PermRead)
	assert.Equal(t, domain.IDs{owner, editor}, updated.PermEdit)

	updated, err = repo.Update(ctx, doc.ID, domain.DocumentUpdate{PullRead: domain.IDs{owner}})
	require.NoError(t, err)
	assert.Equal(t, domain.IDs{reader}, updated.PermRead)

	docs, err := repo.Find(ctx, domain.DocumentFilter{AvailableTo: &editor}, []string{domain.DocumentFieldID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].ID.Equal(doc.ID))
	assert.Empty(t, docs[0].Title)

	stranger := domain.NewID()
	docs, err = repo.Find(ctx, domain.DocumentFilter{AvailableTo: &stranger}, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = repo.Update(ctx, doc.ID, domain.DocumentUpdate{AddRead: domain.IDs{editor}, PullRead: domain.IDs{reader}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = repo.Update(ctx, domain.NewID(), domain.DocumentUpdate{AddRead: domain.IDs{editor}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentRepositoryDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository()

	owner := domain.NewID()
	doc := domain.NewDocument(owner, "Notes", time.Now())
	require.NoError(t, repo.Insert(ctx, doc))

	got, err := repo.FindOne(ctx, domain.DocumentByID(doc.ID), nil)
	require.NoError(t, err)
	got.PermRead[0] = domain.NewID()

	*got.Content[0].Children[0].Text = "changed"
	got.Content[0].Attributes = map[string]any{"align": "left"}

	again, err := repo.FindOne(ctx, domain.DocumentByID(doc.ID), nil)
	require.NoError(t, err)
	assert.True(t, again.PermRead[0].Equal(owner))
	assert.Equal(t, domain.DefaultContent(), again.Content)

	content := domain.Content{{Type: domain.NodeParagraph, Attributes: map[string]any{"align": "center"}, Children: []domain.Node{domain.TextNode("hi")}}}
	updated, err := repo.Update(ctx, doc.ID, domain.DocumentUpdate{Set: domain.DocumentPatch{Content: &content}})
	require.NoError(t, err)
	content[0].Attributes["align"] = "right"
	updated.Content[0].Attributes["align"] = "justify"

	again, err = repo.FindOne(ctx, domain.DocumentByID(doc.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, "center", again.Content[0].Attributes["align"])
}

func TestDocumentRepositoryEmptyUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository()

	doc := domain.NewDocument(domain.NewID(), "Notes", time.Now())
	require.NoError(t, repo.Insert(ctx, doc))

	got, err := repo.Update(ctx, doc.ID, domain.DocumentUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Notes", got.Title)

	_, err = repo.Update(ctx, domain.NewID(), domain.DocumentUpdate{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentRepositoryLinks(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository()

	doc := domain.NewDocument(domain.NewID(), "Notes", time.Now())
	require.NoError(t, repo.Insert(ctx, doc))

	token := "tok"
	_, err := repo.Update(ctx, doc.ID, domain.DocumentUpdate{Set: domain.DocumentPatch{ReadLink: &token}})
	require.NoError(t, err)

	found, err := repo.FindOne(ctx, domain.DocumentFilter{ReadLink: &token}, nil)
	require.NoError(t, err)
	assert.True(t, found.ID.Equal(doc.ID))

	_, err = repo.FindOne(ctx, domain.DocumentFilter{EditLink: &token}, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
