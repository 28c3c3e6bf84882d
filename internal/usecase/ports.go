package usecase

import (
	"context"

	"github.com/totegamma/quire"
	"github.com/totegamma/quire/internal/domain"
)

// UserRepository defines storage operations for users.
// FindOne and Update return domain.ErrNotFound when nothing matches; Insert returns
// domain.ErrUsernameTaken when the store rejects a duplicate username.
type UserRepository interface {
	Find(ctx context.Context, filter domain.UserFilter, projection []string) ([]domain.User, error)
	FindOne(ctx context.Context, filter domain.UserFilter, projection []string) (domain.User, error)
	Count(ctx context.Context, filter domain.UserFilter) (int64, error)
	Insert(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, id domain.ID) (int64, error)
	Update(ctx context.Context, id domain.ID, patch domain.UserPatch) (domain.User, error)
}

// DocumentRepository defines storage operations for documents.
type DocumentRepository interface {
	Find(ctx context.Context, filter domain.DocumentFilter, projection []string) ([]domain.Document, error)
	FindOne(ctx context.Context, filter domain.DocumentFilter, projection []string) (domain.Document, error)
	Count(ctx context.Context, filter domain.DocumentFilter) (int64, error)
	Insert(ctx context.Context, doc domain.Document) error
	Delete(ctx context.Context, id domain.ID) (int64, error)
	Update(ctx context.Context, id domain.ID, update domain.DocumentUpdate) (domain.Document, error)
}

// EventPublisher emits change notifications. Publishing never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, name string, typ quire.EventType, subject quire.Subject, data map[string]any)
}

// PasswordHasher is the one-way credential hashing routine.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Compare(hashed, plaintext string) error
}
