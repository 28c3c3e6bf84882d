package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/quire"
	"github.com/totegamma/quire/internal/domain"
)

var tracer = otel.Tracer("usecase")

type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Token    string
}

type UserUsecase struct {
	repo   UserRepository
	hasher PasswordHasher
	events EventPublisher
	now    func() time.Time
}

func NewUserUsecase(repo UserRepository, hasher PasswordHasher, events EventPublisher) *UserUsecase {
	return &UserUsecase{
		repo:   repo,
		hasher: hasher,
		events: events,
		now:    time.Now,
	}
}

// FindUser returns the first user matching filter, or nil when there is none.
func (uc *UserUsecase) FindUser(ctx context.Context, filter domain.UserFilter, projection ...string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "User.Usecase.FindUser")
	defer span.End()

	if err := domain.ValidateProjection(projection, domain.UserFields); err != nil {
		return nil, err
	}

	user, err := uc.repo.FindOne(ctx, filter, projection)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &user, nil
}

func (uc *UserUsecase) FindUsers(ctx context.Context, filter domain.UserFilter, projection ...string) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "User.Usecase.FindUsers")
	defer span.End()

	if err := domain.ValidateProjection(projection, domain.UserFields); err != nil {
		return nil, err
	}

	users, err := uc.repo.Find(ctx, filter, projection)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return users, nil
}

func (uc *UserUsecase) CountUsers(ctx context.Context, filter domain.UserFilter) (int64, error) {
	ctx, span := tracer.Start(ctx, "User.Usecase.CountUsers")
	defer span.End()

	count, err := uc.repo.Count(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return count, nil
}

func (uc *UserUsecase) UserExists(ctx context.Context, filter domain.UserFilter) (bool, error) {
	count, err := uc.CountUsers(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateUser registers a new account. The username check and the insert are two store
// calls; the unique index on username catches creators racing between them.
func (uc *UserUsecase) CreateUser(ctx context.Context, input CreateUserInput, returnCreated bool) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "User.Usecase.CreateUser")
	defer span.End()

	if strings.TrimSpace(input.Username) == "" {
		return nil, domain.ValidationError{Field: domain.UserFieldUsername, Reason: "must not be empty"}
	}
	if input.Password == "" {
		return nil, domain.ValidationError{Field: domain.UserFieldPassword, Reason: "must not be empty"}
	}

	taken, err := uc.UserExists(ctx, domain.UserByUsername(input.Username))
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}

	hashed, err := uc.hasher.Hash(ctx, input.Password)
	if err != nil {
		span.RecordError(errors.Wrap(err, "password hashing failed"))
		return nil, errors.Wrap(err, "password hashing failed")
	}

	user := domain.User{
		ID:            domain.NewID(),
		Username:      input.Username,
		Email:         input.Email,
		Password:      hashed,
		Token:         input.Token,
		EmailVerified: false,
		JoinDate:      uc.now().UTC(),
	}

	err = uc.repo.Insert(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("UserId", user.ID.String()))

	uc.events.Publish(ctx, quire.ChannelDatabase, quire.EventAdd, userSubject(user.ID), map[string]any{
		domain.UserFieldUsername: user.Username,
		domain.UserFieldEmail:    user.Email,
	})

	if !returnCreated {
		return nil, nil
	}
	return &user, nil
}

// DeleteUser removes the user if present. The remove event is published either way.
func (uc *UserUsecase) DeleteUser(ctx context.Context, id domain.ID) error {
	ctx, span := tracer.Start(ctx, "User.Usecase.DeleteUser")
	defer span.End()

	_, err := uc.repo.Delete(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}

	uc.events.Publish(ctx, quire.ChannelDatabase, quire.EventRemove, userSubject(id), nil)
	return nil
}

// SetUser merges patch into the user. An empty patch changes nothing and publishes nothing.
func (uc *UserUsecase) SetUser(ctx context.Context, id domain.ID, patch domain.UserPatch, returnUpdated bool) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "User.Usecase.SetUser")
	defer span.End()

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	exists, err := uc.UserExists(ctx, domain.UserByID(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NotFoundError{Resource: "user"}
	}

	if patch.IsEmpty() {
		if !returnUpdated {
			return nil, nil
		}
		return uc.FindUser(ctx, domain.UserByID(id))
	}

	if patch.Username != nil {
		holder, err := uc.FindUser(ctx, domain.UserByUsername(*patch.Username), domain.UserFieldID)
		if err != nil {
			return nil, err
		}
		if holder != nil && !holder.ID.Equal(id) {
			return nil, domain.ErrUsernameTaken
		}
	}

	stored := patch
	if patch.Password != nil {
		hashed, err := uc.hasher.Hash(ctx, *patch.Password)
		if err != nil {
			span.RecordError(errors.Wrap(err, "password hashing failed"))
			return nil, errors.Wrap(err, "password hashing failed")
		}
		stored.Password = &hashed
	}

	updated, err := uc.repo.Update(ctx, id, stored)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	uc.events.Publish(ctx, quire.ChannelDatabase, quire.EventChange, userSubject(id), patch.Fields())

	if !returnUpdated {
		return nil, nil
	}
	return &updated, nil
}

func (uc *UserUsecase) SetEmailVerified(ctx context.Context, id domain.ID) error {
	verified := true
	_, err := uc.SetUser(ctx, id, domain.UserPatch{EmailVerified: &verified}, false)
	return err
}

// IsValidUserID reports whether hex is a well formed id of an existing user.
func (uc *UserUsecase) IsValidUserID(ctx context.Context, hex string) (bool, error) {
	id, err := domain.ParseID(hex)
	if err != nil {
		return false, nil
	}
	return uc.UserExists(ctx, domain.UserByID(id))
}

func (uc *UserUsecase) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "User.Usecase.Authenticate")
	defer span.End()

	user, err := uc.FindUser(ctx, domain.UserByUsername(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if err := uc.hasher.Compare(user.Password, password); err != nil {
		span.RecordError(errors.Wrap(err, "password mismatch"))
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func userSubject(id domain.ID) quire.Subject {
	return quire.Subject{Type: quire.SubjectUser, ID: id.String()}
}
