package postgres

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/quire/internal/domain"
	"github.com/totegamma/quire/internal/infra/database/models"
)

var userColumns = map[string]string{
	domain.UserFieldID:            "id",
	domain.UserFieldEmailVerified: "email_verified",
	domain.UserFieldJoinDate:      "join_date",
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func userConditions(filter domain.UserFilter) conditions {
	var c conditions
	if filter.ID != nil {
		c.add("id = ?", filter.ID.String())
	}
	if filter.IDs != nil {
		c.add("id IN ?", nonEmpty(filter.IDs.Strings()))
	}
	if filter.Username != nil {
		c.add("username = ?", *filter.Username)
	}
	if filter.Email != nil {
		c.add("email = ?", *filter.Email)
	}
	if filter.Token != nil {
		c.add("token = ?", *filter.Token)
	}
	if filter.EmailVerified != nil {
		c.add("email_verified = ?", *filter.EmailVerified)
	}
	return c
}

// nonEmpty keeps "IN ?" valid SQL for an empty set while still matching nothing.
func nonEmpty(values []string) []string {
	if len(values) == 0 {
		return []string{""}
	}
	return values
}

func userFromModel(m models.User) (domain.User, error) {
	id, err := parseOptionalID(m.ID)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:            id,
		Username:      m.Username,
		Email:         m.Email,
		Password:      m.Password,
		Token:         m.Token,
		EmailVerified: m.EmailVerified,
		JoinDate:      m.JoinDate,
	}, nil
}

func userToModel(u domain.User) models.User {
	return models.User{
		ID:            u.ID.String(),
		Username:      u.Username,
		Email:         u.Email,
		Password:      u.Password,
		Token:         u.Token,
		EmailVerified: u.EmailVerified,
		JoinDate:      u.JoinDate,
	}
}

func userAssignments(patch domain.UserPatch) map[string]any {
	assign := map[string]any{}
	if patch.Username != nil {
		assign["username"] = *patch.Username
	}
	if patch.Email != nil {
		assign["email"] = *patch.Email
	}
	if patch.Password != nil {
		assign["password"] = *patch.Password
	}
	if patch.Token != nil {
		assign["token"] = *patch.Token
	}
	if patch.EmailVerified != nil {
		assign["email_verified"] = *patch.EmailVerified
	}
	return assign
}

func (r *UserRepository) Find(ctx context.Context, filter domain.UserFilter, projection []string) ([]domain.User, error) {
	rows, err := find[models.User](ctx, r.db, userConditions(filter), columns(projection, userColumns))
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		u, err := userFromModel(row)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *UserRepository) FindOne(ctx context.Context, filter domain.UserFilter, projection []string) (domain.User, error) {
	row, err := findOne[models.User](ctx, r.db, userConditions(filter), columns(projection, userColumns), "user")
	if err != nil {
		return domain.User{}, err
	}
	return userFromModel(row)
}

func (r *UserRepository) Count(ctx context.Context, filter domain.UserFilter) (int64, error) {
	return count[models.User](ctx, r.db, userConditions(filter))
}

func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	m := userToModel(user)
	err := r.db.WithContext(ctx).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrUsernameTaken
	}
	return err
}

func (r *UserRepository) Delete(ctx context.Context, id domain.ID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.User{})
	return res.RowsAffected, res.Error
}

func (r *UserRepository) Update(ctx context.Context, id domain.ID, patch domain.UserPatch) (domain.User, error) {
	assign := userAssignments(patch)
	if len(assign) == 0 {
		return r.FindOne(ctx, domain.UserByID(id), nil)
	}

	var m models.User
	res := r.db.WithContext(ctx).
		Model(&m).
		Clauses(clause.Returning{}).
		Where("id = ?", id.String()).
		Updates(assign)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return domain.User{}, domain.ErrUsernameTaken
	}
	if res.Error != nil {
		return domain.User{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return userFromModel(m)
}
