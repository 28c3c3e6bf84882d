package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/totegamma/quire/internal/domain"
	"github.com/totegamma/quire/internal/infra/database"
)

type userRecord struct {
	ID            domain.ID `bson:"_id,omitempty"`
	Username      string    `bson:"username,omitempty"`
	Email         string    `bson:"email,omitempty"`
	Password      string    `bson:"password,omitempty"`
	Token         string    `bson:"token,omitempty"`
	EmailVerified bool      `bson:"emailVerified"`
	JoinDate      time.Time `bson:"joinDate,omitempty"`
}

func (r userRecord) toDomain() domain.User {
	return domain.User{
		ID:            r.ID,
		Username:      r.Username,
		Email:         r.Email,
		Password:      r.Password,
		Token:         r.Token,
		EmailVerified: r.EmailVerified,
		JoinDate:      r.JoinDate,
	}
}

func userRecordOf(u domain.User) userRecord {
	return userRecord(u)
}

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(database.CollectionUsers)}
}

func userFilter(filter domain.UserFilter) bson.D {
	var conds []bson.D
	if filter.ID != nil {
		conds = append(conds, eq("_id", filter.ID.ObjectID()))
	}
	if filter.IDs != nil {
		conds = append(conds, op("_id", "$in", objectIDs(filter.IDs)))
	}
	if filter.Username != nil {
		conds = append(conds, eq(domain.UserFieldUsername, *filter.Username))
	}
	if filter.Email != nil {
		conds = append(conds, eq(domain.UserFieldEmail, *filter.Email))
	}
	if filter.Token != nil {
		conds = append(conds, eq(domain.UserFieldToken, *filter.Token))
	}
	if filter.EmailVerified != nil {
		conds = append(conds, eq(domain.UserFieldEmailVerified, *filter.EmailVerified))
	}
	return and(conds)
}

func userUpdate(patch domain.UserPatch) bson.D {
	set := bson.D{}
	if patch.Username != nil {
		set = append(set, bson.E{Key: domain.UserFieldUsername, Value: *patch.Username})
	}
	if patch.Email != nil {
		set = append(set, bson.E{Key: domain.UserFieldEmail, Value: *patch.Email})
	}
	if patch.Password != nil {
		set = append(set, bson.E{Key: domain.UserFieldPassword, Value: *patch.Password})
	}
	if patch.Token != nil {
		set = append(set, bson.E{Key: domain.UserFieldToken, Value: *patch.Token})
	}
	if patch.EmailVerified != nil {
		set = append(set, bson.E{Key: domain.UserFieldEmailVerified, Value: *patch.EmailVerified})
	}
	if len(set) == 0 {
		return nil
	}
	return bson.D{{Key: "$set", Value: set}}
}

func (r *UserRepository) Find(ctx context.Context, filter domain.UserFilter, projection []string) ([]domain.User, error) {
	rows, err := find[userRecord](ctx, r.coll, userFilter(filter), projection)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}

func (r *UserRepository) FindOne(ctx context.Context, filter domain.UserFilter, projection []string) (domain.User, error) {
	row, err := findOne[userRecord](ctx, r.coll, userFilter(filter), projection, "user")
	if err != nil {
		return domain.User{}, err
	}
	return row.toDomain(), nil
}

func (r *UserRepository) Count(ctx context.Context, filter domain.UserFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, userFilter(filter))
}

func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	_, err := r.coll.InsertOne(ctx, userRecordOf(user))
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrUsernameTaken
	}
	return err
}

func (r *UserRepository) Delete(ctx context.Context, id domain.ID) (int64, error) {
	return deleteOne(ctx, r.coll, id)
}

func (r *UserRepository) Update(ctx context.Context, id domain.ID, patch domain.UserPatch) (domain.User, error) {
	update := userUpdate(patch)
	if update == nil {
		return r.FindOne(ctx, domain.UserByID(id), nil)
	}
	row, err := updateOne[userRecord](ctx, r.coll, id, update, "user")
	if mongo.IsDuplicateKeyError(err) {
		return domain.User{}, domain.ErrUsernameTaken
	}
	if err != nil {
		return domain.User{}, err
	}
	return row.toDomain(), nil
}
