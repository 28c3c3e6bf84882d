package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/totegamma/quire/internal/domain"
)

// and combines conditions. No condition matches everything.
func and(conds []bson.D) bson.D {
	switch len(conds) {
	case 0:
		return bson.D{}
	case 1:
		return conds[0]
	}
	list := bson.A{}
	for _, c := range conds {
		list = append(list, c)
	}
	return bson.D{{Key: "$and", Value: list}}
}

func eq(field string, value any) bson.D {
	return bson.D{{Key: field, Value: value}}
}

func op(field, operator string, value any) bson.D {
	return bson.D{{Key: field, Value: bson.D{{Key: operator, Value: value}}}}
}

func objectIDs(ids domain.IDs) bson.A {
	result := bson.A{}
	for _, id := range ids {
		result = append(result, id.ObjectID())
	}
	return result
}

func projectionOf(fields []string) bson.D {
	if len(fields) == 0 {
		return nil
	}
	p := bson.D{}
	for _, f := range fields {
		p = append(p, bson.E{Key: f, Value: 1})
	}
	return p
}

func find[T any](ctx context.Context, coll *mongo.Collection, filter bson.D, projection []string) ([]T, error) {
	opts := options.Find()
	if p := projectionOf(projection); p != nil {
		opts.SetProjection(p)
	}
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find failed")
	}
	rows := []T{}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decode failed")
	}
	return rows, nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.D, projection []string, resource string) (T, error) {
	var row T
	opts := options.FindOne()
	if p := projectionOf(projection); p != nil {
		opts.SetProjection(p)
	}
	err := coll.FindOne(ctx, filter, opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return row, domain.NotFoundError{Resource: resource}
	}
	if err != nil {
		return row, errors.Wrap(err, "find one failed")
	}
	return row, nil
}

func updateOne[T any](ctx context.Context, coll *mongo.Collection, id domain.ID, update bson.D, resource string) (T, error) {
	var row T
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := coll.FindOneAndUpdate(ctx, eq("_id", id.ObjectID()), update, opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return row, domain.NotFoundError{Resource: resource}
	}
	return row, err
}

func deleteOne(ctx context.Context, coll *mongo.Collection, id domain.ID) (int64, error) {
	res, err := coll.DeleteOne(ctx, eq("_id", id.ObjectID()))
	if err != nil {
		return 0, errors.Wrap(err, "delete failed")
	}
	return res.DeletedCount, nil
}
