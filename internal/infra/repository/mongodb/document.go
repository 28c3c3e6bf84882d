package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/totegamma/quire/internal/domain"
	"github.com/totegamma/quire/internal/infra/database"
)

type documentRecord struct {
	ID                domain.ID      `bson:"_id,omitempty"`
	Title             string         `bson:"title,omitempty"`
	CharCount         int            `bson:"char_count"`
	CharCountNoSpaces int            `bson:"char_count_no_spaces"`
	WordCount         int            `bson:"word_count"`
	Content           domain.Content `bson:"content,omitempty"`
	PermRead          domain.IDs     `bson:"perm_read"`
	PermEdit          domain.IDs     `bson:"perm_edit"`
	Owner             domain.ID      `bson:"owner,omitempty"`
	ReadLink          *string        `bson:"read_link,omitempty"`
	EditLink          *string        `bson:"edit_link,omitempty"`
	CreationDate      time.Time      `bson:"creation_date,omitempty"`
	EditDate          time.Time      `bson:"edit_date,omitempty"`
}

func (r documentRecord) toDomain() domain.Document {
	return domain.Document(r)
}

func documentRecordOf(d domain.Document) documentRecord {
	if d.PermRead == nil {
		d.PermRead = domain.IDs{}
	}
	if d.PermEdit == nil {
		d.PermEdit = domain.IDs{}
	}
	return documentRecord(d)
}

type DocumentRepository struct {
	coll *mongo.Collection
}

func NewDocumentRepository(db *mongo.Database) *DocumentRepository {
	return &DocumentRepository{coll: db.Collection(database.CollectionDocuments)}
}

func documentFilter(filter domain.DocumentFilter) bson.D {
	var conds []bson.D
	if filter.ID != nil {
		conds = append(conds, eq("_id", filter.ID.ObjectID()))
	}
	if filter.IDs != nil {
		conds = append(conds, op("_id", "$in", objectIDs(filter.IDs)))
	}
	if filter.Owner != nil {
		conds = append(conds, eq(domain.DocumentFieldOwner, filter.Owner.ObjectID()))
	}
	if filter.Title != nil {
		conds = append(conds, eq(domain.DocumentFieldTitle, *filter.Title))
	}
	if filter.ReadLink != nil {
		conds = append(conds, eq(domain.DocumentFieldReadLink, *filter.ReadLink))
	}
	if filter.EditLink != nil {
		conds = append(conds, eq(domain.DocumentFieldEditLink, *filter.EditLink))
	}
	if len(filter.ReadHasAll) > 0 {
		conds = append(conds, op(domain.DocumentFieldPermRead, "$all", objectIDs(filter.ReadHasAll)))
	}
	if len(filter.EditHasAll) > 0 {
		conds = append(conds, op(domain.DocumentFieldPermEdit, "$all", objectIDs(filter.EditHasAll)))
	}
	if len(filter.ReadHasNone) > 0 {
		conds = append(conds, op(domain.DocumentFieldPermRead, "$nin", objectIDs(filter.ReadHasNone)))
	}
	if len(filter.EditHasNone) > 0 {
		conds = append(conds, op(domain.DocumentFieldPermEdit, "$nin", objectIDs(filter.EditHasNone)))
	}
	if filter.AvailableTo != nil {
		user := filter.AvailableTo.ObjectID()
		conds = append(conds, bson.D{{Key: "$or", Value: bson.A{
			eq(domain.DocumentFieldOwner, user),
			eq(domain.DocumentFieldPermRead, user),
			eq(domain.DocumentFieldPermEdit, user),
		}}})
	}
	return and(conds)
}

func documentUpdate(update domain.DocumentUpdate) bson.D {
	set := bson.D{}
	unset := bson.D{}
	s := update.Set
	if s.Title != nil {
		set = append(set, bson.E{Key: domain.DocumentFieldTitle, Value: *s.Title})
	}
	if s.CharCount != nil {
		set = append(set, bson.E{Key: domain.DocumentFieldCharCount, Value: *s.CharCount})
	}
	if s.CharCountNoSpaces != nil {
		set = append(set, bson.E{Key: domain.DocumentFieldCharCountNoSpaces, Value: *s.CharCountNoSpaces})
	}
	if s.WordCount != nil {
		set = append(set, bson.E{Key: domain.DocumentFieldWordCount, Value: *s.WordCount})
	}
	if s.Content != nil {
		set = append(set, bson.E{Key: domain.DocumentFieldContent, Value: *s.Content})
	}
	links := []struct {
		field string
		value *string
	}{
		{domain.DocumentFieldReadLink, s.ReadLink},
		{domain.DocumentFieldEditLink, s.EditLink},
	}
	for _, link := range links {
		switch {
		case link.value == nil:
		case *link.value == "":
			unset = append(unset, bson.E{Key: link.field, Value: ""})
		default:
			set = append(set, bson.E{Key: link.field, Value: *link.value})
		}
	}
	if update.EditDate != nil {
		set = append(set, bson.E{Key: domain.DocumentFieldEditDate, Value: *update.EditDate})
	}

	add := bson.D{}
	if len(update.AddRead) > 0 {
		add = append(add, bson.E{Key: domain.DocumentFieldPermRead, Value: bson.D{{Key: "$each", Value: objectIDs(update.AddRead)}}})
	}
	if len(update.AddEdit) > 0 {
		add = append(add, bson.E{Key: domain.DocumentFieldPermEdit, Value: bson.D{{Key: "$each", Value: objectIDs(update.AddEdit)}}})
	}

	pull := bson.D{}
	if len(update.PullRead) > 0 {
		pull = append(pull, bson.E{Key: domain.DocumentFieldPermRead, Value: bson.D{{Key: "$in", Value: objectIDs(update.PullRead)}}})
	}
	if len(update.PullEdit) > 0 {
		pull = append(pull, bson.E{Key: domain.DocumentFieldPermEdit, Value: bson.D{{Key: "$in", Value: objectIDs(update.PullEdit)}}})
	}

	result := bson.D{}
	for _, part := range []bson.E{
		{Key: "$set", Value: set},
		{Key: "$unset", Value: unset},
		{Key: "$addToSet", Value: add},
		{Key: "$pull", Value: pull},
	} {
		if len(part.Value.(bson.D)) > 0 {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func (r *DocumentRepository) Find(ctx context.Context, filter domain.DocumentFilter, projection []string) ([]domain.Document, error) {
	rows, err := find[documentRecord](ctx, r.coll, documentFilter(filter), projection)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.toDomain())
	}
	return docs, nil
}

func (r *DocumentRepository) FindOne(ctx context.Context, filter domain.DocumentFilter, projection []string) (domain.Document, error) {
	row, err := findOne[documentRecord](ctx, r.coll, documentFilter(filter), projection, "document")
	if err != nil {
		return domain.Document{}, err
	}
	return row.toDomain(), nil
}

func (r *DocumentRepository) Count(ctx context.Context, filter domain.DocumentFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, documentFilter(filter))
}

func (r *DocumentRepository) Insert(ctx context.Context, doc domain.Document) error {
	_, err := r.coll.InsertOne(ctx, documentRecordOf(doc))
	if mongo.IsDuplicateKeyError(err) {
		return domain.ConflictError{Resource: "document", Field: "id"}
	}
	return err
}

func (r *DocumentRepository) Delete(ctx context.Context, id domain.ID) (int64, error) {
	return deleteOne(ctx, r.coll, id)
}

func (r *DocumentRepository) Update(ctx context.Context, id domain.ID, update domain.DocumentUpdate) (domain.Document, error) {
	if err := update.Validate(); err != nil {
		return domain.Document{}, err
	}
	if update.IsEmpty() {
		return r.FindOne(ctx, domain.DocumentByID(id), nil)
	}
	row, err := updateOne[documentRecord](ctx, r.coll, id, documentUpdate(update), "document")
	if mongo.IsDuplicateKeyError(err) {
		return domain.Document{}, domain.ConflictError{Resource: "document", Field: "link"}
	}
	if err != nil {
		return domain.Document{}, err
	}
	return row.toDomain(), nil
}
