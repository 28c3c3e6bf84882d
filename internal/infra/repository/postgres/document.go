package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/quire/internal/domain"
	"github.com/totegamma/quire/internal/infra/database/models"
)

var documentColumns = map[string]string{
	domain.DocumentFieldID: "id",
}

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func documentConditions(filter domain.DocumentFilter) conditions {
	var c conditions
	if filter.ID != nil {
		c.add("id = ?", filter.ID.String())
	}
	if filter.IDs != nil {
		c.add("id IN ?", nonEmpty(filter.IDs.Strings()))
	}
	if filter.Owner != nil {
		c.add("owner = ?", filter.Owner.String())
	}
	if filter.Title != nil {
		c.add("title = ?", *filter.Title)
	}
	if filter.ReadLink != nil {
		c.add("read_link = ?", *filter.ReadLink)
	}
	if filter.EditLink != nil {
		c.add("edit_link = ?", *filter.EditLink)
	}
	if len(filter.ReadHasAll) > 0 {
		c.add("perm_read @> ?::text[]", pq.StringArray(filter.ReadHasAll.Strings()))
	}
	if len(filter.EditHasAll) > 0 {
		c.add("perm_edit @> ?::text[]", pq.StringArray(filter.EditHasAll.Strings()))
	}
	if len(filter.ReadHasNone) > 0 {
		c.add("NOT (perm_read && ?::text[])", pq.StringArray(filter.ReadHasNone.Strings()))
	}
	if len(filter.EditHasNone) > 0 {
		c.add("NOT (perm_edit && ?::text[])", pq.StringArray(filter.EditHasNone.Strings()))
	}
	if filter.AvailableTo != nil {
		user := filter.AvailableTo.String()
		c.add("(owner = ? OR ? = ANY(perm_read) OR ? = ANY(perm_edit))", user, user, user)
	}
	return c
}

// appendUnique appends the ids not already present, keeping their first occurrence order.
func appendUnique(column string, ids domain.IDs) clause.Expr {
	return gorm.Expr(
		fmt.Sprintf("%[1]s || ARRAY(SELECT e FROM unnest(?::text[]) WITH ORDINALITY AS t(e, i) WHERE e <> ALL(%[1]s) GROUP BY e ORDER BY min(i))", column),
		pq.StringArray(ids.Strings()),
	)
}

// pullAll removes every listed id, keeping the order of the rest.
func pullAll(column string, ids domain.IDs) clause.Expr {
	return gorm.Expr(
		fmt.Sprintf("ARRAY(SELECT e FROM unnest(%s) WITH ORDINALITY AS t(e, i) WHERE e <> ALL(?::text[]) ORDER BY i)", column),
		pq.StringArray(ids.Strings()),
	)
}

func documentAssignments(update domain.DocumentUpdate) map[string]any {
	assign := map[string]any{}
	set := update.Set
	if set.Title != nil {
		assign["title"] = *set.Title
	}
	if set.CharCount != nil {
		assign["char_count"] = *set.CharCount
	}
	if set.CharCountNoSpaces != nil {
		assign["char_count_no_spaces"] = *set.CharCountNoSpaces
	}
	if set.WordCount != nil {
		assign["word_count"] = *set.WordCount
	}
	if set.Content != nil {
		assign["content"] = datatypes.NewJSONType(*set.Content)
	}
	if set.ReadLink != nil {
		assign["read_link"] = nullable(*set.ReadLink)
	}
	if set.EditLink != nil {
		assign["edit_link"] = nullable(*set.EditLink)
	}
	if update.EditDate != nil {
		assign["edit_date"] = *update.EditDate
	}
	if len(update.AddRead) > 0 {
		assign["perm_read"] = appendUnique("perm_read", update.AddRead)
	}
	if len(update.AddEdit) > 0 {
		assign["perm_edit"] = appendUnique("perm_edit", update.AddEdit)
	}
	if len(update.PullRead) > 0 {
		assign["perm_read"] = pullAll("perm_read", update.PullRead)
	}
	if len(update.PullEdit) > 0 {
		assign["perm_edit"] = pullAll("perm_edit", update.PullEdit)
	}
	return assign
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func documentFromModel(m models.Document) (domain.Document, error) {
	id, err := parseOptionalID(m.ID)
	if err != nil {
		return domain.Document{}, err
	}
	owner, err := parseOptionalID(m.Owner)
	if err != nil {
		return domain.Document{}, err
	}
	permRead, err := domain.ParseIDs(m.PermRead)
	if err != nil {
		return domain.Document{}, err
	}
	permEdit, err := domain.ParseIDs(m.PermEdit)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:                id,
		Title:             m.Title,
		CharCount:         m.CharCount,
		CharCountNoSpaces: m.CharCountNoSpaces,
		WordCount:         m.WordCount,
		Content:           m.Content.Data(),
		PermRead:          permRead,
		PermEdit:          permEdit,
		Owner:             owner,
		ReadLink:          m.ReadLink,
		EditLink:          m.EditLink,
		CreationDate:      m.CreationDate,
		EditDate:          m.EditDate,
	}, nil
}

func documentToModel(d domain.Document) models.Document {
	return models.Document{
		ID:                d.ID.String(),
		Title:             d.Title,
		CharCount:         d.CharCount,
		CharCountNoSpaces: d.CharCountNoSpaces,
		WordCount:         d.WordCount,
		Content:           datatypes.NewJSONType(d.Content),
		PermRead:          pq.StringArray(d.PermRead.Strings()),
		PermEdit:          pq.StringArray(d.PermEdit.Strings()),
		Owner:             d.Owner.String(),
		ReadLink:          d.ReadLink,
		EditLink:          d.EditLink,
		CreationDate:      d.CreationDate,
		EditDate:          d.EditDate,
	}
}

func (r *DocumentRepository) Find(ctx context.Context, filter domain.DocumentFilter, projection []string) ([]domain.Document, error) {
	rows, err := find[models.Document](ctx, r.db, documentConditions(filter), columns(projection, documentColumns))
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		d, err := documentFromModel(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (r *DocumentRepository) FindOne(ctx context.Context, filter domain.DocumentFilter, projection []string) (domain.Document, error) {
	row, err := findOne[models.Document](ctx, r.db, documentConditions(filter), columns(projection, documentColumns), "document")
	if err != nil {
		return domain.Document{}, err
	}
	return documentFromModel(row)
}

func (r *DocumentRepository) Count(ctx context.Context, filter domain.DocumentFilter) (int64, error) {
	return count[models.Document](ctx, r.db, documentConditions(filter))
}

func (r *DocumentRepository) Insert(ctx context.Context, doc domain.Document) error {
	m := documentToModel(doc)
	err := r.db.WithContext(ctx).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ConflictError{Resource: "document", Field: "id"}
	}
	return err
}

func (r *DocumentRepository) Delete(ctx context.Context, id domain.ID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Document{})
	return res.RowsAffected, res.Error
}

func (r *DocumentRepository) Update(ctx context.Context, id domain.ID, update domain.DocumentUpdate) (domain.Document, error) {
	if err := update.Validate(); err != nil {
		return domain.Document{}, err
	}
	if update.IsEmpty() {
		return r.FindOne(ctx, domain.DocumentByID(id), nil)
	}

	var m models.Document
	res := r.db.WithContext(ctx).
		Model(&m).
		Clauses(clause.Returning{}).
		Where("id = ?", id.String()).
		Updates(documentAssignments(update))
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return domain.Document{}, domain.ConflictError{Resource: "document", Field: "link"}
	}
	if res.Error != nil {
		return domain.Document{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Document{}, domain.NotFoundError{Resource: "document"}
	}
	return documentFromModel(m)
}
