package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/quire/internal/domain"
)

// conditions accumulates WHERE clauses that are joined with AND.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, args ...any) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c conditions) sql() string {
	return strings.Join(c.clauses, " AND ")
}

func (c conditions) apply(db *gorm.DB) *gorm.DB {
	if len(c.clauses) == 0 {
		return db
	}
	return db.Where(c.sql(), c.args...)
}

// columns maps projection field names to column names. Unknown names are passed through.
func columns(projection []string, mapping map[string]string) []string {
	result := make([]string, 0, len(projection))
	for _, field := range projection {
		if col, ok := mapping[field]; ok {
			result = append(result, col)
			continue
		}
		result = append(result, field)
	}
	return result
}

func find[T any](ctx context.Context, db *gorm.DB, where conditions, cols []string) ([]T, error) {
	var rows []T
	q := where.apply(db.WithContext(ctx).Model(new(T)))
	if len(cols) > 0 {
		q = q.Select(cols)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "find failed")
	}
	return rows, nil
}

func findOne[T any](ctx context.Context, db *gorm.DB, where conditions, cols []string, resource string) (T, error) {
	var row T
	q := where.apply(db.WithContext(ctx).Model(new(T)))
	if len(cols) > 0 {
		q = q.Select(cols)
	}
	err := q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, domain.NotFoundError{Resource: resource}
	}
	if err != nil {
		return row, errors.Wrap(err, "find one failed")
	}
	return row, nil
}

func count[T any](ctx context.Context, db *gorm.DB, where conditions) (int64, error) {
	var n int64
	if err := where.apply(db.WithContext(ctx).Model(new(T))).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "count failed")
	}
	return n, nil
}

func parseOptionalID(s string) (domain.ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.ID{}, nil
	}
	return domain.ParseID(s)
}
