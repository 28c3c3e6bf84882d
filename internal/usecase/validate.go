package usecase

import (
	"context"

	"github.com/totegamma/quire/internal/domain"
)

// IDPredicate reports whether a hex id refers to an existing entity.
type IDPredicate func(ctx context.Context, hex string) (bool, error)

// ValidateIDs converts hexes into ids, keeping in input order only those that are well
// formed and satisfy exists. Malformed strings are dropped without error.
func ValidateIDs(ctx context.Context, hexes []string, exists IDPredicate) (domain.IDs, error) {
	result := domain.IDs{}
	for _, hex := range hexes {
		id, err := domain.ParseID(hex)
		if err != nil {
			continue
		}
		ok, err := exists(ctx, hex)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, id)
		}
	}
	return result, nil
}
