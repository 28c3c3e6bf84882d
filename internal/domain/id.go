package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID identifies users and documents. It is a 12 byte object id rendered as 24 hex characters.
type ID struct {
	oid primitive.ObjectID
}

func NewID() ID {
	return ID{oid: primitive.NewObjectID()}
}

func NewIDFromObjectID(oid primitive.ObjectID) ID {
	return ID{oid: oid}
}

func ParseID(s string) (ID, error) {
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID{oid: oid}, nil
}

// IsValidID reports whether s is a structurally valid identifier. It says nothing about existence.
func IsValidID(s string) bool {
	return primitive.IsValidObjectID(s)
}

func (id ID) ObjectID() primitive.ObjectID { return id.oid }
func (id ID) String() string               { return id.oid.Hex() }
func (id ID) IsZero() bool                 { return id.oid.IsZero() }
func (id ID) Equal(other ID) bool          { return id.oid == other.oid }

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(id.String())
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*id = ID{}
		return nil
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(id.oid)
}

func (id *ID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t != bsontype.ObjectID {
		return fmt.Errorf("cannot decode %v into an ID", t)
	}
	var oid primitive.ObjectID
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&oid); err != nil {
		return err
	}
	id.oid = oid
	return nil
}

func (id ID) Value() (driver.Value, error) {
	return id.String(), nil
}

func (id *ID) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*id = ID{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into an ID", src)
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// IDs is an identifier set. Order is kept for presentation; membership is by value.
type IDs []ID

func (ids IDs) Contains(id ID) bool {
	for _, x := range ids {
		if x.Equal(id) {
			return true
		}
	}
	return false
}

// Union returns ids followed by the members of other not yet present, without duplicates.
func (ids IDs) Union(other IDs) IDs {
	result := make(IDs, 0, len(ids)+len(other))
	for _, id := range ids {
		if !result.Contains(id) {
			result = append(result, id)
		}
	}
	for _, id := range other {
		if !result.Contains(id) {
			result = append(result, id)
		}
	}
	return result
}

// Difference returns the members of ids that are not in other.
func (ids IDs) Difference(other IDs) IDs {
	result := IDs{}
	for _, id := range ids {
		if !other.Contains(id) && !result.Contains(id) {
			result = append(result, id)
		}
	}
	return result
}

func (ids IDs) Strings() []string {
	result := make([]string, len(ids))
	for i, id := range ids {
		result[i] = id.String()
	}
	return result
}

func ParseIDs(ss []string) (IDs, error) {
	result := make(IDs, 0, len(ss))
	for _, s := range ss {
		id, err := ParseID(s)
		if err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, nil
}
