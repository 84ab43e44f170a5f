package repository

import (
	"context"
	"errors"
	"math"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Filter selects records whose fields equal the given values.
type Filter map[string]interface{}

// Increment adds By to a numeric field instead of overwriting it.
type Increment struct {
	By float64
}

func (i Increment) value() interface{} {
	if i.By == math.Trunc(i.By) {
		return int64(i.By)
	}
	return i.By
}

// RecordRepository stores schemaless records in named collections.
// Callers decode into their own types; records are keyed by "_id".
type RecordRepository interface {
	Get(ctx context.Context, collection, id string, out interface{}) error
	// List decodes every matching record, ordered by id, into out (*[]T).
	List(ctx context.Context, collection string, filter Filter, out interface{}) error
	// Create inserts a new record. An empty id is generated.
	Create(ctx context.Context, collection, id string, fields map[string]interface{}) (string, error)
	// Merge creates the record or merges fields into the existing one.
	Merge(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// Update merges fields into an existing record.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
}
