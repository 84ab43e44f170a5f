package repository

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryRepository keeps records in process memory using the same bson
// encoding as the Mongo repository. It backs local runs and tests.
type MemoryRepository struct {
	mu          sync.RWMutex
	collections map[string]map[string]bson.M
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		collections: make(map[string]map[string]bson.M),
	}
}

func (m *MemoryRepository) Get(_ context.Context, collection, id string, out interface{}) error {
	m.mu.RLock()
	doc, ok := m.collections[collection][id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	if err := bson.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *MemoryRepository) List(_ context.Context, collection string, filter Filter, out interface{}) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.collections[collection]))
	for id, doc := range m.collections[collection] {
		if matches(doc, filter) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	docs := make(bson.A, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, m.collections[collection][id])
	}
	m.mu.RUnlock()

	data, err := bson.Marshal(bson.M{"items": docs})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", collection, err)
	}
	if err := bson.Raw(data).Lookup("items").Unmarshal(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

func (m *MemoryRepository) Create(_ context.Context, collection, id string, fields map[string]interface{}) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	doc, err := normalize(fields)
	if err != nil {
		return "", err
	}
	doc["_id"] = id

	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection)
	if _, exists := coll[id]; exists {
		return "", ErrAlreadyExists
	}
	coll[id] = doc
	return id, nil
}

func (m *MemoryRepository) Merge(_ context.Context, collection, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection)
	doc, ok := coll[id]
	if !ok {
		doc = bson.M{"_id": id}
	}
	merged, err := apply(doc, fields)
	if err != nil {
		return err
	}
	coll[id] = merged
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection)
	doc, ok := coll[id]
	if !ok {
		return ErrNotFound
	}
	merged, err := apply(doc, fields)
	if err != nil {
		return err
	}
	coll[id] = merged
	return nil
}

func (m *MemoryRepository) collection(name string) map[string]bson.M {
	coll, ok := m.collections[name]
	if !ok {
		coll = make(map[string]bson.M)
		m.collections[name] = coll
	}
	return coll
}

func apply(doc bson.M, fields map[string]interface{}) (bson.M, error) {
	set := make(map[string]interface{}, len(fields))
	incs := make(map[string]Increment)
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		if inc, ok := v.(Increment); ok {
			incs[k] = inc
			continue
		}
		set[k] = v
	}
	normalized, err := normalize(set)
	if err != nil {
		return nil, err
	}

	merged := make(bson.M, len(doc)+len(normalized))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range normalized {
		merged[k] = v
	}
	for k, inc := range incs {
		merged[k] = addNumber(merged[k], inc)
	}
	return merged, nil
}

// normalize round-trips fields through bson so stored values are plain
// bson types, the same as what Mongo would hand back.
func normalize(fields map[string]interface{}) (bson.M, error) {
	plain := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if inc, ok := v.(Increment); ok {
			v = inc.value()
		}
		plain[k] = v
	}
	data, err := bson.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return doc, nil
}

func addNumber(current interface{}, inc Increment) interface{} {
	var base float64
	integral := true
	switch v := current.(type) {
	case int32:
		base = float64(v)
	case int64:
		base = float64(v)
	case float64:
		base = v
		integral = false
	}
	sum := Increment{By: base + inc.By}
	if integral {
		return sum.value()
	}
	return sum.By
}

func matches(doc bson.M, filter Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(got, want) && fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
