package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	db *mongo.Database
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{db: db}
}

func (m *MongoRepository) Get(ctx context.Context, collection, id string, out interface{}) error {
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *MongoRepository) List(ctx context.Context, collection string, filter Filter, out interface{}) error {
	query := bson.M{}
	for k, v := range filter {
		query[k] = v
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := m.db.Collection(collection).Find(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", collection, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

func (m *MongoRepository) Create(ctx context.Context, collection, id string, fields map[string]interface{}) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	doc := bson.M{}
	for k, v := range fields {
		if inc, ok := v.(Increment); ok {
			v = inc.value()
		}
		doc[k] = v
	}
	doc["_id"] = id

	_, err := m.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrAlreadyExists
		}
		return "", fmt.Errorf("failed to create %s/%s: %w", collection, id, err)
	}
	return id, nil
}

func (m *MongoRepository) Merge(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	opts := options.Update().SetUpsert(true)
	_, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, updateDoc(fields), opts)
	if err != nil {
		return fmt.Errorf("failed to merge %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *MongoRepository) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	result, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, updateDoc(fields))
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateIndexes adds a non-unique index on field for owner scoped queries.
func (m *MongoRepository) CreateIndexes(ctx context.Context, collection string, fields ...string) error {
	indexes := make([]mongo.IndexModel, 0, len(fields))
	for _, field := range fields {
		indexes = append(indexes, mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}})
	}
	if len(indexes) == 0 {
		return nil
	}

	_, err := m.db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func updateDoc(fields map[string]interface{}) bson.M {
	set := bson.M{}
	inc := bson.M{}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		if i, ok := v.(Increment); ok {
			inc[k] = i.value()
			continue
		}
		set[k] = v
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update
}
