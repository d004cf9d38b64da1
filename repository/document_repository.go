package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no document matches the key.
	ErrNotFound = errors.New("document not found")
	// ErrNotConnected is returned by every operation when startup could not
	// create a database handle.
	ErrNotConnected = errors.New("database not connected")
)

// DocumentRepository defines data-access operations on schemaless
// collections addressed by a natural key.
type DocumentRepository interface {
	FindOneByKey(ctx context.Context, collection, keyField string, key interface{}) (bson.M, error)
	UpdateByKey(ctx context.Context, collection, keyField string, key interface{}, doc bson.D) error
	Insert(ctx context.Context, collection string, doc interface{}) error
	// UpsertByKey sets doc on the document matching key, creating it when
	// none exists. created reports whether an insert happened.
	UpsertByKey(ctx context.Context, collection, keyField string, key interface{}, doc bson.D) (created bool, err error)
	FindAll(ctx context.Context, collection string) ([]bson.M, error)
}

// MongoDocumentRepository implements DocumentRepository on one database.
type MongoDocumentRepository struct {
	db *mongo.Database
}

// NewMongoDocumentRepository creates a new MongoDocumentRepository. db may
// be nil, in which case every call fails with ErrNotConnected.
func NewMongoDocumentRepository(db *mongo.Database) DocumentRepository {
	return &MongoDocumentRepository{db: db}
}

func (r *MongoDocumentRepository) collection(name string) (*mongo.Collection, error) {
	if r.db == nil {
		return nil, ErrNotConnected
	}
	return r.db.Collection(name), nil
}

func (r *MongoDocumentRepository) FindOneByKey(ctx context.Context, collection, keyField string, key interface{}) (bson.M, error) {
	coll, err := r.collection(collection)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	if err := coll.FindOne(ctx, bson.D{{Key: keyField, Value: key}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find %s by %s: %w", collection, keyField, err)
	}
	return doc, nil
}

func (r *MongoDocumentRepository) UpdateByKey(ctx context.Context, collection, keyField string, key interface{}, doc bson.D) error {
	coll, err := r.collection(collection)
	if err != nil {
		return err
	}

	if _, err := coll.UpdateOne(ctx, bson.D{{Key: keyField, Value: key}}, bson.D{{Key: "$set", Value: doc}}); err != nil {
		return fmt.Errorf("update %s by %s: %w", collection, keyField, err)
	}
	return nil
}

func (r *MongoDocumentRepository) Insert(ctx context.Context, collection string, doc interface{}) error {
	coll, err := r.collection(collection)
	if err != nil {
		return err
	}

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

func (r *MongoDocumentRepository) UpsertByKey(ctx context.Context, collection, keyField string, key interface{}, doc bson.D) (bool, error) {
	coll, err := r.collection(collection)
	if err != nil {
		return false, err
	}

	res, err := coll.UpdateOne(ctx,
		bson.D{{Key: keyField, Value: key}},
		bson.D{{Key: "$set", Value: doc}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert %s by %s: %w", collection, keyField, err)
	}
	return res.UpsertedCount > 0 || res.UpsertedID != nil, nil
}

func (r *MongoDocumentRepository) FindAll(ctx context.Context, collection string) ([]bson.M, error) {
	coll, err := r.collection(collection)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find all in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return docs, nil
}
