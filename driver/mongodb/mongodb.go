package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Nemutagk/findorcreate/models"
)

// MongoDBAdapter runs find-or-create commands against one collection.
type MongoDBAdapter struct {
	collection *mongo.Collection
}

var _ models.Store = (*MongoDBAdapter)(nil)

func NewMongoDBAdapter(collection *mongo.Collection) *MongoDBAdapter {
	return &MongoDBAdapter{
		collection: collection,
	}
}

// Name returns the collection name.
func (s *MongoDBAdapter) Name() string {
	return s.collection.Name()
}

// FindAndModify issues a findAndModify command and decodes the raw reply,
// including lastErrorObject which FindOneAndUpdate does not expose.
func (s *MongoDBAdapter) FindAndModify(ctx context.Context, cmd models.Command) (models.RawResult, error) {
	if cmd.Collection == "" {
		cmd.Collection = s.collection.Name()
	}
	command, err := BuildCommand(cmd)
	if err != nil {
		return models.RawResult{}, err
	}

	var raw models.RawResult
	if err := s.collection.Database().RunCommand(ctx, command).Decode(&raw); err != nil {
		return models.RawResult{}, err
	}
	return raw, nil
}

func (s *MongoDBAdapter) GetOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (bson.M, error) {
	var doc bson.M
	if err := s.collection.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *MongoDBAdapter) Insert(ctx context.Context, document any) (*mongo.InsertOneResult, error) {
	return s.collection.InsertOne(ctx, document)
}

func (s *MongoDBAdapter) InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error) {
	return s.collection.InsertMany(ctx, documents)
}

func (s *MongoDBAdapter) DeleteMany(ctx context.Context, filter bson.M) (*mongo.DeleteResult, error) {
	return s.collection.DeleteMany(ctx, filter)
}

func (s *MongoDBAdapter) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.collection.CountDocuments(ctx, filter)
}
