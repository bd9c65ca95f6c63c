package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Nemutagk/findorcreate/models"
)

// Inserter is the part of the mongodb adapter the event sink needs.
type Inserter interface {
	Insert(ctx context.Context, document any) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error)
}

// DatabaseDriverAdapter stores events in a collection.
type DatabaseDriverAdapter struct {
	adapter Inserter
}

var _ models.BulkInserter = (*DatabaseDriverAdapter)(nil)

func NewDatabaseDriverAdapter(adapter Inserter) *DatabaseDriverAdapter {
	return &DatabaseDriverAdapter{adapter: adapter}
}

func (d *DatabaseDriverAdapter) Create(ctx context.Context, document map[string]any) error {
	if _, err := d.adapter.Insert(ctx, document); err != nil {
		return err
	}
	return nil
}

func (d *DatabaseDriverAdapter) CreateMany(ctx context.Context, documents []map[string]any) error {
	if len(documents) == 0 {
		return nil
	}
	docs := make([]any, 0, len(documents))
	for _, doc := range documents {
		docs = append(docs, doc)
	}
	if _, err := d.adapter.InsertMany(ctx, docs); err != nil {
		return err
	}
	return nil
}
