package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

type fakeInserter struct {
	one  []any
	many [][]any
	err  error
}

func (f *fakeInserter) Insert(ctx context.Context, document any) (*mongo.InsertOneResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.one = append(f.one, document)
	return &mongo.InsertOneResult{}, nil
}

func (f *fakeInserter) InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.many = append(f.many, documents)
	return &mongo.InsertManyResult{}, nil
}

func TestCreate(t *testing.T) {
	t.Parallel()
	f := &fakeInserter{}
	d := NewDatabaseDriverAdapter(f)

	require.NoError(t, d.Create(context.Background(), map[string]any{"level": "INFO"}))
	require.Len(t, f.one, 1)
	assert.Equal(t, map[string]any{"level": "INFO"}, f.one[0])
}

func TestCreateMany(t *testing.T) {
	t.Parallel()
	f := &fakeInserter{}
	d := NewDatabaseDriverAdapter(f)

	require.NoError(t, d.CreateMany(context.Background(), nil))
	assert.Empty(t, f.many)

	require.NoError(t, d.CreateMany(context.Background(), []map[string]any{{"n": 1}, {"n": 2}}))
	require.Len(t, f.many, 1)
	assert.Len(t, f.many[0], 2)
}

func TestErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	d := NewDatabaseDriverAdapter(&fakeInserter{err: boom})

	assert.ErrorIs(t, d.Create(context.Background(), map[string]any{}), boom)
	assert.ErrorIs(t, d.CreateMany(context.Background(), []map[string]any{{}}), boom)
}
