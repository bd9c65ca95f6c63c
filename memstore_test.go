package findorcreate

import (
	"context"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Nemutagk/findorcreate/driver/mongodb"
	"github.com/Nemutagk/findorcreate/models"
)

// memStore mimics findAndModify on top-level equality queries.
type memStore struct {
	mu    sync.Mutex
	docs  []bson.M
	calls []models.Command
	err   error
}

func newMemStore(docs ...bson.M) *memStore {
	s := &memStore{}
	for _, d := range docs {
		d = clone(d)
		if _, ok := d["_id"]; !ok {
			d["_id"] = primitive.NewObjectID()
		}
		s.docs = append(s.docs, d)
	}
	return s
}

func (s *memStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *memStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *memStore) FindAndModify(ctx context.Context, cmd models.Command) (models.RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, cmd)
	if s.err != nil {
		return models.RawResult{}, s.err
	}

	command, err := mongodb.BuildCommand(cmd)
	if err != nil {
		return models.RawResult{}, err
	}
	filter := lookup(command, "query")
	update := lookup(command, "update").(bson.M)
	fields := lookup(command, "fields")

	query, err := toDoc(filter)
	if err != nil {
		return models.RawResult{}, err
	}
	for k := range query {
		if strings.HasPrefix(k, "$") {
			return models.RawResult{}, mongo.CommandError{Code: 2, Name: "BadValue", Message: "unknown top level operator: " + k}
		}
	}

	replacement := !isOperators(update)
	for i, d := range s.docs {
		if !matches(d, query) {
			continue
		}
		before := clone(d)
		after := clone(d)
		if replacement {
			after = clone(update)
			after["_id"] = d["_id"]
		} else {
			apply(after, update["$set"])
		}
		s.docs[i] = after

		value := after
		if !cmd.New {
			value = before
		}
		return models.RawResult{
			Value:           project(value, fields),
			LastErrorObject: models.LastErrorObject{N: 1, UpdatedExisting: true},
			Ok:              1,
		}, nil
	}

	if !cmd.Upsert {
		return models.RawResult{Ok: 1}, nil
	}

	id := primitive.NewObjectID()
	doc := bson.M{}
	for k, v := range query {
		doc[k] = v
	}
	if replacement {
		for k, v := range update {
			doc[k] = v
		}
	} else {
		apply(doc, update["$setOnInsert"])
		apply(doc, update["$set"])
	}
	doc["_id"] = id
	s.docs = append(s.docs, doc)

	var value bson.M
	if cmd.New {
		value = project(clone(doc), fields)
	}
	return models.RawResult{
		Value:           value,
		LastErrorObject: models.LastErrorObject{N: 1, Upserted: id},
		Ok:              1,
	}, nil
}

func lookup(d bson.D, key string) any {
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isOperators(update bson.M) bool {
	for k := range update {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func matches(doc, query bson.M) bool {
	for k, v := range query {
		if doc[k] != v {
			return false
		}
	}
	return true
}

func apply(doc bson.M, operand any) {
	m, ok := operand.(bson.M)
	if !ok {
		return
	}
	for k, v := range m {
		doc[k] = v
	}
}

func project(doc bson.M, fields any) bson.M {
	spec, ok := fields.(bson.D)
	if !ok || doc == nil {
		return doc
	}
	include := false
	for _, e := range spec {
		if e.Value == 1 {
			include = true
		}
	}
	if include {
		out := bson.M{"_id": doc["_id"]}
		for _, e := range spec {
			if v, ok := doc[e.Key]; ok && e.Value == 1 {
				out[e.Key] = v
			}
		}
		return out
	}
	for _, e := range spec {
		delete(doc, e.Key)
	}
	return doc
}

func clone(d bson.M) bson.M {
	out := make(bson.M, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
