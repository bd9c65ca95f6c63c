package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Mode selects the shape of the update payload sent to the server.
type Mode int

const (
	// InsertOnly applies the document only when a new record is inserted.
	InsertOnly Mode = iota
	// FullUpsert applies the document whether the record is inserted or updated.
	FullUpsert
)

func (m Mode) String() string {
	switch m {
	case InsertOnly:
		return "insert_only"
	case FullUpsert:
		return "full_upsert"
	}
	return "unknown"
}

// Command is a single atomic find-and-modify request.
type Command struct {
	Collection string
	Query      any
	Document   any
	Mode       Mode

	New       bool
	Upsert    bool
	Overwrite bool
	Fields    any
	Sort      any
	MaxTime   time.Duration

	// Defaults are applied on insert for paths the query and update do not touch.
	Defaults bson.M
	// Extra is appended verbatim to the command.
	Extra bson.D
}

// LastErrorObject is the write metadata of a findAndModify reply.
type LastErrorObject struct {
	N               int64 `bson:"n"`
	UpdatedExisting bool  `bson:"updatedExisting"`
	Upserted        any   `bson:"upserted,omitempty"`
}

// RawResult is the decoded findAndModify reply.
type RawResult struct {
	Value           bson.M          `bson:"value"`
	LastErrorObject LastErrorObject `bson:"lastErrorObject"`
	Ok              float64         `bson:"ok"`
}

// Store runs one atomic find-and-modify round trip.
type Store interface {
	FindAndModify(ctx context.Context, cmd Command) (RawResult, error)
}
