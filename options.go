package findorcreate

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Nemutagk/findorcreate/models"
)

type Mode = models.Mode

const (
	InsertOnly = models.InsertOnly
	FullUpsert = models.FullUpsert
)

// Options configures a single FindOrCreate call.
//
// The zero value finds the record matching the query and inserts the document
// only when nothing matches, returning the record as it is after the call.
type Options struct {
	// Upsert applies the document to a matched record too. Defaults to false.
	Upsert *bool
	// New returns the record after the update. Defaults to true.
	New *bool
	// SetDefaultsOnInsert applies the model defaults when a record is inserted. Defaults to true.
	SetDefaultsOnInsert *bool
	// Fields restricts the returned fields: "name age", "-secret" or a projection document.
	Fields any
	// Sort picks the record to act on when the query matches several: "name -age" or a document.
	Sort any
	// Overwrite sends a plain document as a full replacement instead of $set. Upsert mode only.
	Overwrite *bool
	// MaxTime bounds the server side execution time.
	MaxTime time.Duration
	// Extra is passed to the server unchanged.
	Extra bson.D
}

// Resolved is the outcome of merging Options over the defaults.
type Resolved struct {
	Mode                Mode
	New                 bool
	SetDefaultsOnInsert bool
	Fields              any
	Sort                any
	Overwrite           bool
	MaxTime             time.Duration
	Extra               bson.D
}

// Resolve merges opts, in order, over {New: true, SetDefaultsOnInsert: true}.
// Unset fields keep the value of earlier options.
func Resolve(opts ...*Options) Resolved {
	r := Resolved{
		Mode:                InsertOnly,
		New:                 true,
		SetDefaultsOnInsert: true,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Upsert != nil {
			r.Mode = InsertOnly
			if *o.Upsert {
				r.Mode = FullUpsert
			}
		}
		if o.New != nil {
			r.New = *o.New
		}
		if o.SetDefaultsOnInsert != nil {
			r.SetDefaultsOnInsert = *o.SetDefaultsOnInsert
		}
		if o.Fields != nil {
			r.Fields = o.Fields
		}
		if o.Sort != nil {
			r.Sort = o.Sort
		}
		if o.Overwrite != nil {
			r.Overwrite = *o.Overwrite
		}
		if o.MaxTime > 0 {
			r.MaxTime = o.MaxTime
		}
		r.Extra = append(r.Extra, o.Extra...)
	}
	return r
}

// Command builds the store command. The wire-level upsert flag is always set:
// in InsertOnly mode the $setOnInsert wrapper keeps matched records untouched.
func (r Resolved) Command(collection string, query, doc any, defaults bson.M) models.Command {
	cmd := models.Command{
		Collection: collection,
		Query:      query,
		Document:   doc,
		Mode:       r.Mode,
		New:        r.New,
		Upsert:     true,
		Overwrite:  r.Overwrite && r.Mode == FullUpsert,
		Fields:     r.Fields,
		Sort:       r.Sort,
		MaxTime:    r.MaxTime,
		Extra:      r.Extra,
	}
	if r.SetDefaultsOnInsert && len(defaults) > 0 {
		cmd.Defaults = defaults
	}
	return cmd
}
