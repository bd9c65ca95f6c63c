// Package findorcreate finds a MongoDB record or creates it, optionally
// upserting it, with a single atomic findAndModify round trip.
package findorcreate

import (
	"context"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nemutagk/findorcreate/metrics"
	"github.com/Nemutagk/findorcreate/models"
)

const tracerName = "github.com/Nemutagk/findorcreate"

// Result is the outcome of a FindOrCreate call.
type Result struct {
	Doc   bson.M
	IsNew bool
	// UpsertedID is the _id of the inserted record, when one was inserted.
	UpsertedID any
}

// Model is a collection handle with FindOrCreate attached.
type Model struct {
	name     string
	store    models.Store
	defaults bson.M

	events  *models.Service
	metrics *metrics.Collector
	tracer  trace.Tracer
	console io.Writer

	consoleMu sync.Mutex
}

type ModelOption func(*Model)

// WithDefaults sets values written on insert for fields the query and document leave out.
func WithDefaults(defaults bson.M) ModelOption {
	return func(m *Model) {
		m.defaults = defaults
	}
}

func WithEventService(s *models.Service) ModelOption {
	return func(m *Model) {
		m.events = s
	}
}

func WithMetrics(c *metrics.Collector) ModelOption {
	return func(m *Model) {
		m.metrics = c
	}
}

func WithTracer(t trace.Tracer) ModelOption {
	return func(m *Model) {
		m.tracer = t
	}
}

// WithConsole echoes every call to w.
func WithConsole(w io.Writer) ModelOption {
	return func(m *Model) {
		m.console = w
	}
}

func NewModel(collection string, store models.Store, opts ...ModelOption) *Model {
	m := &Model{
		name:  collection,
		store: store,
	}
	for _, o := range opts {
		o(m)
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	return m
}

func (m *Model) Name() string {
	return m.name
}

// FindOrCreate returns the record matching query, inserting doc when nothing matches.
// With Options.Upsert doc is applied to the matched record as well.
// Store errors are returned as they are.
func (m *Model) FindOrCreate(ctx context.Context, query, doc any, opts ...*Options) (Result, error) {
	return m.run(ctx, query, doc, callerOf(), opts)
}

// FindOrCreateCallback runs FindOrCreate and hands the outcome to cb before returning.
// The returned error is only set when the call could not be started.
func (m *Model) FindOrCreateCallback(ctx context.Context, query, doc any, cb Callback, opts ...*Options) error {
	if cb == nil {
		return argumentErrorf("callback is required")
	}
	res, err := m.run(ctx, query, doc, callerOf(), opts)
	cb(err, res)
	return nil
}

// FindOrCreateAsync starts FindOrCreate in the background.
func (m *Model) FindOrCreateAsync(ctx context.Context, query, doc any, opts ...*Options) *Promise {
	caller := callerOf()
	return newPromise(func() (Result, error) {
		return m.run(ctx, query, doc, caller, opts)
	})
}

// Invoke is the positional form: query, doc, then optionally options and a callback.
// A callback in the options position is used only when no callback follows it.
// Arguments past the fourth are ignored. With a callback the call settles
// through it and the returned promise is nil.
func (m *Model) Invoke(ctx context.Context, args ...any) (*Promise, error) {
	if len(args) < 2 {
		return nil, argumentErrorf("requires at least the query and doc arguments, got %d", len(args))
	}

	var cb Callback
	if len(args) > 3 && args[3] != nil {
		c, ok := asCallback(args[3])
		if !ok {
			return nil, argumentErrorf("callback must be a func(error, Result), got %T", args[3])
		}
		cb = c
	}

	var opts *Options
	if len(args) > 2 {
		switch v := args[2].(type) {
		case nil:
		case Options:
			opts = &v
		case *Options:
			opts = v
		default:
			c, ok := asCallback(v)
			if !ok {
				return nil, argumentErrorf("options must be Options or a callback, got %T", v)
			}
			if cb == nil {
				cb = c
			}
		}
	}

	caller := callerOf()
	query, doc := args[0], args[1]
	if cb != nil {
		res, err := m.run(ctx, query, doc, caller, []*Options{opts})
		cb(err, res)
		return nil, nil
	}
	return newPromise(func() (Result, error) {
		return m.run(ctx, query, doc, caller, []*Options{opts})
	}), nil
}

func (m *Model) run(ctx context.Context, query, doc any, caller frame, opts []*Options) (Result, error) {
	start := time.Now()
	r := Resolve(opts...)

	ctx, span := m.tracer.Start(ctx, "findorcreate.FindOrCreate", trace.WithAttributes(
		attribute.String("findorcreate.collection", m.name),
		attribute.String("findorcreate.mode", r.Mode.String()),
	))
	defer span.End()

	raw, err := m.store.FindAndModify(ctx, r.Command(m.name, query, doc, m.defaults))
	var res Result
	if err == nil {
		res = Result{
			Doc:        raw.Value,
			IsNew:      !raw.LastErrorObject.UpdatedExisting,
			UpsertedID: raw.LastErrorObject.Upserted,
		}
	}

	m.record(ctx, models.Event{
		Collection: m.name,
		Mode:       r.Mode,
		IsNew:      res.IsNew,
		Duration:   time.Since(start),
		Payload:    []any{query, doc},
		File:       caller.file,
		Line:       caller.line,
	}, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.Bool("findorcreate.is_new", res.IsNew))
	return res, nil
}

func asCallback(v any) (Callback, bool) {
	switch c := v.(type) {
	case Callback:
		return c, true
	case func(error, Result):
		return c, true
	}
	return nil, false
}

type frame struct {
	file string
	line int
}

// callerOf returns the first frame outside Model and Promise methods.
func callerOf() frame {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, tracerName+".(*Model)") &&
			!strings.HasPrefix(f.Function, tracerName+".(*Promise)") {
			return frame{file: f.File, line: f.Line}
		}
		if !more {
			return frame{file: f.File, line: f.Line}
		}
	}
}
