package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/Nemutagk/findorcreate/helper"
)

// Event describes one FindOrCreate call.
type Event struct {
	Level      string        `json:"level" bson:"level"`
	RequestID  string        `json:"request_id" bson:"request_id"`
	Collection string        `json:"collection" bson:"collection"`
	Mode       Mode          `json:"mode" bson:"mode"`
	IsNew      bool          `json:"is_new" bson:"is_new"`
	Error      string        `json:"error,omitempty" bson:"error,omitempty"`
	Duration   time.Duration `json:"duration" bson:"duration"`
	Payload    []any         `json:"payload" bson:"payload"`
	File       string        `json:"file" bson:"file"`
	Line       int           `json:"line" bson:"line"`
}

// ErrServiceClosed is returned by Emit after Close.
var ErrServiceClosed = errors.New("event service closed")

type Driver interface {
	Create(ctx context.Context, document map[string]any) error
}

type DriverMany interface {
	CreateMany(ctx context.Context, documents []map[string]any) error
}

// BulkInserter is implemented by drivers that can write a whole batch at once.
type BulkInserter interface {
	Create(ctx context.Context, document map[string]any) error
	CreateMany(ctx context.Context, documents []map[string]any) error
}

// Service fans events out to its drivers, synchronously or through a worker pool.
type Service struct {
	drivers []Driver

	async bool
	jobs  chan asyncJob
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

type asyncJob struct {
	ctx   context.Context
	event Event
}

func NewService(drivers ...Driver) *Service {
	return &Service{drivers: drivers}
}

func NewAsyncService(workers, queueSize int, drivers ...Driver) *Service {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 100
	}
	s := &Service{
		drivers: drivers,
		async:   true,
		jobs:    make(chan asyncJob, queueSize),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *Service) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		s.process(job.ctx, job.event)
	}
}

func (s *Service) process(ctx context.Context, ev Event) {
	sanitized := make([]any, 0, len(ev.Payload))
	for _, v := range ev.Payload {
		sanitized = append(sanitized, deepSanitize(v))
	}

	document := map[string]any{
		"_id":         helper.GetUuidV7(),
		"created_at":  time.Now(),
		"level":       ev.Level,
		"request_id":  ev.RequestID,
		"collection":  ev.Collection,
		"mode":        ev.Mode.String(),
		"is_new":      ev.IsNew,
		"duration_ms": ev.Duration.Milliseconds(),
		"payload":     sanitized,
		"file":        ev.File,
		"line":        ev.Line,
	}
	if ev.Error != "" {
		document["error"] = ev.Error
	}
	for _, d := range s.drivers {
		if err := d.Create(ctx, document); err != nil {
			log.Printf("Error writing event with driver %T: %v", d, err)
		}
	}
}

// deepSanitize drops values that cannot be serialized (funcs, channels).
func deepSanitize(v any) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("<unserializable:%T>", v)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return deepSanitize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rt.Elem().Kind() == reflect.Uint8 {
			return v
		}
		n := rv.Len()
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = deepSanitize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rt.Key().Kind() != reflect.String {
			return fmt.Sprintf("<non-string-keys:%T>", v)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = deepSanitize(iter.Value().Interface())
		}
		return out
	case reflect.Struct:
		if _, err := json.Marshal(v); err != nil {
			m := map[string]any{}
			for i := 0; i < rt.NumField(); i++ {
				f := rt.Field(i)
				if f.PkgPath != "" {
					continue
				}
				m[f.Name] = deepSanitize(rv.Field(i).Interface())
			}
			return m
		}
		return v
	default:
		if _, err := json.Marshal(map[string]any{"v": v}); err != nil {
			return fmt.Sprintf("<unserializable:%T>", v)
		}
		return v
	}
}

// Emit writes the event synchronously, or queues it blocking while the queue is full.
func (s *Service) Emit(ctx context.Context, ev Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrServiceClosed
	}
	if !s.async {
		s.process(ctx, ev)
		return nil
	}
	s.jobs <- asyncJob{ctx: context.WithoutCancel(ctx), event: ev}
	return nil
}

// Close drains the workers and closes drivers that need it.
func (s *Service) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.async {
			close(s.jobs)
			s.wg.Wait()
		}
		for _, d := range s.drivers {
			if c, ok := d.(interface{ Close() }); ok {
				c.Close()
			}
		}
	})
}
