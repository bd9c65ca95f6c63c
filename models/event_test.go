package models

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type memDriver struct {
	mu    sync.Mutex
	docs  []map[string]any
	bulks int
	err   error
	close int
}

func (d *memDriver) Create(ctx context.Context, document map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.docs = append(d.docs, document)
	return nil
}

func (d *memDriver) CreateMany(ctx context.Context, documents []map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.bulks++
	d.docs = append(d.docs, documents...)
	return nil
}

func (d *memDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.close++
}

func (d *memDriver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.docs)
}

func TestServiceEmit(t *testing.T) {
	t.Parallel()
	d := &memDriver{}
	s := NewService(d)

	err := s.Emit(context.Background(), Event{
		Level:      "INFO",
		RequestID:  "req-1",
		Collection: "tests",
		Mode:       FullUpsert,
		IsNew:      true,
		Duration:   1500 * time.Millisecond,
		Payload:    []any{bson.M{"name": "Conan"}, func() {}},
	})
	require.NoError(t, err)

	require.Len(t, d.docs, 1)
	doc := d.docs[0]
	assert.NotEmpty(t, doc["_id"])
	assert.Equal(t, "req-1", doc["request_id"])
	assert.Equal(t, "full_upsert", doc["mode"])
	assert.Equal(t, true, doc["is_new"])
	assert.Equal(t, int64(1500), doc["duration_ms"])
	assert.NotContains(t, doc, "error")

	payload := doc["payload"].([]any)
	assert.Equal(t, map[string]any{"name": "Conan"}, payload[0])
	assert.Equal(t, "<unserializable:func()>", payload[1])

	s.Close()
	assert.Equal(t, 1, d.close)
}

func TestServiceDriverErrorIsIgnored(t *testing.T) {
	t.Parallel()
	failing := &memDriver{err: errors.New("disk full")}
	ok := &memDriver{}
	s := NewService(failing, ok)

	require.NoError(t, s.Emit(context.Background(), Event{Level: "ERROR", Error: "boom"}))
	assert.Equal(t, 0, failing.Len())
	require.Equal(t, 1, ok.Len())
	assert.Equal(t, "boom", ok.docs[0]["error"])
}

func TestAsyncServiceDrainsOnClose(t *testing.T) {
	t.Parallel()
	d := &memDriver{}
	s := NewAsyncService(3, 2, d)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Emit(ctx, Event{Level: "INFO"}))
	}
	cancel()
	s.Close()
	s.Close()

	assert.Equal(t, 50, d.Len())
	assert.Equal(t, 1, d.close)
}

func TestDeepSanitize(t *testing.T) {
	t.Parallel()

	var nilPtr *int
	n := 3
	assert.Nil(t, deepSanitize(nil))
	assert.Nil(t, deepSanitize(nilPtr))
	assert.Equal(t, 3, deepSanitize(&n))
	assert.Equal(t, []byte("raw"), deepSanitize([]byte("raw")))
	assert.Equal(t, []any{1, "<unserializable:chan int>"}, deepSanitize([]any{1, make(chan int)}))
	assert.Equal(t, "<non-string-keys:map[int]string>", deepSanitize(map[int]string{1: "a"}))
	assert.Equal(t, map[string]any{"Name": "x", "Fn": "<unserializable:func()>"}, deepSanitize(struct {
		Name string
		Fn   func()
	}{Name: "x", Fn: func() {}}))
}

func TestEmitAfterClose(t *testing.T) {
	t.Parallel()

	for name, s := range map[string]*Service{
		"sync":  NewService(&memDriver{}),
		"async": NewAsyncService(1, 1, &memDriver{}),
	} {
		t.Run(name, func(t *testing.T) {
			s.Close()
			assert.ErrorIs(t, s.Emit(context.Background(), Event{Level: "INFO"}), ErrServiceClosed)
		})
	}
}
