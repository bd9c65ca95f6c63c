package models

import (
	"context"
	"log"
	"sync"
	"time"
)

// batchDriver buffers event documents and writes them in groups.
type batchDriver struct {
	under    Driver
	size     int
	interval time.Duration

	mu    sync.Mutex
	buf   []map[string]any
	timer *time.Timer
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once

	closed bool
}

// NewBatchDriver wraps under so that documents are flushed every size documents
// or every flushInterval, whichever comes first. A size of 1 or less disables batching.
func NewBatchDriver(under Driver, size int, flushInterval time.Duration) Driver {
	if size <= 1 {
		return under
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	bd := &batchDriver{
		under:    under,
		size:     size,
		interval: flushInterval,
		buf:      make([]map[string]any, 0, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	bd.start()
	return bd
}

func (b *batchDriver) start() {
	b.timer = time.NewTimer(b.interval)
	go func() {
		defer close(b.done)
		for {
			select {
			case <-b.timer.C:
				b.Flush(context.Background())
				b.timer.Reset(b.interval)
			case <-b.stop:
				b.timer.Stop()
				b.Flush(context.Background())
				return
			}
		}
	}()
}

func (b *batchDriver) Create(ctx context.Context, document map[string]any) error {
	return b.CreateMany(ctx, []map[string]any{document})
}

// CreateMany buffers documents. After Close they are written straight through.
func (b *batchDriver) CreateMany(ctx context.Context, documents []map[string]any) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.write(ctx, documents)
		return nil
	}
	b.buf = append(b.buf, documents...)
	full := len(b.buf) >= b.size
	b.mu.Unlock()

	if full {
		b.Flush(ctx)
	}
	return nil
}

// Flush writes everything buffered so far.
func (b *batchDriver) Flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.buf) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buf
	b.buf = make([]map[string]any, 0, b.size)
	b.mu.Unlock()

	b.write(ctx, batch)
}

func (b *batchDriver) write(ctx context.Context, batch []map[string]any) {
	if len(batch) == 0 {
		return
	}
	if bi, ok := b.under.(BulkInserter); ok {
		err := bi.CreateMany(ctx, batch)
		if err == nil {
			return
		}
		log.Printf("Batch insert error (bulk) %T: %v (falling back)", b.under, err)
	}
	for _, d := range batch {
		if err := b.under.Create(ctx, d); err != nil {
			log.Printf("Batch insert error %T: %v", b.under, err)
		}
	}
}

// Close flushes the remaining documents and stops the flush loop.
func (b *batchDriver) Close() {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		close(b.stop)
		<-b.done
		if c, ok := b.under.(interface{ Close() }); ok {
			c.Close()
		}
	})
}
