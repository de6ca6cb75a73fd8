// Package dedupe remembers recently seen keys so repeat visitors skip the store.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50_000

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if not.
	// Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool
	// Unrecord forgets key so a later attempt is not treated as a repeat.
	// Used when recording the key downstream failed.
	Unrecord(ctx context.Context, key string)
	Size() int64
}

// lruDeduper is a bounded set with least-recently-seen eviction.
// maxSize <= 0 disables eviction.
type lruDeduper struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List // front = most recently seen
	items   map[string]*list.Element
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &lruDeduper{
		maxSize: defaultMaxSize,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.items[key]; ok {
		d.order.MoveToFront(el)
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		if oldest := d.order.Back(); oldest != nil {
			d.order.Remove(oldest)
			delete(d.items, oldest.Value.(string))
		}
	}
	d.items[key] = d.order.PushFront(key)
	return false
}

func (d *lruDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.items[key]; ok {
		d.order.Remove(el)
		delete(d.items, key)
	}
}

func (d *lruDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
