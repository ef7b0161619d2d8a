// Package dedupe tracks the actor ids a cycle has in flight so each actor
// is scheduled at most once.
package dedupe

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Deduper records seen actor ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen. Empty ids are never recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a later SeenAndRecord reports it as new. The
	// cycle calls it once the actor's job has replied or could not be queued.
	Unrecord(ctx context.Context, id string)

	// Reset forgets everything.
	Reset()

	// Size is the number of ids currently recorded.
	Size() int64
}

type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates an empty deduper safe for concurrent use.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; !ok {
		return
	}
	delete(d.seen, id)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen = make(map[string]struct{})
	d.size.Store(0)
}

// Size reads a counter kept beside the map, so it never takes the lock.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Unique returns ids in first-seen order with blanks and repeats removed,
// recording each kept id in d. Ids d already holds are skipped too.
func Unique(ctx context.Context, d Deduper, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || d.SeenAndRecord(ctx, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
