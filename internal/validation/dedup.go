package validation

import (
	"github.com/deliverables-tracker/internal/models"
)

// BatchTracker remembers the dedup keys accepted so far in one import. It is
// created per call and never shared.
type BatchTracker struct {
	seen map[models.DedupKey]int
}

// NewBatchTracker creates an empty tracker
func NewBatchTracker() *BatchTracker {
	return &BatchTracker{seen: make(map[models.DedupKey]int)}
}

// Seen returns the row number that first claimed key
func (b *BatchTracker) Seen(key models.DedupKey) (int, bool) {
	row, ok := b.seen[key]
	return row, ok
}

// Add claims key for row. The first claim wins; later calls are ignored.
func (b *BatchTracker) Add(key models.DedupKey, row int) {
	if _, ok := b.seen[key]; !ok {
		b.seen[key] = row
	}
}

// Len returns the number of distinct keys accepted
func (b *BatchTracker) Len() int {
	return len(b.seen)
}
