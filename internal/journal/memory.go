package journal

import (
	"context"
	"sort"
	"sync"

	"ladderbot/internal/ladder/model"
)

// MemoryJournal is an in-process, non-durable Journal. Useful for tests
// and for the mock-exchange end-to-end scenarios where durability across
// process restarts is not being exercised.
type MemoryJournal struct {
	mu      sync.RWMutex
	records map[string]*model.Order // keyed by RecordKey
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{records: make(map[string]*model.Order)}
}

func (j *MemoryJournal) Query(ctx context.Context, q Query) ([]*model.Order, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	matches := make([]*model.Order, 0)
	for _, rec := range j.records {
		if q.Purpose != "" && rec.Purpose != q.Purpose {
			continue
		}
		if q.Pair != "" && rec.Pair != q.Pair {
			continue
		}
		if q.Exchange != "" && rec.Exchange != q.Exchange {
			continue
		}
		if q.Processed != nil && rec.IsProcessed != *q.Processed {
			continue
		}
		copyRec := *rec
		matches = append(matches, &copyRec)
	}

	sort.Slice(matches, func(i, k int) bool {
		if matches[i].Side != matches[k].Side {
			return matches[i].Side < matches[k].Side
		}
		return matches[i].LadderIndex < matches[k].LadderIndex
	})

	return matches, nil
}

func (j *MemoryJournal) Persist(ctx context.Context, order *model.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	copyRec := *order
	j.records[order.RecordKey] = &copyRec
	return nil
}

func (j *MemoryJournal) Update(ctx context.Context, order *model.Order, flush bool) error {
	return j.Persist(ctx, order)
}
