package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ entriesRepo = (*MemoryRepo)(nil)

// MemoryRepo keeps entries in memory, used in tests and local runs without postgres
type MemoryRepo struct {
	mu         sync.Mutex
	numberBase int
	counter    int
	entries    map[uuid.UUID]Entry

	// Err, when set, is returned by every call
	Err error
}

func NewMemoryRepo(numberBase int) *MemoryRepo {
	if numberBase <= 0 {
		numberBase = DefaultNumberBase
	}
	return &MemoryRepo{
		numberBase: numberBase,
		entries:    make(map[uuid.UUID]Entry),
	}
}

func (r *MemoryRepo) Create(_ context.Context, newEntry NewEntry) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	entry := Entry{
		ID:               uuid.New(),
		SequentialNumber: r.numberBase + r.counter,
		Name:             newEntry.Name,
		TypeCode:         newEntry.TypeCode,
		Image:            append([]byte(nil), newEntry.Image...),
		CreatedAt:        time.Now(),
	}
	r.counter++
	r.entries[entry.ID] = entry

	summary := entry.Summary()
	return &summary, nil
}

func (r *MemoryRepo) List(_ context.Context) ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	summaries := make([]Summary, 0, len(r.entries))
	for _, e := range r.entries {
		summaries = append(summaries, e.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SequentialNumber < summaries[j].SequentialNumber
	})
	return summaries, nil
}

func (r *MemoryRepo) GetImage(_ context.Context, id uuid.UUID) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry.Image, nil
}
