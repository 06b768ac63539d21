package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It backs tests and local runs without a
// database; all mutations happen under a single lock so counter increments are
// atomic.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Dataset

	// Now returns the current time. Tests may replace it.
	Now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Dataset),
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Put inserts or replaces a record as is. It is meant for seeding.
func (m *MemoryStore) Put(d Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clone(&d)
	m.items[d.ID] = cp
}

func clone(d *Dataset) *Dataset {
	cp := *d
	if d.Tags != nil {
		cp.Tags = append([]string(nil), d.Tags...)
	}
	return &cp
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(d), nil
}

func (m *MemoryStore) Create(_ context.Context, in Input) (*Dataset, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := m.Now()
	d := &Dataset{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	in.Apply(d)

	m.mu.Lock()
	m.items[d.ID] = d
	m.mu.Unlock()
	return clone(d), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, in Input) (*Dataset, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	in.Apply(d)
	d.UpdatedAt = m.Now()
	return clone(d), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) Search(_ context.Context, p SearchParams) (*Page, error) {
	p = p.Normalize()

	m.mu.RLock()
	var matched []Dataset
	for _, d := range m.items {
		if matches(d, p) {
			matched = append(matched, *clone(d))
		}
	}
	m.mu.RUnlock()

	sortDatasets(matched, p.Sort, p.Desc)

	total := int64(len(matched))
	start := min(p.Offset(), len(matched))
	end := min(start+p.Size, len(matched))
	return NewPage(matched[start:end], total, p), nil
}

func matches(d *Dataset, p SearchParams) bool {
	switch {
	case p.Query != "":
		q := strings.ToLower(p.Query)
		return strings.Contains(strings.ToLower(d.Title), q) ||
			strings.Contains(strings.ToLower(d.Description), q)
	case p.Category != "":
		return strings.EqualFold(d.Category, p.Category)
	default:
		return true
	}
}

func sortDatasets(ds []Dataset, field SortField, desc bool) {
	less := func(a, b *Dataset) bool {
		switch field {
		case SortTitle:
			return a.Title < b.Title
		case SortViewCount:
			return a.ViewCount < b.ViewCount
		case SortDownloadCount:
			return a.DownloadCount < b.DownloadCount
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(ds, func(i, j int) bool {
		if desc {
			return less(&ds[j], &ds[i])
		}
		return less(&ds[i], &ds[j])
	})
}

func (m *MemoryStore) Categories(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	out := []string{}
	for _, d := range m.items {
		if d.Category != "" && !seen[d.Category] {
			seen[d.Category] = true
			out = append(out, d.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) IncrementViews(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d.ViewCount++
	return nil
}

func (m *MemoryStore) IncrementDownloads(_ context.Context, id string) (*Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d.DownloadCount++
	return clone(d), nil
}

func (m *MemoryStore) Summary(_ context.Context) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Summary{TotalDatasets: int64(len(m.items))}
	for _, d := range m.items {
		s.TotalViews += d.ViewCount
		s.TotalDownloads += d.DownloadCount
	}
	return s, nil
}

func (m *MemoryStore) CategoryStats(_ context.Context) ([]CategoryCount, error) {
	m.mu.RLock()
	counts := make(map[string]int64)
	for _, d := range m.items {
		if d.Category != "" {
			counts[d.Category]++
		}
	}
	m.mu.RUnlock()

	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (m *MemoryStore) Top(_ context.Context, by Counter, limit int) ([]Dataset, error) {
	m.mu.RLock()
	all := make([]Dataset, 0, len(m.items))
	for _, d := range m.items {
		all = append(all, *clone(d))
	}
	m.mu.RUnlock()

	field := SortViewCount
	if by == CounterDownloads {
		field = SortDownloadCount
	}
	sortDatasets(all, field, true)
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
