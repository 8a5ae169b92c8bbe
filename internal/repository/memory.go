package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/debemdeboas/locs-review/internal/model"
)

// MemoryMetadataStore keeps both tables in process memory. Pending items keep
// insertion order.
type MemoryMetadataStore struct {
	mu        sync.RWMutex
	pending   []model.PendingItem
	published map[model.ItemID]model.PublishedItem
}

func NewMemoryMetadataStore(pending ...model.PendingItem) *MemoryMetadataStore {
	return &MemoryMetadataStore{
		pending:   append([]model.PendingItem(nil), pending...),
		published: make(map[model.ItemID]model.PublishedItem),
	}
}

func (m *MemoryMetadataStore) InsertPublished(_ context.Context, id model.ItemID, coord model.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.published[id]; ok {
		return fmt.Errorf("publish %s: %w", id, ErrDuplicateRecord)
	}
	m.published[id] = model.PublishedItem{ID: id, Coordinate: coord, PublishedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryMetadataStore) DeletePending(_ context.Context, id model.ItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.pending {
		if item.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("pending %s: %w", id, ErrNotFound)
}

func (m *MemoryMetadataStore) ListPending(context.Context) ([]model.PendingItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.PendingItem{}, m.pending...), nil
}

func (m *MemoryMetadataStore) InsertPending(_ context.Context, item model.PendingItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pending {
		if p.ID == item.ID {
			return fmt.Errorf("queue %s: %w", item.ID, ErrDuplicateRecord)
		}
	}
	m.pending = append(m.pending, item)
	return nil
}

func (m *MemoryMetadataStore) GetPending(_ context.Context, id model.ItemID) (*model.PendingItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pending {
		if p.ID == id {
			item := p
			return &item, nil
		}
	}
	return nil, fmt.Errorf("pending %s: %w", id, ErrNotFound)
}

// GetPublished is a lookup helper for tests and tooling.
func (m *MemoryMetadataStore) GetPublished(_ context.Context, id model.ItemID) (*model.PublishedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.published[id]
	if !ok {
		return nil, fmt.Errorf("published %s: %w", id, ErrNotFound)
	}
	return &item, nil
}

func (m *MemoryMetadataStore) ListPublished(context.Context) ([]model.PublishedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]model.PublishedItem, 0, len(m.published))
	for _, item := range m.published {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b model.PublishedItem) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return items, nil
}
