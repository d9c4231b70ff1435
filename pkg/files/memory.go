package files

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps files in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*File
}

// NewMemoryStore returns an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*File)}
}

func (m *MemoryStore) Put(ctx context.Context, f *File) error {
	cp := *f
	cp.Data = append([]byte(nil), f.Data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*File, error) {
	m.mu.RLock()
	out := make([]*File, 0, len(m.files))
	for _, f := range m.files {
		cp := *f
		cp.Data = nil
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return false, nil
	}
	delete(m.files, id)
	return true, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (int, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, f := range m.files {
		total += f.Bytes
	}
	return len(m.files), total, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
