package cache

import (
	"context"
	"sort"
	"sync"
)

// NewMemoryRegistry 返回进程内的缓存注册表，重启后内容丢失，适合测试与临时部署。
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{stores: make(map[string]*memoryStore)}
}

// MemoryRegistry 以 map 保存所有缓存仓。
type MemoryRegistry struct {
	mu     sync.RWMutex
	stores map[string]*memoryStore
}

func (r *MemoryRegistry) Open(ctx context.Context, name string) (Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	store := r.stores[name]
	if store == nil {
		store = &memoryStore{name: name, entries: make(map[Key]Response)}
		r.stores[name] = store
	}
	return store, nil
}

func (r *MemoryRegistry) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *MemoryRegistry) Has(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.stores[name]
	return ok, nil
}

func (r *MemoryRegistry) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[name]; !ok {
		return false, nil
	}
	delete(r.stores, name)
	return true, nil
}

type memoryStore struct {
	name string

	mu      sync.RWMutex
	entries map[Key]Response
}

func (s *memoryStore) Name() string {
	return s.name
}

func (s *memoryStore) Get(ctx context.Context, key Key) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	s.mu.RLock()
	resp, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Response{}, ErrNotFound
	}
	return resp.Clone(), nil
}

func (s *memoryStore) Put(ctx context.Context, key Key, resp Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = resp.Clone()
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sortKeys(keys)
	return keys, nil
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].URL == keys[j].URL {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].URL < keys[j].URL
	})
}
