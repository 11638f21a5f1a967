package properties

import (
	"sort"
	"sync"
)

// registry is the default in-memory Registry implementation. Maps live in a
// mutex-guarded table keyed by handle id; ids start at 1 so the zero Handle
// never matches a live entry.
type registry struct {
	mu     sync.RWMutex
	nextID uint64
	maps   map[uint64]Map
}

// NewRegistry creates an empty in-memory property map registry.
func NewRegistry() Registry {
	return &registry{maps: make(map[uint64]Map)}
}

func (r *registry) New() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	h := Handle{id: r.nextID}
	r.maps[h.id] = make(Map)
	return h
}

func (r *registry) Set(h Handle, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.maps[h.id]
	if !ok {
		return ErrInvalidHandle
	}
	m[key] = value
	return nil
}

// Snapshot copies the map under the read lock so consumers hold data that
// later Set and Delete calls cannot touch.
func (r *registry) Snapshot(h Handle) (Map, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[h.id]
	if !ok {
		return nil, ErrInvalidHandle
	}
	return m.Clone(), nil
}

func (r *registry) Keys(h Handle) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[h.id]
	if !ok {
		return nil, ErrInvalidHandle
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *registry) Delete(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.maps, h.id)
}

func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.maps)
}

// With releases the map with defer so fn panicking cannot leak it.
func (r *registry) With(fn func(Handle) error) error {
	h := r.New()
	defer r.Delete(h)
	return fn(h)
}

// Compile-time check.
var _ Registry = (*registry)(nil)
