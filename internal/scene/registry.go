package scene

import (
	"maps"
	"sync"
)

// BaseRegistry is a concurrency-safe map. Keys are never overwritten.
type BaseRegistry[K comparable, V any] struct {
	data map[K]V
	mu   sync.RWMutex
}

func NewBaseRegistry[K comparable, V any]() *BaseRegistry[K, V] {
	return &BaseRegistry[K, V]{
		data: make(map[K]V),
	}
}

// Add stores value under key unless the key is taken. Returns the existing
// value and false on collision.
func (r *BaseRegistry[K, V]) Add(key K, value V) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.data[key]; ok {
		return existing, false
	}
	r.data[key] = value
	return value, true
}

func (r *BaseRegistry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, exists := r.data[key]
	return value, exists
}

func (r *BaseRegistry[K, V]) Has(key K) bool {
	_, ok := r.Get(key)
	return ok
}

// DeleteFunc removes every entry for which del returns true
func (r *BaseRegistry[K, V]) DeleteFunc(del func(K, V) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	maps.DeleteFunc(r.data, del)
}

func (r *BaseRegistry[K, V]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
