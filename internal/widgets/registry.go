package widgets

import (
	"fmt"
	"sort"
	"sync"
)

// Registry owns every live chart handle. It holds at most one handle per key;
// nothing else may destroy a handle it stores.
type Registry struct {
	mu      sync.RWMutex
	handles map[Key]Handle
	onSize  func(int)
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[Key]Handle)}
}

// OnSizeChange registers a callback invoked with the live handle count after
// every mutation.
func (r *Registry) OnSizeChange(fn func(int)) {
	r.mu.Lock()
	r.onSize = fn
	r.mu.Unlock()
}

// Set destroys the handle stored under key, if any, and stores h.
func (r *Registry) Set(key Key, h Handle) {
	r.mu.Lock()
	if prev, ok := r.handles[key]; ok && prev != h {
		prev.Destroy()
	}
	r.handles[key] = h
	size, fn := len(r.handles), r.onSize
	r.mu.Unlock()

	if fn != nil {
		fn(size)
	}
}

// Replace destroys the handle under key before building its replacement.
// When build fails the key is left empty and the error is returned.
func (r *Registry) Replace(key Key, build func() (Handle, error)) error {
	r.mu.Lock()
	if prev, ok := r.handles[key]; ok {
		prev.Destroy()
		delete(r.handles, key)
	}

	h, err := build()
	if err == nil && h == nil {
		err = fmt.Errorf("widget %s: builder returned no handle", key)
	}
	if err == nil {
		r.handles[key] = h
	}
	size, fn := len(r.handles), r.onSize
	r.mu.Unlock()

	if fn != nil {
		fn(size)
	}
	return err
}

func (r *Registry) Get(key Key) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[key]
	return h, ok
}

// HTML returns the rendered markup of the widget under key, or "".
func (r *Registry) HTML(key Key) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handles[key]; ok {
		return h.HTML()
	}
	return ""
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// LiveKeys returns the keys holding a handle, sorted.
func (r *Registry) LiveKeys() []Key {
	r.mu.RLock()
	keys := make([]Key, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// DestroyAll destroys every stored handle and empties the registry.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	for key, h := range r.handles {
		h.Destroy()
		delete(r.handles, key)
	}
	fn := r.onSize
	r.mu.Unlock()

	if fn != nil {
		fn(0)
	}
}
