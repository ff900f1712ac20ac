package behavior

import (
	"strings"
	"sync"
)

// Blackboard provides a thread-safe key-value store for behavior tree state.
// Ports declared as {key} on a node read and write through it.
//
// Usage: Create with new(Blackboard). The internal map is lazily initialized
// on the first write operation via the init() method.
//
// A blackboard created with NewChild is a scope: keys listed in its remap
// table (and, with autoremap, every key not starting with "_") resolve in the
// parent. A key prefixed with "@" always resolves in the root blackboard.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any

	parent    *Blackboard
	remap     map[string]string
	autoremap bool
}

// NewChild returns a scope whose remapped keys resolve in b. The remap table
// maps a key of the child to a key of the parent.
func (b *Blackboard) NewChild(remap map[string]string, autoremap bool) *Blackboard {
	child := &Blackboard{
		parent:    b,
		autoremap: autoremap,
	}
	if len(remap) > 0 {
		child.remap = make(map[string]string, len(remap))
		for k, v := range remap {
			child.remap[k] = v
		}
	}
	return child
}

// Parent returns the enclosing scope, or nil for a root blackboard.
func (b *Blackboard) Parent() *Blackboard {
	return b.parent
}

// Root returns the outermost scope.
func (b *Blackboard) Root() *Blackboard {
	for b.parent != nil {
		b = b.parent
	}
	return b
}

// init initializes the blackboard's internal map if needed.
// Called automatically on write operations. Must hold mu.
func (b *Blackboard) init() {
	if b.data == nil {
		b.data = make(map[string]any)
	}
}

// route resolves key to the blackboard that owns it, and the key within it.
func (b *Blackboard) route(key string) (*Blackboard, string) {
	if rest, ok := strings.CutPrefix(key, "@"); ok {
		return b.Root(), rest
	}
	for b.parent != nil {
		if target, ok := b.remap[key]; ok {
			b, key = b.parent, target
			continue
		}
		if b.autoremap && !strings.HasPrefix(key, "_") && !b.hasLocal(key) {
			b = b.parent
			continue
		}
		break
	}
	return b, key
}

// Get retrieves a value from the blackboard.
// Returns nil if the key doesn't exist.
func (b *Blackboard) Get(key string) any {
	v, _ := b.Lookup(key)
	return v
}

// Lookup retrieves a value and reports whether the key exists.
func (b *Blackboard) Lookup(key string) (any, bool) {
	b, key = b.route(key)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil, false
	}
	v, ok := b.data[key]
	return v, ok
}

// Set stores a value in the blackboard.
func (b *Blackboard) Set(key string, value any) {
	b, key = b.route(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.data[key] = value
}

func (b *Blackboard) hasLocal(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok
}

// setLocal stores a value in this scope, bypassing remapping.
func (b *Blackboard) setLocal(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.data[key] = value
}

// Has returns true if the key exists in the blackboard.
func (b *Blackboard) Has(key string) bool {
	_, ok := b.Lookup(key)
	return ok
}

// Delete removes a key from the blackboard.
func (b *Blackboard) Delete(key string) {
	b, key = b.route(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return
	}
	delete(b.data, key)
}

// Keys returns the keys stored locally in this scope.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil
	}
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys
}

// Clear removes all local entries from the blackboard.
func (b *Blackboard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string]any)
}

// Len returns the number of local keys in the blackboard.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Snapshot returns a shallow copy of the local blackboard data.
//
// WARNING: This is a SHALLOW copy. Mutable values (slices, maps, pointers)
// are shared with the blackboard.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil
	}
	result := make(map[string]any, len(b.data))
	for k, v := range b.data {
		result[k] = v
	}
	return result
}

// Visible returns every key readable from this scope, keyed as this scope
// sees them. Local entries shadow remapped and autoremapped ones. Keys of the
// root are not included unless they are visible through remapping.
func (b *Blackboard) Visible() map[string]any {
	result := make(map[string]any)
	if b.parent != nil {
		if b.autoremap {
			for k, v := range b.parent.Visible() {
				if !strings.HasPrefix(k, "_") {
					result[k] = v
				}
			}
		}
		for k, target := range b.remap {
			if v, ok := b.parent.Lookup(target); ok {
				result[k] = v
			}
		}
	}
	for k, v := range b.Snapshot() {
		result[k] = v
	}
	return result
}
