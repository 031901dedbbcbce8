package registry

import (
	"context"
	"sort"

	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/store"
)

// Frozen is a finalized registry. Its key set is closed, and it is safe for
// concurrent use without locking.
type Frozen struct {
	id    string
	name  string
	items map[string]*store.Item
	keys  []string
}

var _ store.Resolver = (*Frozen)(nil)

func newFrozen(c *Container, items map[string]*store.Item) *Frozen {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return &Frozen{id: c.id, name: c.settings.Name, items: items, keys: keys}
}

// Resolve returns the instance for key. Absent keys are NotRegistered.
func (f *Frozen) Resolve(ctx context.Context, key string) (any, error) {
	if circular, chain := inChain(ctx, f.id, key); circular {
		return nil, errors.NewCircularDependencyError(key, chain)
	}

	item, ok := f.items[key]
	if !ok {
		return nil, errors.NewNotRegisteredError(key)
	}
	return item.Value(withFrame(ctx, f.id, key))
}

// Key reports whether key is registered.
func (f *Frozen) Key(_ context.Context, key string) bool {
	return f.Registered(key)
}

// Registered reports whether key is registered.
func (f *Frozen) Registered(key string) bool {
	_, ok := f.items[key]
	return ok
}

// Item returns the item registered under key.
func (f *Frozen) Item(key string) (*store.Item, bool) {
	item, ok := f.items[key]
	return item, ok
}

// Keys lists every key in lexicographic order.
func (f *Frozen) Keys() []string {
	return append([]string(nil), f.keys...)
}

// Len is the number of registered keys.
func (f *Frozen) Len() int { return len(f.keys) }

// Name is the container name.
func (f *Frozen) Name() string { return f.name }

// Snapshot returns a copy of the mapping.
func (f *Frozen) Snapshot() map[string]*store.Item {
	out := make(map[string]*store.Item, len(f.items))
	for key, item := range f.items {
		out[key] = item
	}
	return out
}
