package store

import (
	"context"
	"sync"

	"github.com/conneroisu/stowage/internal/errors"
)

// Resolver is the lookup surface handed to factories. It is implemented by
// the owning container so a factory can pull in its own dependencies.
type Resolver interface {
	Resolve(ctx context.Context, key string) (any, error)
	Key(ctx context.Context, key string) bool
}

// Factory produces the value for a key on demand.
type Factory func(ctx context.Context, r Resolver) (any, error)

// Source records which resolution step registered an item.
type Source string

const (
	SourceDirect Source = "direct"
	SourceStaged Source = "staged"
	SourceLocal  Source = "local"
	SourceManual Source = "manual"
	SourceImport Source = "import"
)

// Item is a registered value: either a realized instance or a deferred
// factory. Memoized items run their factory at most once successfully and
// return the cached value afterwards. Items are shared between registries
// when imported, so a memoized instance is the same object everywhere.
type Item struct {
	key      string
	factory  Factory
	owner    Resolver
	memoize  bool
	source   Source
	filePath string

	mu    sync.Mutex
	done  bool
	value any
}

// NewInstance wraps an already constructed value.
func NewInstance(value any, source Source) *Item {
	return &Item{
		memoize: true,
		source:  source,
		done:    true,
		value:   value,
	}
}

// NewFactory wraps a deferred factory. owner is the resolver the factory sees
// when it is eventually called, regardless of which registry asks for it.
func NewFactory(owner Resolver, factory Factory, memoize bool, source Source) *Item {
	return &Item{
		factory: factory,
		owner:   owner,
		memoize: memoize,
		source:  source,
	}
}

// WithFile records the artifact the item was discovered from.
func (it *Item) WithFile(path string) *Item {
	it.filePath = path
	return it
}

// WithKey names the item in errors before it is added to a store.
func (it *Item) WithKey(key string) *Item {
	it.key = key
	return it
}

// Value returns the item's instance, invoking the factory as required.
// Factory errors are returned unchanged and are not cached. A factory that
// reaches its own item again, through any registry, gets a circular
// dependency error.
func (it *Item) Value(ctx context.Context) (any, error) {
	if it.factory == nil {
		return it.value, nil
	}

	if building(ctx, it) {
		return nil, errors.NewCircularDependencyError(it.key, nil)
	}
	ctx = withBuilding(ctx, it)

	if !it.memoize {
		return it.factory(ctx, it.owner)
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.done {
		return it.value, nil
	}

	value, err := it.factory(ctx, it.owner)
	if err != nil {
		return nil, err
	}

	it.value = value
	it.done = true
	return value, nil
}

type buildingKey struct{}

// building reports whether ctx is inside the factory of it.
func building(ctx context.Context, it *Item) bool {
	items, _ := ctx.Value(buildingKey{}).([]*Item)
	for _, b := range items {
		if b == it {
			return true
		}
	}
	return false
}

func withBuilding(ctx context.Context, it *Item) context.Context {
	items, _ := ctx.Value(buildingKey{}).([]*Item)
	next := make([]*Item, len(items), len(items)+1)
	copy(next, items)
	return context.WithValue(ctx, buildingKey{}, append(next, it))
}

// Key returns the key the item was first registered under.
func (it *Item) Key() string { return it.key }

// Memoized reports whether the item caches its value.
func (it *Item) Memoized() bool { return it.memoize }

// Source reports which resolution step registered the item.
func (it *Item) Source() Source { return it.source }

// FilePath returns the artifact the item came from, if any.
func (it *Item) FilePath() string { return it.filePath }

// Realized reports whether a value has been produced and cached.
func (it *Item) Realized() bool {
	if it.factory == nil {
		return true
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.done
}
