// Package importer delegates a key namespace to an external registry. A key
// whose root segment names a binding is loaded on the external registry,
// and the external registry's items are then copied into the local store
// under that namespace. Items are shared, not copied, so a memoized
// instance is the same object on both sides.
package importer

import (
	"context"
	"sort"
	"sync"

	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/identifier"
	"github.com/conneroisu/stowage/internal/logging"
	"github.com/conneroisu/stowage/internal/store"
)

// Source is an external registry that can be imported.
type Source interface {
	// Load makes key available in the source if the source can provide it.
	// An absent key is not an error.
	Load(ctx context.Context, key string) error
	Finalize(ctx context.Context) error
	Snapshot() map[string]*store.Item
}

// Namespace is a structured import target: a fixed set of entries exposed
// under Name. Entry values may be *store.Item, store.Factory or a plain
// instance. Factories resolve their dependencies among the namespace's own
// entries, by unprefixed key.
type Namespace struct {
	Name    string
	Entries map[string]any
}

// Source returns a read-only Source over the namespace's entries.
func (n Namespace) Source() Source {
	src := &staticSource{items: make(map[string]*store.Item, len(n.Entries))}
	for key, value := range n.Entries {
		switch v := value.(type) {
		case *store.Item:
			src.items[key] = v
		case store.Factory:
			src.items[key] = store.NewFactory(src, v, true, store.SourceImport).WithKey(key)
		case func(context.Context, store.Resolver) (any, error):
			src.items[key] = store.NewFactory(src, v, true, store.SourceImport).WithKey(key)
		default:
			src.items[key] = store.NewInstance(v, store.SourceImport)
		}
	}
	return src
}

type staticSource struct {
	items map[string]*store.Item
}

var _ store.Resolver = (*staticSource)(nil)

func (s *staticSource) Resolve(ctx context.Context, key string) (any, error) {
	item, ok := s.items[key]
	if !ok {
		return nil, errors.NewNotRegisteredError(key)
	}
	return item.Value(ctx)
}

func (s *staticSource) Key(_ context.Context, key string) bool {
	_, ok := s.items[key]
	return ok
}

func (s *staticSource) Load(context.Context, string) error { return nil }

func (s *staticSource) Finalize(context.Context) error { return nil }

func (s *staticSource) Snapshot() map[string]*store.Item {
	out := make(map[string]*store.Item, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

// Bindings normalizes an import target into namespace bindings. It accepts
// map[string]Source, Namespace and *Namespace.
func Bindings(target any) (map[string]Source, error) {
	switch t := target.(type) {
	case map[string]Source:
		out := make(map[string]Source, len(t))
		for name, src := range t {
			if name == "" || src == nil {
				return nil, errors.NewInvalidImportTargetError(target)
			}
			out[name] = src
		}
		return out, nil
	case Namespace:
		if t.Name == "" {
			return nil, errors.NewInvalidImportTargetError(target)
		}
		return map[string]Source{t.Name: t.Source()}, nil
	case *Namespace:
		if t == nil {
			return nil, errors.NewInvalidImportTargetError(target)
		}
		return Bindings(*t)
	default:
		return nil, errors.NewInvalidImportTargetError(target)
	}
}

// Importer holds the import bindings of one registry and merges imported
// items into its store.
type Importer struct {
	items     *store.Store
	separator string
	logger    logging.Logger

	mutex    sync.RWMutex
	bindings map[string]Source
	order    []string
}

// New creates an importer that merges into items.
func New(items *store.Store, separator string, logger logging.Logger) *Importer {
	if separator == "" {
		separator = identifier.DefaultSeparator
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Importer{
		items:     items,
		separator: separator,
		logger:    logger.WithComponent("importer"),
		bindings:  make(map[string]Source),
	}
}

// Register adds bindings. Rebinding a namespace replaces its source.
func (im *Importer) Register(bindings map[string]Source) {
	im.mutex.Lock()
	defer im.mutex.Unlock()

	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, exists := im.bindings[name]; !exists {
			im.order = append(im.order, name)
		}
		im.bindings[name] = bindings[name]
	}
}

// Key reports whether namespace is bound.
func (im *Importer) Key(namespace string) bool {
	_, ok := im.LoadNamespace(namespace)
	return ok
}

// LoadNamespace returns the source bound to namespace.
func (im *Importer) LoadNamespace(namespace string) (Source, bool) {
	im.mutex.RLock()
	defer im.mutex.RUnlock()

	src, ok := im.bindings[namespace]
	return src, ok
}

// Namespaces lists bound namespaces in registration order.
func (im *Importer) Namespaces() []string {
	im.mutex.RLock()
	defer im.mutex.RUnlock()
	return append([]string(nil), im.order...)
}

// Load serves key from the binding named by its root segment. The key is
// loaded on the source with the namespace stripped, then the source is
// merged. It reports whether a binding matched.
func (im *Importer) Load(ctx context.Context, key string) (bool, error) {
	namespace := identifier.RootKey(key, im.separator)

	src, ok := im.LoadNamespace(namespace)
	if !ok {
		return false, nil
	}

	if stripped, ok := identifier.TrimRoot(key, namespace, im.separator); ok {
		if err := src.Load(ctx, stripped); err != nil {
			return true, err
		}
	}

	return true, im.Merge(ctx, namespace, src)
}

// Merge copies every item currently in src into the local store under
// namespace. Merging again after src gained items adds the new ones; keys
// already present are overwritten with the source's item.
func (im *Importer) Merge(ctx context.Context, namespace string, src Source) error {
	snapshot := src.Snapshot()

	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := im.items.Set(namespace+im.separator+key, snapshot[key]); err != nil {
			return err
		}
	}

	im.logger.Debug(ctx, "Merged import", "namespace", namespace, "keys", len(keys))
	return nil
}

// Finalize finalizes every bound source and merges it, in registration
// order.
func (im *Importer) Finalize(ctx context.Context) error {
	for _, namespace := range im.Namespaces() {
		src, _ := im.LoadNamespace(namespace)
		if err := src.Finalize(ctx); err != nil {
			return err
		}
		if err := im.Merge(ctx, namespace, src); err != nil {
			return err
		}
	}
	return nil
}
