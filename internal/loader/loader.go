// Package loader provides the default instantiators. Instead of resolving a
// type from a file path at run time, components are constructed from an
// explicit table that maps constant names (as produced by the inflector, for
// example "MyApp::AppComponent") to constructor functions.
package loader

import (
	"context"
	"sort"
	"sync"

	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/store"
)

// Constructor builds an instance for a located component. r resolves the
// component's own dependencies from the owning registry.
type Constructor func(ctx context.Context, r store.Resolver, c component.Component, args ...any) (any, error)

// Catalog is a registration table of constructors keyed by constant name.
// It implements component.Instantiator.
type Catalog struct {
	constructors map[string]Constructor
	fallback     Constructor
	mutex        sync.RWMutex
}

var _ component.Instantiator = (*Catalog)(nil)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{constructors: make(map[string]Constructor)}
}

// Register adds a constructor for constant. Registering a constant twice
// fails.
func (c *Catalog) Register(constant string, fn Constructor) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.constructors[constant]; exists {
		return errors.NewDuplicateKeyError(constant)
	}
	c.constructors[constant] = fn
	return nil
}

// MustRegister is Register for package-level tables built at startup.
func (c *Catalog) MustRegister(constant string, fn Constructor) *Catalog {
	if err := c.Register(constant, fn); err != nil {
		panic(err)
	}
	return c
}

// WithFallback sets the constructor used for constants that have no entry.
func (c *Catalog) WithFallback(fn Constructor) *Catalog {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fallback = fn
	return c
}

// Lookup returns the constructor registered for constant, or the fallback.
func (c *Catalog) Lookup(constant string) (Constructor, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if fn, ok := c.constructors[constant]; ok {
		return fn, true
	}
	return c.fallback, c.fallback != nil
}

// Constants lists the registered constant names in sorted order.
func (c *Catalog) Constants() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	names := make([]string, 0, len(c.constructors))
	for name := range c.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate calls the constructor registered for the component's constant.
// Errors from the constructor are returned unchanged.
func (c *Catalog) Instantiate(ctx context.Context, r store.Resolver, comp component.Component, args ...any) (any, error) {
	constant := comp.Constant()

	fn, ok := c.Lookup(constant)
	if !ok {
		return nil, errors.NewConstructionError(errors.ErrCodeUnknownConstant,
			"no constructor registered for "+constant).
			WithKey(comp.Identifier()).
			WithFilePath(comp.FilePath())
	}

	return fn(ctx, r, comp, args...)
}

// Descriptor is what Describe produces in place of a real instance.
type Descriptor struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Constant   string `json:"constant"   yaml:"constant"`
	Path       string `json:"path"       yaml:"path"`
	FilePath   string `json:"file_path"  yaml:"file_path"`
	Namespace  string `json:"namespace"  yaml:"namespace"`
	Args       []any  `json:"args,omitempty" yaml:"args,omitempty"`
}

// Describe is an instantiator that returns a Descriptor of the component
// instead of constructing anything. The CLI uses it to inspect a project
// whose constructors are not compiled in.
var Describe component.Instantiator = component.InstantiatorFunc(DescribeConstructor)

// DescribeConstructor is Describe as a catalog constructor, suitable for
// Catalog.WithFallback.
func DescribeConstructor(_ context.Context, _ store.Resolver, c component.Component, args ...any) (any, error) {
	return &Descriptor{
		Identifier: c.Identifier(),
		Constant:   c.Constant(),
		Path:       c.Path(),
		FilePath:   c.FilePath(),
		Namespace:  c.Namespace(),
		Args:       args,
	}, nil
}
