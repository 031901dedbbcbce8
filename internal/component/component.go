// Package component defines the immutable descriptor of a resolvable unit:
// its identifier, its namespace-qualified path, the file it was found in (if
// any) and the options that decide how it is registered and constructed.
//
// A Component never owns an instance. It owns a delegate, the Instantiator,
// which the registry calls when the component's key is resolved.
package component

import (
	"context"
	"fmt"
	"reflect"

	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/identifier"
	"github.com/conneroisu/stowage/internal/inflector"
	"github.com/conneroisu/stowage/internal/store"
)

// Instantiator turns a located component into an instance. Implementations
// must be deterministic for identical inputs and safe for concurrent use.
type Instantiator interface {
	Instantiate(ctx context.Context, r store.Resolver, c Component, args ...any) (any, error)
}

// InstantiatorFunc adapts a function to the Instantiator interface.
type InstantiatorFunc func(ctx context.Context, r store.Resolver, c Component, args ...any) (any, error)

// Instantiate calls f.
func (f InstantiatorFunc) Instantiate(ctx context.Context, r store.Resolver, c Component, args ...any) (any, error) {
	return f(ctx, r, c, args...)
}

// Options are the settings a component carries from its directory, the
// global configuration and any per-file directives.
type Options struct {
	Separator    string
	Namespace    string
	AutoRegister Predicate
	Memoize      Predicate
	Loader       Instantiator
	Inflector    *inflector.Inflector
}

var defaultInflector = inflector.New()

func (o Options) withDefaults() Options {
	if o.Separator == "" {
		o.Separator = identifier.DefaultSeparator
	}
	if o.Inflector == nil {
		o.Inflector = defaultInflector
	}
	return o
}

// Equal compares options field by field. Loaders and predicates compare by
// identity.
func (o Options) Equal(other Options) bool {
	return o.Separator == other.Separator &&
		o.Namespace == other.Namespace &&
		o.AutoRegister.Equal(other.AutoRegister) &&
		o.Memoize.Equal(other.Memoize) &&
		sameRef(o.Loader, other.Loader) &&
		o.Inflector == other.Inflector
}

// Component is an immutable descriptor. Copies are cheap and share nothing
// mutable.
type Component struct {
	identifier string
	path       string
	filePath   string
	options    Options
}

// New builds a component for raw, which is normalized and stripped of the
// options' namespace. The component has no file on disk.
func New(raw string, options Options) Component {
	return NewWithFile(raw, "", options)
}

// NewWithFile builds a component located at filePath.
func NewWithFile(raw, filePath string, options Options) Component {
	options = options.withDefaults()

	id := identifier.Normalize(raw, options.Namespace, options.Separator)
	return Component{
		identifier: id,
		path:       identifier.ToPath(id, options.Namespace, options.Separator),
		filePath:   filePath,
		options:    options,
	}
}

// Identifier is the component's canonical key.
func (c Component) Identifier() string { return c.identifier }

// Path is the directory-relative, namespace-qualified path.
func (c Component) Path() string { return c.path }

// FilePath is the absolute location of the component's file, or "".
func (c Component) FilePath() string { return c.filePath }

// Options returns a copy of the component's options.
func (c Component) Options() Options { return c.options }

// Separator returns the configured identifier separator.
func (c Component) Separator() string { return c.options.Separator }

// Namespace returns the namespace the component was found under.
func (c Component) Namespace() string { return c.options.Namespace }

// Loader returns the configured instantiator.
func (c Component) Loader() Instantiator { return c.options.Loader }

// Inflector returns the configured inflector.
func (c Component) Inflector() *inflector.Inflector { return c.options.Inflector }

// Constant is the constructor name the component's path maps to.
func (c Component) Constant() string {
	return c.options.Inflector.Constant(c.path)
}

// Instance delegates to the loader.
func (c Component) Instance(ctx context.Context, r store.Resolver, args ...any) (any, error) {
	if c.options.Loader == nil {
		return nil, errors.NewConstructionError(errors.ErrCodeNoLoader, "no loader configured").
			WithKey(c.identifier)
	}
	return c.options.Loader.Instantiate(ctx, r, c, args...)
}

// Bootable reports whether the component follows a staged lifecycle.
// Components found in directories never do.
func (c Component) Bootable() bool { return false }

// FileExists reports whether the component was located on disk.
func (c Component) FileExists() bool { return c.filePath != "" }

// AutoRegister evaluates the auto-register option.
func (c Component) AutoRegister() bool { return c.options.AutoRegister.Eval(c) }

// Memoize evaluates the memoize option.
func (c Component) Memoize() bool { return c.options.Memoize.Eval(c) }

// RootKey is the first segment of the identifier.
func (c Component) RootKey() string {
	return identifier.RootKey(c.identifier, c.options.Separator)
}

// Namespaced returns a copy of c under namespace, without a file path. The
// identifier and path are kept as they are.
func (c Component) Namespaced(namespace string) Component {
	options := c.options
	options.Namespace = namespace
	return Component{
		identifier: c.identifier,
		path:       c.path,
		options:    options,
	}
}

// Equal compares identifier, path, file path and options.
func (c Component) Equal(other Component) bool {
	return c.identifier == other.identifier &&
		c.path == other.path &&
		c.filePath == other.filePath &&
		c.options.Equal(other.options)
}

// String implements fmt.Stringer.
func (c Component) String() string {
	if c.filePath == "" {
		return fmt.Sprintf("%s (%s)", c.identifier, c.path)
	}
	return fmt.Sprintf("%s (%s, %s)", c.identifier, c.path, c.filePath)
}

func sameRef(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}

	if va.Type().Comparable() {
		return a == b
	}
	return false
}
