// Package registry is the resolution engine. A Container maps keys to
// instances, loading unregistered keys on demand from its sources in a fixed
// order: staged providers, component directories, manual registration files
// and imported registries. Finalize runs every source exhaustively and
// freezes the container into a read-only Frozen view.
//
// Before finalization, concurrent resolutions of the same unregistered key
// load it once. Finalization excludes lazy loads, so a caller either sees the
// container active or fully finalized. After finalization reads take no
// locks.
package registry

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/stowage/internal/booter"
	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/componentdir"
	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/importer"
	"github.com/conneroisu/stowage/internal/logging"
	"github.com/conneroisu/stowage/internal/manual"
	"github.com/conneroisu/stowage/internal/store"
	"github.com/conneroisu/stowage/internal/tracing"
)

// Container is a registry in its active state.
type Container struct {
	id       string
	settings Settings
	logger   logging.Logger
	tracer   trace.Tracer

	items    *store.Store
	dirs     []*componentdir.Dir
	booter   *booter.Booter
	manual   *manual.Registrar
	importer *importer.Importer

	// gate is shared by lazy loads and held exclusively by Finalize.
	gate sync.RWMutex

	mutex    sync.Mutex
	inflight map[string]*loadCall

	frozen atomic.Pointer[Frozen]
}

// loadCall tracks one in-flight load so concurrent callers wait for it.
type loadCall struct {
	wg  sync.WaitGroup
	err error
}

var _ store.Resolver = (*Container)(nil)

// New creates an active container.
func New(settings Settings) *Container {
	settings = settings.withDefaults().Clone()

	id := uuid.NewString()
	c := &Container{
		id:       id,
		settings: settings,
		logger: settings.Logger.
			With("registry_id", id, "registry", settings.Name).
			WithComponent("registry"),
		tracer:   settings.Tracer,
		items:    store.New(),
		inflight: make(map[string]*loadCall),
	}

	globals := componentdir.Globals{
		Root:      settings.Root,
		Separator: settings.Separator,
		Ext:       settings.Ext,
		Inflector: settings.Inflector,
		Loader:    settings.Loader,
		Loaders:   settings.Loaders,
	}
	for _, cfg := range settings.ComponentDirs {
		c.dirs = append(c.dirs, componentdir.New(cfg, globals))
	}

	c.booter = booter.New(&sourceTarget{c: c, source: store.SourceStaged}, settings.Separator, c.logger)
	c.manual = manual.New(
		filepath.Join(settings.Root, filepath.FromSlash(settings.RegistrationsDir)),
		settings.Catalog,
		&sourceTarget{c: c, source: store.SourceManual},
		settings.Separator,
		c.logger,
	)
	c.importer = importer.New(c.items, settings.Separator, c.logger)

	return c
}

// ID is the container's unique instance id.
func (c *Container) ID() string { return c.id }

// Name is the configured container name.
func (c *Container) Name() string { return c.settings.Name }

// Settings returns a copy of the container's settings.
func (c *Container) Settings() Settings { return c.settings.Clone() }

// Dirs returns the configured component directories in search order.
func (c *Container) Dirs() []*componentdir.Dir {
	return append([]*componentdir.Dir(nil), c.dirs...)
}

// RegisterOption configures a direct registration.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	memoize bool
}

// Memoize caches the factory's first successful result.
func Memoize() RegisterOption {
	return func(o *registerOptions) { o.memoize = true }
}

// Register adds a factory under key.
func (c *Container) Register(key string, factory store.Factory, opts ...RegisterOption) error {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return c.add(key, store.NewFactory(c, factory, o.memoize, store.SourceDirect))
}

// RegisterInstance adds an already constructed value under key.
func (c *Container) RegisterInstance(key string, value any) error {
	return c.add(key, store.NewInstance(value, store.SourceDirect))
}

func (c *Container) add(key string, item *store.Item) error {
	if c.Finalized() {
		return errors.NewFinalizedError("register " + key).WithKey(key)
	}
	return c.items.Add(key, item)
}

// Namespace registers a batch of keys under name.
func (c *Container) Namespace(name string, fn func(ns *Namespace) error) error {
	return fn(&Namespace{c: c, prefix: name + c.settings.Separator})
}

// Namespace is a registration scope that prefixes every key.
type Namespace struct {
	c      *Container
	prefix string
}

// Register adds a factory under the prefixed key.
func (n *Namespace) Register(key string, factory store.Factory, opts ...RegisterOption) error {
	return n.c.Register(n.prefix+key, factory, opts...)
}

// RegisterInstance adds a value under the prefixed key.
func (n *Namespace) RegisterInstance(key string, value any) error {
	return n.c.RegisterInstance(n.prefix+key, value)
}

// Namespace opens a nested scope.
func (n *Namespace) Namespace(name string, fn func(ns *Namespace) error) error {
	return fn(&Namespace{c: n.c, prefix: n.prefix + name + n.c.settings.Separator})
}

// Import binds external registries under local namespaces. target may be a
// map[string]*Container, a map[string]importer.Source or an
// importer.Namespace. Rebinding a namespace replaces it.
func (c *Container) Import(target any) error {
	if c.Finalized() {
		return errors.NewFinalizedError("import")
	}

	var bindings map[string]importer.Source
	switch t := target.(type) {
	case map[string]*Container:
		bindings = make(map[string]importer.Source, len(t))
		for name, other := range t {
			if name == "" || other == nil {
				return errors.NewInvalidImportTargetError(target)
			}
			bindings[name] = other.Source()
		}
	default:
		var err error
		if bindings, err = importer.Bindings(target); err != nil {
			return err
		}
	}

	c.importer.Register(bindings)
	return nil
}

// Source exposes the container as an import source for another registry.
func (c *Container) Source() importer.Source {
	return &containerSource{c: c}
}

// Boot declares a staged provider.
func (c *Container) Boot(p booter.Provider) error {
	if c.Finalized() {
		return errors.NewFinalizedError("boot " + p.Name)
	}
	return c.booter.Register(p)
}

// Init runs a provider's init hook.
func (c *Container) Init(ctx context.Context, name string) error {
	ctx, release, frozen := c.enter(ctx)
	defer release()
	if frozen != nil {
		return nil
	}
	return c.booter.Init(ctx, name)
}

// Start starts a provider and the providers it uses.
func (c *Container) Start(ctx context.Context, name string) error {
	ctx, release, frozen := c.enter(ctx)
	defer release()
	if frozen != nil {
		return nil
	}
	return c.booter.Start(ctx, name)
}

// Stop stops a started provider.
func (c *Container) Stop(ctx context.Context, name string) error {
	return c.booter.Stop(ctx, name)
}

// Shutdown stops every started provider in reverse start order.
func (c *Container) Shutdown(ctx context.Context) error {
	return c.booter.Shutdown(ctx)
}

// Providers lists declared provider names with their states.
func (c *Container) Providers() map[string]booter.State {
	names := c.booter.Names()
	out := make(map[string]booter.State, len(names))
	for _, name := range names {
		state, _ := c.booter.State(name)
		out[name] = state
	}
	return out
}

// LoadRegistrations executes the manual registration file for name.
func (c *Container) LoadRegistrations(ctx context.Context, name string) error {
	ctx, release, frozen := c.enter(ctx)
	defer release()
	if frozen != nil {
		return errors.NewFinalizedError("load registrations " + name)
	}
	return c.manual.Load(ctx, name)
}

// Resolve returns the instance for key, loading it first if needed.
// Construction errors are returned unchanged.
//
// A component is registered under its identifier, which has the
// directory's default namespace stripped. Resolving "my_app.users" finds
// my_app/users and registers it as "users", then reports "my_app.users"
// as not registered.
func (c *Container) Resolve(ctx context.Context, key string) (any, error) {
	if f := c.frozen.Load(); f != nil {
		return f.Resolve(ctx, key)
	}

	if circular, chain := inChain(ctx, c.id, key); circular {
		return nil, errors.NewCircularDependencyError(key, chain)
	}
	ctx = withFrame(ctx, c.id, key)

	ctx, span := c.tracer.Start(ctx, tracing.SpanResolve, trace.WithAttributes(
		attribute.String(tracing.AttrRegistryID, c.id),
		attribute.String(tracing.AttrKey, key),
	))
	defer span.End()

	item, err := c.lookup(ctx, key)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(tracing.AttrSource, string(item.Source())))

	value, err := item.Value(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return value, nil
}

// Key reports whether key can be resolved. On an active container this
// resolves the key; any error counts as absent.
func (c *Container) Key(ctx context.Context, key string) bool {
	if f := c.frozen.Load(); f != nil {
		return f.Key(ctx, key)
	}
	if c.items.Has(key) {
		return true
	}
	_, err := c.Resolve(ctx, key)
	return err == nil
}

// Registered reports whether key is registered, without loading.
func (c *Container) Registered(key string) bool {
	if f := c.frozen.Load(); f != nil {
		return f.Registered(key)
	}
	return c.items.Has(key)
}

// Item returns the registered item for key, without loading.
func (c *Container) Item(key string) (*store.Item, bool) {
	if f := c.frozen.Load(); f != nil {
		return f.Item(key)
	}
	return c.items.Get(key)
}

// Keys lists registered keys in lexicographic order.
func (c *Container) Keys() []string {
	if f := c.frozen.Load(); f != nil {
		return f.Keys()
	}
	return c.items.Keys()
}

// Snapshot returns a copy of the current mapping.
func (c *Container) Snapshot() map[string]*store.Item {
	if f := c.frozen.Load(); f != nil {
		return f.Snapshot()
	}
	return c.items.Snapshot()
}

// Watch returns a channel of registration events.
func (c *Container) Watch() <-chan store.Event { return c.items.Watch() }

// Unwatch stops and closes a channel returned by Watch.
func (c *Container) Unwatch(ch <-chan store.Event) { c.items.UnWatch(ch) }

// Finalized reports whether Finalize has completed.
func (c *Container) Finalized() bool { return c.frozen.Load() != nil }

// Frozen returns the read-only view, or nil while the container is active.
func (c *Container) Frozen() *Frozen { return c.frozen.Load() }

// enter takes the gate for a lazy operation unless ctx already holds it.
// When the container finalized while waiting, the frozen view is returned
// and the caller must not mutate.
func (c *Container) enter(ctx context.Context) (context.Context, func(), *Frozen) {
	if holds(ctx, c.id) {
		return ctx, func() {}, c.frozen.Load()
	}

	c.gate.RLock()
	if f := c.frozen.Load(); f != nil {
		c.gate.RUnlock()
		return ctx, func() {}, f
	}
	return withHeld(ctx, c.id), c.gate.RUnlock, nil
}

func (c *Container) lookup(ctx context.Context, key string) (*store.Item, error) {
	ctx, release, frozen := c.enter(ctx)
	defer release()

	if frozen != nil {
		if item, ok := frozen.Item(key); ok {
			return item, nil
		}
		return nil, errors.NewNotRegisteredError(key)
	}

	if item, ok := c.items.Get(key); ok {
		return item, nil
	}

	if err := c.loadOnce(ctx, key); err != nil {
		return nil, err
	}

	if item, ok := c.items.Get(key); ok {
		return item, nil
	}
	return nil, errors.NewNotRegisteredError(key)
}

// loadOnce runs load for key unless another caller is already loading it,
// in which case it waits for that load and shares its result.
func (c *Container) loadOnce(ctx context.Context, key string) error {
	c.mutex.Lock()
	if call, loading := c.inflight[key]; loading {
		c.mutex.Unlock()
		call.wg.Wait()
		return call.err
	}

	call := &loadCall{}
	call.wg.Add(1)
	c.inflight[key] = call
	c.mutex.Unlock()

	call.err = c.load(ctx, key)

	c.mutex.Lock()
	delete(c.inflight, key)
	c.mutex.Unlock()
	call.wg.Done()

	return call.err
}

// load tries each source for key. Finding nothing is not an error.
func (c *Container) load(ctx context.Context, key string) error {
	ctx, span := c.tracer.Start(ctx, tracing.SpanLoad, trace.WithAttributes(
		attribute.String(tracing.AttrRegistryID, c.id),
		attribute.String(tracing.AttrKey, key),
	))
	defer span.End()

	source, err := c.loadFromSources(ctx, key)
	if err != nil {
		tracing.RecordError(span, err)
		c.logger.Error(ctx, err, "Load failed", "key", key)
		return err
	}

	span.SetAttributes(attribute.String(tracing.AttrSource, source))
	c.logger.Debug(ctx, "Load attempted", "key", key, "source", source)
	return nil
}

func (c *Container) loadFromSources(ctx context.Context, key string) (string, error) {
	if c.items.Has(key) {
		return "registered", nil
	}

	if _, ok := c.booter.FindComponent(key); ok {
		return string(store.SourceStaged), c.booter.Start(ctx, key)
	}

	comp, err := c.component(key)
	if err != nil {
		return "", err
	}

	if err := c.booter.BootDependency(ctx, comp); err != nil {
		return "", err
	}
	if c.items.Has(key) {
		return string(store.SourceStaged), nil
	}

	switch {
	case comp.FileExists():
		if comp.AutoRegister() {
			return string(store.SourceLocal), c.registerComponent(comp)
		}
		return "none", nil
	case c.manual.FileExists(comp):
		return string(store.SourceManual), c.manual.Call(ctx, comp)
	case c.importer.Key(comp.RootKey()):
		_, err := c.importer.Load(ctx, key)
		return string(store.SourceImport), err
	}

	return "none", nil
}

// component finds the first directory holding key. When none does, a
// component without a file is returned so later checks fail softly.
func (c *Container) component(key string) (component.Component, error) {
	for _, dir := range c.dirs {
		comp, found, err := dir.ComponentForIdentifier(key)
		if err != nil {
			return component.Component{}, err
		}
		if found {
			return comp, nil
		}
	}

	return component.New(key, component.Options{
		Separator: c.settings.Separator,
		Inflector: c.settings.Inflector,
		Loader:    c.settings.Loader,
	}), nil
}

// registerComponent registers comp under its identifier. A component that
// is already registered is left alone.
func (c *Container) registerComponent(comp component.Component) error {
	item := store.NewFactory(c, func(ctx context.Context, r store.Resolver) (any, error) {
		return comp.Instance(ctx, r)
	}, comp.Memoize(), store.SourceLocal).WithFile(comp.FilePath())

	if err := c.items.Add(comp.Identifier(), item); err != nil && !errors.Is(err, errors.ErrDuplicateKey) {
		return err
	}
	return nil
}

// sourceTarget is the registration surface handed to providers and manual
// registration files.
type sourceTarget struct {
	c      *Container
	source store.Source
}

func (t *sourceTarget) Resolve(ctx context.Context, key string) (any, error) {
	return t.c.Resolve(ctx, key)
}

func (t *sourceTarget) Key(ctx context.Context, key string) bool {
	return t.c.Key(ctx, key)
}

func (t *sourceTarget) Registered(key string) bool {
	return t.c.items.Has(key)
}

func (t *sourceTarget) RegisterInstance(key string, value any) error {
	return t.c.add(key, store.NewInstance(value, t.source))
}

func (t *sourceTarget) RegisterFactory(key string, factory store.Factory, memoize bool) error {
	return t.c.add(key, store.NewFactory(t.c, factory, memoize, t.source))
}

// containerSource adapts a container to importer.Source.
type containerSource struct {
	c *Container
}

func (s *containerSource) Load(ctx context.Context, key string) error {
	_, err := s.c.lookup(ctx, key)
	if errors.IsNotRegistered(err) {
		return nil
	}
	return err
}

func (s *containerSource) Finalize(ctx context.Context) error {
	_, err := s.c.Finalize(ctx)
	return err
}

func (s *containerSource) Snapshot() map[string]*store.Item {
	return s.c.Snapshot()
}
