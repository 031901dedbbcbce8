// Package booter runs staged components: providers whose construction is an
// explicit init/start/stop lifecycle rather than a single constructor call.
//
// Providers are declared up front. Starting one initializes it first and
// starts every provider it uses before that. Start is idempotent, and
// Shutdown stops started providers in reverse start order.
package booter

import (
	"context"
	"sort"
	"sync"

	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/identifier"
	"github.com/conneroisu/stowage/internal/logging"
	"github.com/conneroisu/stowage/internal/store"
)

// Target is the registry surface a lifecycle hook may use.
type Target interface {
	store.Resolver
	RegisterInstance(key string, value any) error
	RegisterFactory(key string, factory store.Factory, memoize bool) error
}

// Hook is one lifecycle stage of a provider.
type Hook func(ctx context.Context, target Target) error

// Provider declares a staged component.
type Provider struct {
	Name string
	// Namespace, when set, prefixes every key the hooks register.
	Namespace string
	// Use names providers that must be started before this one initializes.
	Use   []string
	Init  Hook
	Start Hook
	Stop  Hook
}

// State is a provider's lifecycle position.
type State int

const (
	StateRegistered State = iota
	StateInitialized
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type entry struct {
	provider Provider
	mu       sync.Mutex // held while a hook of this provider runs
	state    State
}

// Booter owns the declared providers of one registry.
type Booter struct {
	target    Target
	separator string
	logger    logging.Logger

	mutex     sync.RWMutex
	providers map[string]*entry
	order     []string
	started   []string
}

// New creates a booter whose hooks act on target.
func New(target Target, separator string, logger logging.Logger) *Booter {
	if separator == "" {
		separator = identifier.DefaultSeparator
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Booter{
		target:    target,
		separator: separator,
		logger:    logger.WithComponent("booter"),
		providers: make(map[string]*entry),
	}
}

// Register declares a provider. Declaring the same name twice fails and
// leaves the first declaration in place.
func (b *Booter) Register(p Provider) error {
	if p.Name == "" {
		return errors.NewValidationError(errors.ErrCodeLifecycle, "provider name is required")
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.providers[p.Name]; exists {
		return errors.NewDuplicateRegistrationError(p.Name)
	}

	p.Use = append([]string(nil), p.Use...)
	b.providers[p.Name] = &entry{provider: p}
	b.order = append(b.order, p.Name)
	return nil
}

// FindComponent returns the provider declared under name.
func (b *Booter) FindComponent(name string) (Provider, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	e, ok := b.providers[name]
	if !ok {
		return Provider{}, false
	}
	return e.provider, true
}

// Names lists declared providers in declaration order.
func (b *Booter) Names() []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return append([]string(nil), b.order...)
}

// State reports the lifecycle state of name.
func (b *Booter) State(name string) (State, bool) {
	e, ok := b.lookup(name)
	if !ok {
		return StateRegistered, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Init runs the provider's init hook once.
func (b *Booter) Init(ctx context.Context, name string) error {
	e, ok := b.lookup(name)
	if !ok {
		return errors.NewNotRegisteredError(name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return b.init(ctx, e)
}

// Start brings the provider and everything it uses to the started state.
// Starting a started provider is a no-op. A failing hook leaves the provider
// in whatever state it reached.
func (b *Booter) Start(ctx context.Context, name string) error {
	if err := b.checkCycle(name); err != nil {
		return err
	}
	return b.start(ctx, name)
}

func (b *Booter) start(ctx context.Context, name string) error {
	if chain := bootChain(ctx); contains(chain, name) {
		return errors.NewCircularDependencyError(name, chain)
	}

	e, ok := b.lookup(name)
	if !ok {
		return errors.NewNotRegisteredError(name)
	}

	ctx = withBooting(ctx, name)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateStarted || e.state == StateStopped {
		return nil
	}

	for _, dep := range e.provider.Use {
		if err := b.start(ctx, dep); err != nil {
			return err
		}
	}

	if err := b.init(ctx, e); err != nil {
		return err
	}

	if e.provider.Start != nil {
		if err := e.provider.Start(ctx, b.targetFor(e.provider)); err != nil {
			b.logger.Error(ctx, err, "Provider start failed", "provider", name)
			return err
		}
	}

	e.state = StateStarted

	b.mutex.Lock()
	b.started = append(b.started, name)
	b.mutex.Unlock()

	b.logger.Debug(ctx, "Provider started", "provider", name)
	return nil
}

func (b *Booter) init(ctx context.Context, e *entry) error {
	if e.state != StateRegistered {
		return nil
	}

	if e.provider.Init != nil {
		if err := e.provider.Init(ctx, b.targetFor(e.provider)); err != nil {
			b.logger.Error(ctx, err, "Provider init failed", "provider", e.provider.Name)
			return err
		}
	}

	e.state = StateInitialized
	return nil
}

// Stop runs the stop hook of a started provider.
func (b *Booter) Stop(ctx context.Context, name string) error {
	e, ok := b.lookup(name)
	if !ok {
		return errors.NewNotRegisteredError(name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateStarted {
		return nil
	}

	if e.provider.Stop != nil {
		if err := e.provider.Stop(ctx, b.targetFor(e.provider)); err != nil {
			return err
		}
	}
	e.state = StateStopped

	b.mutex.Lock()
	for i, started := range b.started {
		if started == name {
			b.started = append(b.started[:i], b.started[i+1:]...)
			break
		}
	}
	b.mutex.Unlock()

	return nil
}

// Shutdown stops every started provider in reverse start order. All
// providers are attempted; their errors are joined.
func (b *Booter) Shutdown(ctx context.Context) error {
	b.mutex.RLock()
	started := append([]string(nil), b.started...)
	b.mutex.RUnlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		if err := b.Stop(ctx, started[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Finalize starts every declared provider in declaration order.
func (b *Booter) Finalize(ctx context.Context) error {
	for _, name := range b.Names() {
		if err := b.Start(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// BootDependency starts the provider named by the component's root key, if
// one is declared, so that keys it registers are available to c.
func (b *Booter) BootDependency(ctx context.Context, c component.Component) error {
	name := c.RootKey()
	if _, ok := b.FindComponent(name); !ok {
		return nil
	}
	return b.Start(ctx, name)
}

func (b *Booter) lookup(name string) (*entry, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	e, ok := b.providers[name]
	return e, ok
}

// checkCycle rejects a Use graph that loops back on itself before any
// provider lock is taken.
func (b *Booter) checkCycle(name string) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	visiting := make(map[string]bool)
	done := make(map[string]bool)
	var path []string

	var visit func(string) error
	visit = func(n string) error {
		if done[n] {
			return nil
		}
		if visiting[n] {
			return errors.NewCircularDependencyError(n, path)
		}
		e, ok := b.providers[n]
		if !ok {
			return nil
		}

		visiting[n] = true
		path = append(path, n)
		deps := append([]string(nil), e.provider.Use...)
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		visiting[n] = false
		done[n] = true
		return nil
	}

	return visit(name)
}

func (b *Booter) targetFor(p Provider) Target {
	if p.Namespace == "" {
		return b.target
	}
	return &namespacedTarget{Target: b.target, prefix: p.Namespace + b.separator}
}

// namespacedTarget prefixes the keys a namespaced provider registers.
type namespacedTarget struct {
	Target
	prefix string
}

func (t *namespacedTarget) RegisterInstance(key string, value any) error {
	return t.Target.RegisterInstance(t.prefix+key, value)
}

func (t *namespacedTarget) RegisterFactory(key string, factory store.Factory, memoize bool) error {
	return t.Target.RegisterFactory(t.prefix+key, factory, memoize)
}

type bootChainKey struct{}

func bootChain(ctx context.Context) []string {
	chain, _ := ctx.Value(bootChainKey{}).([]string)
	return chain
}

func withBooting(ctx context.Context, name string) context.Context {
	chain := bootChain(ctx)
	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, bootChainKey{}, append(next, name))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
