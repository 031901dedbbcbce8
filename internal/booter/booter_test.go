package booter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/conneroisu/stowage/internal/component"
	stowerrors "github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTarget records registrations in a store.
type fakeTarget struct {
	items *store.Store
}

func newFakeTarget() *fakeTarget { return &fakeTarget{items: store.New()} }

func (f *fakeTarget) Resolve(ctx context.Context, key string) (any, error) {
	item, ok := f.items.Get(key)
	if !ok {
		return nil, stowerrors.NewNotRegisteredError(key)
	}
	return item.Value(ctx)
}

func (f *fakeTarget) Key(ctx context.Context, key string) bool { return f.items.Has(key) }

func (f *fakeTarget) RegisterInstance(key string, value any) error {
	return f.items.Add(key, store.NewInstance(value, store.SourceStaged))
}

func (f *fakeTarget) RegisterFactory(key string, factory store.Factory, memoize bool) error {
	return f.items.Add(key, store.NewFactory(f, factory, memoize, store.SourceStaged))
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) hook(name string) Hook {
	return func(ctx context.Context, t Target) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		return nil
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestRegisterDuplicate(t *testing.T) {
	b := New(newFakeTarget(), ".", nil)

	require.NoError(t, b.Register(Provider{Name: "db"}))
	err := b.Register(Provider{Name: "db", Use: []string{"other"}})
	require.ErrorIs(t, err, stowerrors.ErrDuplicateRegistration)

	p, ok := b.FindComponent("db")
	require.True(t, ok)
	assert.Empty(t, p.Use, "first declaration is kept")

	assert.Error(t, b.Register(Provider{}))
}

func TestStartOrder(t *testing.T) {
	rec := &recorder{}
	b := New(newFakeTarget(), ".", nil)

	require.NoError(t, b.Register(Provider{
		Name:  "persistence",
		Use:   []string{"settings"},
		Init:  rec.hook("persistence.init"),
		Start: rec.hook("persistence.start"),
	}))
	require.NoError(t, b.Register(Provider{
		Name:  "settings",
		Init:  rec.hook("settings.init"),
		Start: rec.hook("settings.start"),
	}))

	ctx := context.Background()
	require.NoError(t, b.Start(ctx, "persistence"))
	require.NoError(t, b.Start(ctx, "persistence"))

	assert.Equal(t, []string{
		"settings.init", "settings.start",
		"persistence.init", "persistence.start",
	}, rec.list())

	state, ok := b.State("persistence")
	require.True(t, ok)
	assert.Equal(t, StateStarted, state)
}

func TestInitIsIdempotent(t *testing.T) {
	rec := &recorder{}
	b := New(newFakeTarget(), ".", nil)
	require.NoError(t, b.Register(Provider{Name: "db", Init: rec.hook("init"), Start: rec.hook("start")}))

	ctx := context.Background()
	require.NoError(t, b.Init(ctx, "db"))
	require.NoError(t, b.Init(ctx, "db"))
	require.NoError(t, b.Start(ctx, "db"))

	assert.Equal(t, []string{"init", "start"}, rec.list())
	assert.ErrorIs(t, b.Init(ctx, "missing"), stowerrors.ErrNotRegistered)
}

func TestHooksRegisterIntoTarget(t *testing.T) {
	target := newFakeTarget()
	b := New(target, ".", nil)

	require.NoError(t, b.Register(Provider{
		Name:      "persistence",
		Namespace: "persistence",
		Start: func(ctx context.Context, t Target) error {
			return t.RegisterInstance("db", "connection")
		},
	}))
	require.NoError(t, b.Register(Provider{
		Name: "logger",
		Start: func(ctx context.Context, t Target) error {
			return t.RegisterFactory("logger", func(ctx context.Context, r store.Resolver) (any, error) {
				return "log", nil
			}, true)
		},
	}))

	ctx := context.Background()
	require.NoError(t, b.Finalize(ctx))

	v, err := target.Resolve(ctx, "persistence.db")
	require.NoError(t, err)
	assert.Equal(t, "connection", v)
	assert.True(t, target.Key(ctx, "logger"))
}

func TestStartFailureIsNotRolledBack(t *testing.T) {
	boom := errors.New("boom")
	b := New(newFakeTarget(), ".", nil)
	require.NoError(t, b.Register(Provider{
		Name:  "db",
		Init:  func(ctx context.Context, t Target) error { return nil },
		Start: func(ctx context.Context, t Target) error { return boom },
	}))

	err := b.Start(context.Background(), "db")
	assert.Same(t, boom, err)

	state, _ := b.State("db")
	assert.Equal(t, StateInitialized, state)
}

func TestStartDetectsCycles(t *testing.T) {
	b := New(newFakeTarget(), ".", nil)
	require.NoError(t, b.Register(Provider{Name: "a", Use: []string{"b"}}))
	require.NoError(t, b.Register(Provider{Name: "b", Use: []string{"a"}}))

	err := b.Start(context.Background(), "a")
	assert.ErrorIs(t, err, stowerrors.ErrCircularDependency)
}

func TestStartUnknownDependency(t *testing.T) {
	b := New(newFakeTarget(), ".", nil)
	require.NoError(t, b.Register(Provider{Name: "a", Use: []string{"ghost"}}))

	err := b.Start(context.Background(), "a")
	assert.ErrorIs(t, err, stowerrors.ErrNotRegistered)
}

func TestShutdownReverseOrder(t *testing.T) {
	rec := &recorder{}
	b := New(newFakeTarget(), ".", nil)
	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, b.Register(Provider{Name: name, Stop: rec.hook(name)}))
	}

	ctx := context.Background()
	require.NoError(t, b.Finalize(ctx))
	require.NoError(t, b.Shutdown(ctx))

	assert.Equal(t, []string{"third", "second", "first"}, rec.list())

	state, _ := b.State("first")
	assert.Equal(t, StateStopped, state)

	// Stopped providers are not restarted by a later finalize.
	require.NoError(t, b.Finalize(ctx))
	state, _ = b.State("first")
	assert.Equal(t, StateStopped, state)
}

func TestBootDependency(t *testing.T) {
	rec := &recorder{}
	b := New(newFakeTarget(), ".", nil)
	require.NoError(t, b.Register(Provider{Name: "persistence", Start: rec.hook("persistence")}))

	ctx := context.Background()
	require.NoError(t, b.BootDependency(ctx, component.New("persistence.db", component.Options{})))
	require.NoError(t, b.BootDependency(ctx, component.New("users.repo", component.Options{})))

	assert.Equal(t, []string{"persistence"}, rec.list())
}

func TestConcurrentStartRunsHooksOnce(t *testing.T) {
	rec := &recorder{}
	b := New(newFakeTarget(), ".", nil)
	require.NoError(t, b.Register(Provider{Name: "db", Start: rec.hook("start")}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Start(context.Background(), "db"))
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"start"}, rec.list())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "registered", StateRegistered.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(9).String())
}
