package component

import (
	"context"
	"strings"
	"testing"

	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("users/repo", Options{})

	assert.Equal(t, "users.repo", c.Identifier())
	assert.Equal(t, "users/repo", c.Path())
	assert.Equal(t, ".", c.Separator())
	assert.Equal(t, "", c.FilePath())
	assert.False(t, c.FileExists())
	assert.False(t, c.Bootable())
	assert.Equal(t, "users", c.RootKey())
	assert.Equal(t, "Users::Repo", c.Constant())
}

func TestNewWithNamespace(t *testing.T) {
	c := NewWithFile("my_app.app_component", "/app/lib/my_app/app_component.go", Options{Namespace: "my_app"})

	assert.Equal(t, "app_component", c.Identifier())
	assert.Equal(t, "my_app/app_component", c.Path())
	assert.Equal(t, "my_app", c.Namespace())
	assert.True(t, c.FileExists())
	assert.Equal(t, "MyApp::AppComponent", c.Constant())
}

func TestPredicates(t *testing.T) {
	c := New("app_component", Options{
		AutoRegister: When(func(c Component) bool { return strings.HasPrefix(c.Identifier(), "app") }),
		Memoize:      Always(),
	})
	assert.True(t, c.AutoRegister())
	assert.True(t, c.Memoize())

	other := New("other", c.Options())
	assert.False(t, other.AutoRegister())

	zero := New("x", Options{})
	assert.False(t, zero.AutoRegister())
	assert.False(t, zero.Memoize())

	assert.True(t, Bool(true).Eval(zero))
	assert.False(t, Bool(false).Eval(zero))
	assert.False(t, When(nil).Eval(zero))
	assert.Equal(t, "always", Always().String())
	assert.Equal(t, "never", Never().String())
}

func TestPredicateEqual(t *testing.T) {
	fn := func(Component) bool { return true }

	assert.True(t, Always().Equal(Bool(true)))
	assert.True(t, Never().Equal(Predicate{}))
	assert.True(t, When(fn).Equal(When(fn)))
	assert.False(t, When(fn).Equal(Always()))
	assert.False(t, When(fn).Equal(When(func(Component) bool { return false })))
}

func TestInstance(t *testing.T) {
	var seen Component
	loader := InstantiatorFunc(func(ctx context.Context, r store.Resolver, c Component, args ...any) (any, error) {
		seen = c
		return append([]any{c.Identifier()}, args...), nil
	})

	c := New("users.repo", Options{Loader: loader})
	got, err := c.Instance(context.Background(), nil, 1, "two")
	require.NoError(t, err)
	assert.Equal(t, []any{"users.repo", 1, "two"}, got)
	assert.True(t, seen.Equal(c))
}

func TestInstanceWithoutLoader(t *testing.T) {
	_, err := New("users.repo", Options{}).Instance(context.Background(), nil)
	require.Error(t, err)

	var se *errors.StowageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrCodeNoLoader, se.Code)
	assert.Equal(t, "users.repo", se.Key)
}

func TestNamespaced(t *testing.T) {
	c := NewWithFile("repo", "/app/lib/repo.go", Options{Memoize: Always()})
	n := c.Namespaced("ext")

	assert.Equal(t, c.Identifier(), n.Identifier())
	assert.Equal(t, c.Path(), n.Path())
	assert.Equal(t, "ext", n.Namespace())
	assert.False(t, n.FileExists())
	assert.True(t, n.Memoize())

	assert.Equal(t, "", c.Namespace(), "original is untouched")
}

func TestEqual(t *testing.T) {
	loader := InstantiatorFunc(func(ctx context.Context, r store.Resolver, c Component, args ...any) (any, error) {
		return nil, nil
	})
	opts := Options{Loader: loader, AutoRegister: Always()}

	a := NewWithFile("users.repo", "/lib/users/repo.go", opts)
	b := NewWithFile("users/repo", "/lib/users/repo.go", opts)
	assert.True(t, a.Equal(b))

	assert.False(t, a.Equal(New("users.repo", opts)), "file path differs")
	assert.False(t, a.Equal(NewWithFile("users.repo", "/lib/users/repo.go", Options{AutoRegister: Always()})), "loader differs")
	assert.False(t, a.Equal(NewWithFile("users.repo", "/lib/users/repo.go", Options{Loader: loader, Separator: "/"})))
}

func TestString(t *testing.T) {
	assert.Equal(t, "a.b (a/b)", New("a.b", Options{}).String())
	assert.Equal(t, "a (a, /x/a.go)", NewWithFile("a", "/x/a.go", Options{}).String())
}
