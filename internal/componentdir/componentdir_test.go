package componentdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newLibDir(t *testing.T) (*Dir, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "lib/my_app/app_component.go", "package my_app\n")
	writeFile(t, root, "lib/external/external_component.go", "package external\n")

	dir := New(Config{
		Path:             "lib",
		DefaultNamespace: "my_app",
		AutoRegister:     component.Always(),
		Memoize:          component.Always(),
	}, Globals{Root: root})
	return dir, root
}

func TestComponentForIdentifier(t *testing.T) {
	dir, root := newLibDir(t)

	tests := []struct {
		name      string
		id        string
		found     bool
		wantID    string
		namespace string
		file      string
		constant  string
	}{
		{
			name:      "bare identifier under default namespace",
			id:        "app_component",
			found:     true,
			wantID:    "app_component",
			namespace: "my_app",
			file:      "lib/my_app/app_component.go",
			constant:  "MyApp::AppComponent",
		},
		{
			name:      "identifier carrying the namespace",
			id:        "my_app.app_component",
			found:     true,
			wantID:    "app_component",
			namespace: "my_app",
			file:      "lib/my_app/app_component.go",
			constant:  "MyApp::AppComponent",
		},
		{
			name:     "falls back to the bare path",
			id:       "external.external_component",
			found:    true,
			wantID:   "external.external_component",
			file:     "lib/external/external_component.go",
			constant: "External::ExternalComponent",
		},
		{
			name: "missing file",
			id:   "nonexistent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, found, err := dir.ComponentForIdentifier(tt.id)
			require.NoError(t, err)
			require.Equal(t, tt.found, found)
			if !found {
				return
			}

			assert.Equal(t, tt.wantID, c.Identifier())
			assert.Equal(t, tt.namespace, c.Namespace())
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.file)), c.FilePath())
			assert.Equal(t, tt.constant, c.Constant())
			assert.True(t, c.AutoRegister())
		})
	}
}

func TestComponentForPath(t *testing.T) {
	dir, root := newLibDir(t)

	c, err := dir.ComponentForPath(filepath.Join(root, "lib", "my_app", "app_component.go"))
	require.NoError(t, err)
	assert.Equal(t, "app_component", c.Identifier())
	assert.Equal(t, "my_app", c.Namespace())
	assert.Equal(t, "my_app/app_component", c.Path())

	byID, found, err := dir.ComponentForIdentifier("app_component")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, c.Equal(byID), "both directions build the same component")

	c, err = dir.ComponentForPath(filepath.Join(root, "lib", "external", "external_component.go"))
	require.NoError(t, err)
	assert.Equal(t, "external.external_component", c.Identifier())
	assert.Equal(t, "", c.Namespace())

	_, err = dir.ComponentForPath(filepath.Join(root, "elsewhere.go"))
	var se *errors.StowageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrCodeOutsideDir, se.Code)
}

func TestIdentifierForPath(t *testing.T) {
	dir, root := newLibDir(t)

	id, err := dir.IdentifierForPath(filepath.Join(root, "lib", "my_app", "removed_component.go"))
	require.NoError(t, err)
	assert.Equal(t, "my_app.removed_component", id)

	_, err = dir.IdentifierForPath(filepath.Join(root, "lib", "..", "other.go"))
	assert.Error(t, err)
}

func TestComponentOptionsPrecedence(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "lib/plain.go", "package lib\n")
	writeFile(t, root, "lib/quiet.go", "// auto_register: false\n// memoize: false\npackage lib\n")
	writeFile(t, root, "lib/special.go", "// loader: special\npackage lib\n")
	writeFile(t, root, "lib/broken.go", "// loader: nowhere\npackage lib\n")

	defaultLoader := component.InstantiatorFunc(func(ctx context.Context, r store.Resolver, c component.Component, args ...any) (any, error) {
		return "default", nil
	})
	special := component.InstantiatorFunc(func(ctx context.Context, r store.Resolver, c component.Component, args ...any) (any, error) {
		return "special", nil
	})

	dir := New(Config{
		Path:         "lib",
		AutoRegister: component.Always(),
		Memoize:      component.Always(),
	}, Globals{
		Root:    root,
		Loader:  defaultLoader,
		Loaders: map[string]component.Instantiator{"special": special},
	})

	plain, found, err := dir.ComponentForIdentifier("plain")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, plain.AutoRegister())
	assert.True(t, plain.Memoize())
	v, err := plain.Instance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "default", v)

	quiet, _, err := dir.ComponentForIdentifier("quiet")
	require.NoError(t, err)
	assert.False(t, quiet.AutoRegister())
	assert.False(t, quiet.Memoize())

	sp, _, err := dir.ComponentForIdentifier("special")
	require.NoError(t, err)
	v, err = sp.Instance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "special", v)

	_, found, err = dir.ComponentForIdentifier("broken")
	assert.False(t, found)
	assert.ErrorIs(t, err, &errors.StowageError{Type: errors.ErrorTypeValidation, Code: errors.ErrCodeInvalidDirective})
}

func TestDirLoaderOverride(t *testing.T) {
	named := func(name string) component.Instantiator {
		return component.InstantiatorFunc(func(ctx context.Context, r store.Resolver, c component.Component, args ...any) (any, error) {
			return name, nil
		})
	}

	assert.Nil(t, New(Config{Path: "lib"}, Globals{}).Loader())

	opts, err := New(Config{Path: "lib", Loader: named("local")}, Globals{Loader: named("global")}).ComponentOptions("", "")
	require.NoError(t, err)
	v, err := component.New("x", opts).Instance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "local", v)

	opts, err = New(Config{Path: "lib"}, Globals{Loader: named("global")}).ComponentOptions("", "")
	require.NoError(t, err)
	v, err = component.New("x", opts).Instance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "global", v)
}

func TestWalk(t *testing.T) {
	dir, root := newLibDir(t)
	writeFile(t, root, "lib/notes.txt", "ignored")

	files, err := dir.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "lib", "external", "external_component.go"),
		filepath.Join(root, "lib", "my_app", "app_component.go"),
	}, files)

	components, err := dir.Components()
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, "external.external_component", components[0].Identifier())
	assert.Equal(t, "app_component", components[1].Identifier())

	missing := New(Config{Path: "nope"}, Globals{Root: root})
	files, err = missing.Walk()
	require.NoError(t, err)
	assert.Empty(t, files)
}
