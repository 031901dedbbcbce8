package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/config"
	stowerrors "github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/loader"
)

func TestSettingsFromConfig(t *testing.T) {
	no := false
	yes := true

	cfg := config.Default()
	cfg.Name = "shop"
	cfg.NamespaceSeparator = "::"
	cfg.ComponentDirs = []config.ComponentDirConfig{
		{Path: "lib", DefaultNamespace: "my_app"},
		{Path: "app/models", AutoRegister: &no, Memoize: &yes, Loader: "describe"},
	}

	loaders := map[string]component.Instantiator{"describe": loader.Describe}
	settings, err := SettingsFromConfig(cfg, loaders)
	require.NoError(t, err)

	assert.Equal(t, "shop", settings.Name)
	assert.Equal(t, "::", settings.Separator)
	assert.Equal(t, ".go", settings.Ext)
	assert.Equal(t, "container", settings.RegistrationsDir)
	require.Len(t, settings.ComponentDirs, 2)

	lib := component.New("x", component.Options{})
	assert.True(t, settings.ComponentDirs[0].AutoRegister.Eval(lib))
	assert.False(t, settings.ComponentDirs[0].Memoize.Eval(lib))
	assert.Nil(t, settings.ComponentDirs[0].Loader)

	assert.False(t, settings.ComponentDirs[1].AutoRegister.Eval(lib))
	assert.True(t, settings.ComponentDirs[1].Memoize.Eval(lib))
	assert.NotNil(t, settings.ComponentDirs[1].Loader)

	c := New(settings)
	assert.Equal(t, "shop", c.Name())
	assert.NotEmpty(t, c.ID())
	assert.Len(t, c.Dirs(), 2)
}

func TestSettingsFromConfig_UnknownLoader(t *testing.T) {
	cfg := config.Default()
	cfg.ComponentDirs = []config.ComponentDirConfig{{Path: "lib", Loader: "missing"}}

	_, err := SettingsFromConfig(cfg, nil)
	var se *stowerrors.StowageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stowerrors.ErrCodeConfigInvalid, se.Code)
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.withDefaults()

	assert.Equal(t, config.DefaultName, s.Name)
	assert.Equal(t, ".", s.Separator)
	assert.Equal(t, ".go", s.Ext)
	assert.NotNil(t, s.Catalog)
	assert.Same(t, s.Catalog, s.Loader)
	assert.NotNil(t, s.Logger)
	assert.NotNil(t, s.Tracer)

	a, b := New(Settings{}), New(Settings{})
	assert.NotEqual(t, a.ID(), b.ID())
}
