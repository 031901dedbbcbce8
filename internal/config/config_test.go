package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:  "defaults",
			setup: func() { viper.Reset() },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultName, cfg.Name)
				assert.Equal(t, DefaultRoot, cfg.Root)
				assert.Equal(t, ".", cfg.NamespaceSeparator)
				assert.Equal(t, ".go", cfg.ComponentExt)
				assert.Equal(t, "container", cfg.RegistrationsDir)
				assert.Equal(t, []string{"system/boot"}, cfg.BootableDirs)
				assert.Empty(t, cfg.ComponentDirs)
				assert.Equal(t, "info", cfg.Log.Level)
				assert.Equal(t, "text", cfg.Log.Format)
				assert.False(t, cfg.Tracing.Enabled)
				assert.Equal(t, "stdout", cfg.Tracing.Exporter)
				assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
			},
		},
		{
			name: "component dirs",
			setup: func() {
				viper.Reset()
				viper.Set("name", "billing")
				viper.Set("component_ext", "rb")
				viper.Set("component_dirs", []map[string]interface{}{
					{"path": "lib", "default_namespace": "my_app"},
					{"path": "app/models", "auto_register": false, "memoize": true, "loader": "describe"},
				})
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "billing", cfg.Name)
				assert.Equal(t, ".rb", cfg.ComponentExt)
				require.Len(t, cfg.ComponentDirs, 2)

				lib := cfg.ComponentDirs[0]
				assert.Equal(t, "lib", lib.Path)
				assert.Equal(t, "my_app", lib.DefaultNamespace)
				assert.True(t, lib.AutoRegisterEnabled())
				assert.False(t, lib.MemoizeEnabled())

				models := cfg.ComponentDirs[1]
				assert.False(t, models.AutoRegisterEnabled())
				assert.True(t, models.MemoizeEnabled())
				assert.Equal(t, "describe", models.Loader)
			},
		},
		{
			name: "custom separator",
			setup: func() {
				viper.Reset()
				viper.Set("namespace_separator", "::")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "::", cfg.NamespaceSeparator)
			},
		},
		{
			name: "word separator",
			setup: func() {
				viper.Reset()
				viper.Set("namespace_separator", "_")
			},
			expectError: true,
		},
		{
			name: "traversing component dir",
			setup: func() {
				viper.Reset()
				viper.Set("component_dirs", []map[string]interface{}{{"path": "../outside"}})
			},
			expectError: true,
		},
		{
			name: "duplicate component dir",
			setup: func() {
				viper.Reset()
				viper.Set("component_dirs", []map[string]interface{}{{"path": "lib"}, {"path": "./lib"}})
			},
			expectError: true,
		},
		{
			name: "empty component dir",
			setup: func() {
				viper.Reset()
				viper.Set("component_dirs", []map[string]interface{}{{"path": ""}})
			},
			expectError: true,
		},
		{
			name: "bad log level",
			setup: func() {
				viper.Reset()
				viper.Set("log.level", "loud")
			},
			expectError: true,
		},
		{
			name: "invalid viper config",
			setup: func() {
				viper.Reset()
				viper.Set("component_dirs", "lib")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			cfg, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".stowage.yml")
	content := `
name: shop
root: ./app
registrations_dir: wiring
component_dirs:
  - path: lib
    default_namespace: my_app
    memoize: true
log:
  level: debug
  format: json
tracing:
  enabled: true
  exporter: none
  sample_rate: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	viper.Reset()
	defer viper.Reset()
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Name)
	assert.Equal(t, filepath.Join("app", "wiring"), cfg.RegistrationsPath())
	require.Len(t, cfg.ComponentDirs, 1)
	assert.True(t, cfg.ComponentDirs[0].MemoizeEnabled())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRate)
}

func TestLoadWithDetails(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("namespace_separator", "x")
	viper.Set("component_dirs", []map[string]interface{}{
		{"path": "../outside"},
	})

	_, err := Load()
	require.Error(t, err)

	cfg, result, err := LoadWithDetails()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.False(t, result.Valid)

	fields := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "namespace_separator")
	assert.Contains(t, fields, "component_dirs[0].path")
}

// TestLoadWithEnvironment tests loading config with environment variables
func TestLoadWithEnvironment(t *testing.T) {
	t.Setenv("STOWAGE_NAME", "from-env")
	t.Setenv("STOWAGE_LOG_LEVEL", "warn")

	viper.Reset()
	defer viper.Reset()
	viper.SetEnvPrefix("STOWAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	require.NoError(t, viper.BindEnv("name"))
	require.NoError(t, viper.BindEnv("log.level"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestDefault(t *testing.T) {
	viper.Reset()
	cfg := Default()
	assert.Equal(t, DefaultName, cfg.Name)
	assert.NoError(t, validateConfig(cfg))
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"lib", false},
		{"./lib", false},
		{"app/models", false},
		{"lib/../lib", false},
		{"", true},
		{"..", true},
		{"../lib", true},
		{"lib/../../etc", true},
		{"/etc", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSeparator(t *testing.T) {
	for _, sep := range []string{".", "::", "/", "-"} {
		assert.NoError(t, validateSeparator(sep), sep)
	}
	for _, sep := range []string{"", "_", "a", ".x"} {
		assert.Error(t, validateSeparator(sep), sep)
	}
}

func TestValidateConfigWithDetails(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))

	yes := true
	no := false

	cfg := Default()
	cfg.Root = root
	cfg.ComponentDirs = []ComponentDirConfig{
		{Path: "lib"},
		{Path: "lib"},
		{Path: "missing", AutoRegister: &no, Memoize: &yes},
		{Path: "../escape"},
	}
	cfg.Log.Format = "xml"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "file"

	result := ValidateConfigWithDetails(cfg)
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors())
	assert.True(t, result.HasWarnings())

	fields := func(list []ValidationError) []string {
		var out []string
		for _, e := range list {
			out = append(out, e.Field)
		}
		return out
	}

	assert.ElementsMatch(t, []string{
		"component_dirs[1].path",
		"component_dirs[3].path",
		"tracing.file_path",
	}, fields(result.Errors))
	assert.ElementsMatch(t, []string{
		"registrations_dir",
		"component_dirs[2].path",
		"component_dirs[2].memoize",
		"log.format",
	}, fields(result.Warnings))

	out := result.String()
	assert.Contains(t, out, "Validation errors:")
	assert.Contains(t, out, "duplicate component directory")
}

func TestValidateConfigWithDetails_Clean(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "container"), 0o755))

	cfg := Default()
	cfg.Root = root
	cfg.ComponentDirs = []ComponentDirConfig{{Path: "lib", DefaultNamespace: "my_app"}}

	result := ValidateConfigWithDetails(cfg)
	assert.True(t, result.Valid)
	assert.False(t, result.HasWarnings(), result.String())
	assert.Empty(t, result.String())
}
