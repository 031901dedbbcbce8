package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// FuzzLoadConfig tests configuration loading with various malformed inputs
func FuzzLoadConfig(f *testing.F) {
	// Seed with valid and invalid YAML configurations
	f.Add(`name: app
component_dirs:
  - path: lib
    default_namespace: my_app`)

	f.Add(`namespace_separator: "_"`)
	f.Add(`component_dirs: lib`)
	f.Add(`component_dirs:
  - path: ../escape`)
	f.Add(`malformed: yaml: content`)
	f.Add(``)

	f.Fuzz(func(t *testing.T, yamlContent string) {
		if len(yamlContent) > 50000 {
			t.Skip("Config content too large")
		}

		// Reset viper to clean state
		viper.Reset()
		defer viper.Reset()

		configFile := filepath.Join(t.TempDir(), ".stowage.yml")
		if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
			t.Skip("Could not write config file")
		}

		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return
		}

		cfg, err := Load()
		if err != nil {
			return
		}

		// Whatever loads must pass validation again
		if err := validateConfig(cfg); err != nil {
			t.Errorf("loaded config fails validation: %v", err)
		}
		if cfg.NamespaceSeparator == "" || cfg.Name == "" {
			t.Errorf("defaults not applied: %+v", cfg)
		}
	})
}

// FuzzValidatePath tests path validation does not accept escaping paths
func FuzzValidatePath(f *testing.F) {
	for _, seed := range []string{"lib", "../lib", "/abs", "a/../../b", "", "."} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, path string) {
		if err := validatePath(path); err != nil {
			return
		}
		clean := filepath.Clean(path)
		if filepath.IsAbs(clean) || clean == ".." {
			t.Errorf("validatePath accepted %q", path)
		}
	})
}
