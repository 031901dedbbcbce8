// Package config provides configuration management for stowage containers
// using Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the STOWAGE_ prefix and validation. It describes the container root,
// the ordered component directories and their registration policies, the
// manual registrations directory, logging and tracing.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/conneroisu/stowage/internal/tracing"
)

// Defaults applied by Load when a value is not configured.
const (
	DefaultName             = "app"
	DefaultRoot             = "."
	DefaultSeparator        = "."
	DefaultComponentExt     = ".go"
	DefaultRegistrationsDir = "container"
	DefaultBootableDir      = "system/boot"
)

type Config struct {
	Name               string               `mapstructure:"name" yaml:"name"`
	Root               string               `mapstructure:"root" yaml:"root"`
	NamespaceSeparator string               `mapstructure:"namespace_separator" yaml:"namespace_separator"`
	ComponentExt       string               `mapstructure:"component_ext" yaml:"component_ext"`
	RegistrationsDir   string               `mapstructure:"registrations_dir" yaml:"registrations_dir"`
	BootableDirs       []string             `mapstructure:"bootable_dirs" yaml:"bootable_dirs"`
	ComponentDirs      []ComponentDirConfig `mapstructure:"component_dirs" yaml:"component_dirs"`
	Log                LogConfig            `mapstructure:"log" yaml:"log"`
	Tracing            tracing.Config       `mapstructure:"tracing" yaml:"tracing"`
}

// ComponentDirConfig configures one component directory. AutoRegister and
// Memoize are pointers so an omitted value can default differently from an
// explicit false.
type ComponentDirConfig struct {
	Path             string `mapstructure:"path" yaml:"path"`
	DefaultNamespace string `mapstructure:"default_namespace" yaml:"default_namespace"`
	AutoRegister     *bool  `mapstructure:"auto_register" yaml:"auto_register"`
	Memoize          *bool  `mapstructure:"memoize" yaml:"memoize"`
	Loader           string `mapstructure:"loader" yaml:"loader"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AutoRegisterEnabled reports the effective auto-register setting.
func (c ComponentDirConfig) AutoRegisterEnabled() bool {
	return c.AutoRegister == nil || *c.AutoRegister
}

// MemoizeEnabled reports the effective memoize setting.
func (c ComponentDirConfig) MemoizeEnabled() bool {
	return c.Memoize != nil && *c.Memoize
}

// RegistrationsPath is the registrations directory joined to the root.
func (c *Config) RegistrationsPath() string {
	return filepath.Join(c.Root, filepath.FromSlash(c.RegistrationsDir))
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadWithDetails unmarshals and defaults the configuration like Load, but
// reports every problem in a ValidationResult instead of failing on the
// first. The error is only set when viper cannot decode the values.
func LoadWithDetails() (*Config, *ValidationResult, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, nil, err
	}

	applyDefaults(&config)
	return &config, ValidateConfigWithDetails(&config), nil
}

// Default returns a configuration with every default applied and no
// component directories.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *Config) {
	if config.Name == "" {
		config.Name = DefaultName
	}
	if config.Root == "" {
		config.Root = DefaultRoot
	}
	if config.NamespaceSeparator == "" {
		config.NamespaceSeparator = DefaultSeparator
	}
	if config.ComponentExt == "" {
		config.ComponentExt = DefaultComponentExt
	}
	if !strings.HasPrefix(config.ComponentExt, ".") {
		config.ComponentExt = "." + config.ComponentExt
	}
	if config.RegistrationsDir == "" {
		config.RegistrationsDir = DefaultRegistrationsDir
	}

	// Handle bootable_dirs set via viper (workaround for viper slice handling)
	if viper.IsSet("bootable_dirs") && len(config.BootableDirs) == 0 {
		config.BootableDirs = viper.GetStringSlice("bootable_dirs")
	}
	if !viper.IsSet("bootable_dirs") && len(config.BootableDirs) == 0 {
		config.BootableDirs = []string{DefaultBootableDir}
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	defaults := tracing.DefaultConfig()
	if config.Tracing.Exporter == "" {
		config.Tracing.Exporter = defaults.Exporter
	}
	if !viper.IsSet("tracing.sample_rate") && config.Tracing.SampleRate == 0 {
		config.Tracing.SampleRate = defaults.SampleRate
	}
	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = defaults.ServiceName
	}
}

var wordChars = regexp.MustCompile(`\w`)

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validatePath(config.RegistrationsDir); err != nil {
		return fmt.Errorf("registrations_dir: %w", err)
	}

	if err := validateSeparator(config.NamespaceSeparator); err != nil {
		return fmt.Errorf("namespace_separator: %w", err)
	}

	for _, dir := range config.BootableDirs {
		if err := validatePath(dir); err != nil {
			return fmt.Errorf("invalid bootable dir '%s': %w", dir, err)
		}
	}

	if err := validateComponentDirs(config.ComponentDirs); err != nil {
		return fmt.Errorf("component_dirs: %w", err)
	}

	if _, err := parseLogLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}

// validateSeparator rejects separators that would be tokenized away.
func validateSeparator(sep string) error {
	if sep == "" {
		return fmt.Errorf("separator cannot be empty")
	}
	if wordChars.MatchString(sep) {
		return fmt.Errorf("separator %q contains word characters", sep)
	}
	return nil
}

func validateComponentDirs(dirs []ComponentDirConfig) error {
	seen := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		if err := validatePath(dir.Path); err != nil {
			return fmt.Errorf("invalid path '%s': %w", dir.Path, err)
		}

		clean := filepath.Clean(dir.Path)
		if seen[clean] {
			return fmt.Errorf("duplicate component dir '%s'", dir.Path)
		}
		seen[clean] = true

		if dir.DefaultNamespace != "" && strings.ContainsAny(dir.DefaultNamespace, " \t\n") {
			return fmt.Errorf("default_namespace '%s' contains whitespace", dir.DefaultNamespace)
		}
	}
	return nil
}

// validatePath validates a root-relative directory path
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	// Clean the path
	cleanPath := filepath.Clean(path)

	// Reject path traversal attempts
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	// Directories are resolved against the root
	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path should be relative: %s", path)
	}

	return nil
}

func parseLogLevel(level string) (string, error) {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return strings.ToLower(level), nil
	default:
		return "", fmt.Errorf("unknown log level '%s'", level)
	}
}
