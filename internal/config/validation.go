package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string      `json:"field"                 yaml:"field"`
	Value       interface{} `json:"value,omitempty"       yaml:"value,omitempty"`
	Message     string      `json:"message"               yaml:"message"`
	Suggestions []string    `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool              `json:"valid"    yaml:"valid"`
	Errors   []ValidationError `json:"errors"   yaml:"errors"`
	Warnings []ValidationError `json:"warnings" yaml:"warnings"`
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// ValidateConfigWithDetails performs validation with detailed feedback.
// Unlike Load it also inspects the filesystem and reports directories that
// do not exist as warnings.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateSeparatorDetails(config, result)
	validateRegistrationsDetails(config, result)
	validateComponentDirsDetails(config, result)
	validateLogDetails(&config.Log, result)
	validateTracingDetails(config, result)

	// Set overall validity
	result.Valid = !result.HasErrors()

	return result
}

func validateSeparatorDetails(config *Config, result *ValidationResult) {
	if err := validateSeparator(config.NamespaceSeparator); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "namespace_separator",
			Value:   config.NamespaceSeparator,
			Message: err.Error(),
			Suggestions: []string{
				"Use '.' (the default) to join key segments",
				"Separators must consist of punctuation only",
			},
		})
	}
}

func validateRegistrationsDetails(config *Config, result *ValidationResult) {
	if err := validatePath(config.RegistrationsDir); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "registrations_dir",
			Value:   config.RegistrationsDir,
			Message: err.Error(),
			Suggestions: []string{
				"Use a path relative to root, for example 'container'",
			},
		})
		return
	}

	if !dirExists(config.RegistrationsPath()) {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "registrations_dir",
			Value:   config.RegistrationsDir,
			Message: "registrations directory does not exist",
			Suggestions: []string{
				"Create the directory to add manual registration files",
				"A missing directory simply means no manual registrations",
			},
		})
	}
}

func validateComponentDirsDetails(config *Config, result *ValidationResult) {
	if len(config.ComponentDirs) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "component_dirs",
			Value:   nil,
			Message: "no component directories configured",
			Suggestions: []string{
				"Add at least one entry such as '- path: lib'",
			},
		})
		return
	}

	seen := make(map[string]bool)
	for i, dir := range config.ComponentDirs {
		field := fmt.Sprintf("component_dirs[%d].path", i)

		if err := validatePath(dir.Path); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Value:   dir.Path,
				Message: err.Error(),
				Suggestions: []string{
					"Component directories are resolved against root",
					"Remove '..' segments and leading slashes",
				},
			})
			continue
		}

		clean := filepath.Clean(dir.Path)
		if seen[clean] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Value:   dir.Path,
				Message: "duplicate component directory",
				Suggestions: []string{
					"Each directory may only be listed once; later entries would never be searched",
				},
			})
			continue
		}
		seen[clean] = true

		if !dirExists(filepath.Join(config.Root, clean)) {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   field,
				Value:   dir.Path,
				Message: "component directory does not exist",
				Suggestions: []string{
					fmt.Sprintf("Create %s or remove it from component_dirs", filepath.Join(config.Root, clean)),
				},
			})
		}

		if dir.Memoize != nil && *dir.Memoize && !dir.AutoRegisterEnabled() {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   fmt.Sprintf("component_dirs[%d].memoize", i),
				Value:   true,
				Message: "memoize has no effect while auto_register is false",
			})
		}
	}
}

func validateLogDetails(config *LogConfig, result *ValidationResult) {
	if _, err := parseLogLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.level",
			Value:   config.Level,
			Message: err.Error(),
			Suggestions: []string{
				"Available levels: debug, info, warn, error",
			},
		})
	}

	validFormats := []string{"text", "json"}
	if config.Format != "" && !contains(validFormats, config.Format) {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "log.format",
			Value:   config.Format,
			Message: fmt.Sprintf("unknown log format '%s', falling back to text", config.Format),
			Suggestions: []string{
				"Available formats: " + strings.Join(validFormats, ", "),
			},
		})
	}
}

func validateTracingDetails(config *Config, result *ValidationResult) {
	if !config.Tracing.Enabled {
		return
	}

	validExporters := []string{"none", "stdout", "file", "otlp"}
	if !contains(validExporters, config.Tracing.Exporter) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "tracing.exporter",
			Value:   config.Tracing.Exporter,
			Message: fmt.Sprintf("unknown exporter '%s'", config.Tracing.Exporter),
			Suggestions: []string{
				"Available exporters: " + strings.Join(validExporters, ", "),
			},
		})
	}

	if config.Tracing.Exporter == "file" && config.Tracing.FilePath == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "tracing.file_path",
			Value:   "",
			Message: "file exporter requires a file path",
		})
	}

	if config.Tracing.SampleRate < 0 || config.Tracing.SampleRate > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "tracing.sample_rate",
			Value:   config.Tracing.SampleRate,
			Message: "sample rate must be between 0 and 1",
		})
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
