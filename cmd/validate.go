package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/stowage/internal/config"
	"github.com/conneroisu/stowage/internal/registry"
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the stowage configuration",
	Long: `Validate the configuration and report every problem with suggestions:

- Namespace separators that contain word characters
- Component directories that are empty, absolute, traversing or duplicated
- Component directories and the registrations directory that do not exist
- Unknown loader names
- Invalid log and tracing settings

Examples:
  stowage validate
  stowage validate -o json`,
	RunE: runValidateCommand,
}

var validateFlags *StandardFlags

func init() {
	rootCmd.AddCommand(validateCmd)

	validateFlags = AddStandardFlags(validateCmd, "output")
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	if err := validateFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, _, err := config.LoadWithDetails()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	resolveRoot(cfg, viper.ConfigFileUsed())

	result := config.ValidateConfigWithDetails(cfg)
	if _, err := registry.SettingsFromConfig(cfg, cliLoaders()); err != nil && result.Valid {
		result.Errors = append(result.Errors, config.ValidationError{
			Field:   "component_dirs",
			Message: err.Error(),
			Suggestions: []string{
				"Leave loader empty to use the default loader",
				"The CLI knows the 'describe' loader",
			},
		})
		result.Valid = false
	}

	out := cmd.OutOrStdout()
	format := strings.ToLower(validateFlags.OutputFormat)
	switch {
	case validateFlags.Quiet:
	case format != "table":
		if err := encode(out, format, result); err != nil {
			return err
		}
	case result.HasErrors() || result.HasWarnings():
		fmt.Fprint(out, result.String())
	default:
		fmt.Fprintln(out, "Configuration is valid.")
	}

	if !result.Valid {
		return fmt.Errorf("configuration has %d error(s)", len(result.Errors))
	}
	return nil
}
