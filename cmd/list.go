package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stowage/internal/registry"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List discovered components or registered keys",
	Long: `List the components found in the configured component directories.

With --finalize the container is finalized first: imports are merged, staged
providers started, registration files executed and every auto-registered
component added. The registered keys are then listed with the source that
provided them.

Examples:
  stowage list                    # Components per directory
  stowage list --finalize         # Registered keys after finalization
  stowage list --finalize -o json # As JSON`,
	RunE: runList,
}

var (
	listFlags    *StandardFlags
	listFinalize bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output")
	listCmd.Flags().BoolVar(&listFinalize, "finalize", false, "Finalize the container and list registered keys")

	AddFlagValidation(listCmd, "output", func(format string) error {
		return ValidateFormatWithSuggestion(format, outputFormats)
	})
}

// componentEntry describes a component file found in a component directory.
type componentEntry struct {
	Identifier   string `json:"identifier"    yaml:"identifier"`
	Dir          string `json:"dir"           yaml:"dir"`
	FilePath     string `json:"file_path"     yaml:"file_path"`
	Constant     string `json:"constant"      yaml:"constant"`
	AutoRegister bool   `json:"auto_register" yaml:"auto_register"`
	Memoize      bool   `json:"memoize"       yaml:"memoize"`
}

// keyEntry describes a registered key.
type keyEntry struct {
	Key      string `json:"key"                 yaml:"key"`
	Source   string `json:"source"              yaml:"source"`
	Memoized bool   `json:"memoized"            yaml:"memoized"`
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close(ctx)

	out := cmd.OutOrStdout()
	format := strings.ToLower(listFlags.OutputFormat)

	if listFinalize {
		entries, err := finalizedKeys(ctx, s.container)
		if err != nil {
			return err
		}
		if listFlags.Quiet {
			return nil
		}
		if format == "table" {
			return keyTable(out, entries)
		}
		return encode(out, format, entries)
	}

	entries, err := discoveredComponents(s.container)
	if err != nil {
		return err
	}
	if listFlags.Quiet {
		return nil
	}
	if format == "table" {
		return componentTable(out, entries)
	}
	return encode(out, format, entries)
}

func discoveredComponents(c *registry.Container) ([]componentEntry, error) {
	var entries []componentEntry
	for _, dir := range c.Dirs() {
		components, err := dir.Components()
		if err != nil {
			return nil, err
		}
		for _, comp := range components {
			entries = append(entries, componentEntry{
				Identifier:   comp.Identifier(),
				Dir:          dir.Path(),
				FilePath:     comp.FilePath(),
				Constant:     comp.Constant(),
				AutoRegister: comp.AutoRegister(),
				Memoize:      comp.Memoize(),
			})
		}
	}
	return entries, nil
}

func finalizedKeys(ctx context.Context, c *registry.Container) ([]keyEntry, error) {
	frozen, err := c.Finalize(ctx)
	if err != nil {
		return nil, fmt.Errorf("finalize failed: %w", err)
	}

	entries := make([]keyEntry, 0, frozen.Len())
	for _, key := range frozen.Keys() {
		item, _ := frozen.Item(key)
		entries = append(entries, keyEntry{
			Key:      key,
			Source:   string(item.Source()),
			Memoized: item.Memoized(),
			FilePath: item.FilePath(),
		})
	}
	return entries, nil
}

// encode writes v as json or yaml.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func componentTable(out io.Writer, entries []componentEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No components found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTIFIER\tDIR\tCONSTANT\tAUTO\tMEMOIZE\tFILE")
	fmt.Fprintln(w, "----------\t---\t--------\t----\t-------\t----")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n", e.Identifier, e.Dir, e.Constant, e.AutoRegister, e.Memoize, e.FilePath)
	}
	fmt.Fprintf(w, "\nTotal: %d components\n", len(entries))
	return w.Flush()
}

func keyTable(out io.Writer, entries []keyEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No keys registered.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSOURCE\tMEMOIZED\tFILE")
	fmt.Fprintln(w, "---\t------\t--------\t----")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", e.Key, e.Source, e.Memoized, e.FilePath)
	}
	fmt.Fprintf(w, "\nTotal: %d keys\n", len(entries))
	return w.Flush()
}
