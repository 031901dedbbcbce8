package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stowage/internal/store"
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Finalize the container and report keys per source",
	Long: `Finalize the container exhaustively and report how many keys each
source provided: direct registrations, staged providers, component
directories, registration files and imports.

Examples:
  stowage finalize
  stowage finalize -o yaml`,
	RunE: runFinalize,
}

var finalizeFlags *StandardFlags

// finalizeReport summarizes a finalized container.
type finalizeReport struct {
	Name    string         `json:"name"    yaml:"name"`
	Keys    int            `json:"keys"    yaml:"keys"`
	Sources map[string]int `json:"sources" yaml:"sources"`
}

func init() {
	rootCmd.AddCommand(finalizeCmd)

	finalizeFlags = AddStandardFlags(finalizeCmd, "output")
}

func runFinalize(cmd *cobra.Command, args []string) error {
	if err := finalizeFlags.ValidateFlags(); err != nil {
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

	frozen, err := s.container.Finalize(ctx)
	if err != nil {
		return s.fail(ctx, "finalize failed", err)
	}

	report := finalizeReport{
		Name:    frozen.Name(),
		Keys:    frozen.Len(),
		Sources: countSources(frozen.Snapshot()),
	}

	if finalizeFlags.Quiet {
		return nil
	}

	out := cmd.OutOrStdout()
	format := strings.ToLower(finalizeFlags.OutputFormat)
	if format != "table" {
		return encode(out, format, report)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Container %q finalized with %d keys\n\n", report.Name, report.Keys)
	fmt.Fprintln(w, "SOURCE\tKEYS")

	sources := make([]string, 0, len(report.Sources))
	for source := range report.Sources {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Fprintf(w, "%s\t%d\n", source, report.Sources[source])
	}
	return w.Flush()
}

func countSources(items map[string]*store.Item) map[string]int {
	counts := make(map[string]int)
	for _, item := range items {
		counts[string(item.Source())]++
	}
	return counts
}
