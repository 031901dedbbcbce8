package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:     "resolve KEY...",
	Aliases: []string{"r"},
	Short:   "Resolve keys lazily without finalizing",
	Long: `Resolve one or more keys the way a running container would: staged
providers first, then component directories in order, then registration
files, then imported containers. Only what the keys need is loaded.

Components are not constructed. Each resolves to a descriptor of the
component that would be built.

Examples:
  stowage resolve app_component
  stowage resolve persistence.db -o json
  stowage resolve external.external_component --dump`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

var (
	resolveFlags *StandardFlags
	resolveDump  bool
)

// resolvedEntry is one resolved key.
type resolvedEntry struct {
	Key    string `json:"key"    yaml:"key"`
	Source string `json:"source" yaml:"source"`
	Value  any    `json:"value"  yaml:"value"`
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveFlags = AddStandardFlags(resolveCmd, "output")
	resolveCmd.Flags().BoolVar(&resolveDump, "dump", false, "Dump resolved values with go-spew")
}

func runResolve(cmd *cobra.Command, args []string) error {
	if err := resolveFlags.ValidateFlags(); err != nil {
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

	entries := make([]resolvedEntry, 0, len(args))
	for _, key := range args {
		value, err := s.container.Resolve(ctx, key)
		if err != nil {
			return s.fail(ctx, "resolve "+key, err)
		}

		entry := resolvedEntry{Key: key, Value: value}
		if item, ok := s.container.Item(key); ok {
			entry.Source = string(item.Source())
		}
		entries = append(entries, entry)
	}

	if resolveFlags.Quiet {
		return nil
	}

	out := cmd.OutOrStdout()
	if resolveDump {
		config := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		for _, e := range entries {
			fmt.Fprintf(out, "%s (%s):\n", e.Key, e.Source)
			config.Fdump(out, e.Value)
		}
		return nil
	}

	format := strings.ToLower(resolveFlags.OutputFormat)
	if format == "table" {
		format = "yaml"
	}
	return encode(out, format, entries)
}
