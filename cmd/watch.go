package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stowage/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Watch component directories and report affected identifiers",
	Long: `Watch every configured component directory and print the identifier
each changed file maps to, together with its effective options. Deleted
files are reported by identifier only.

Examples:
  stowage watch                   # Watch all component directories
  stowage watch --debounce 100ms  # Shorter debounce
  stowage watch --verbose         # Include file paths and constants`,
	RunE: runWatch,
}

var watchFlags *StandardFlags

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "watch")
	watchCmd.Flags().BoolVarP(&watchFlags.Verbose, "verbose", "v", false, "Verbose output")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := watchFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.Close(ctx)

	out := cmd.OutOrStdout()
	fw, err := watcher.WatchDirs(ctx, s.cfg.Root, s.container.Dirs(), watchFlags.Debounce,
		func(ctx context.Context, changes []watcher.ComponentChange) error {
			printChanges(out, s.cfg.Root, changes, watchFlags.Verbose)
			return nil
		},
		watcher.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer fw.Stop()

	for _, dir := range s.container.Dirs() {
		fmt.Fprintf(out, "Watching %s\n", dir.Path())
	}
	fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		fmt.Fprintln(out, "Stopping file watcher...")
	case <-ctx.Done():
	}
	return nil
}

func printChanges(out io.Writer, root string, changes []watcher.ComponentChange, verbose bool) {
	for _, change := range changes {
		rel := change.Event.Path
		if r, err := filepath.Rel(root, change.Event.Path); err == nil {
			rel = r
		}

		switch {
		case change.Err != nil:
			fmt.Fprintf(out, "%-8s %s: %v\n", change.Event.Type, change.Identifier, change.Err)
		case change.Component == nil:
			fmt.Fprintf(out, "%-8s %s\n", change.Event.Type, change.Identifier)
		default:
			c := change.Component
			fmt.Fprintf(out, "%-8s %s (auto_register=%t memoize=%t)\n",
				change.Event.Type, change.Identifier, c.AutoRegister(), c.Memoize())
			if verbose {
				fmt.Fprintf(out, "         file=%s constant=%s dir=%s\n", rel, c.Constant(), change.Dir.Path())
			}
		}
	}
}
