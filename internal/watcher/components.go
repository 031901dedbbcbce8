package watcher

import (
	"context"
	"os"
	"time"

	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/componentdir"
	"github.com/conneroisu/stowage/internal/logging"
)

type options struct {
	logger logging.Logger
}

// Option configures WatchDirs.
type Option func(*options)

// WithLogger sets the watcher logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// ComponentChange is a change event mapped onto the component directory
// that owns the file.
type ComponentChange struct {
	Event      ChangeEvent
	Identifier string
	Dir        *componentdir.Dir

	// Component is built from the file and is only set when the file still
	// exists and its directives parse.
	Component *component.Component
	Err       error
}

// ComponentHandler handles a batch of component changes.
type ComponentHandler func(ctx context.Context, changes []ComponentChange) error

// Mapper maps file paths onto component directories. Directories are
// consulted in order and the first one containing the path wins.
type Mapper struct {
	dirs []*componentdir.Dir
}

// NewMapper creates a mapper over dirs.
func NewMapper(dirs []*componentdir.Dir) *Mapper {
	return &Mapper{dirs: dirs}
}

// Map converts events to component changes. Events outside every
// directory, or with another extension, are dropped.
func (m *Mapper) Map(events []ChangeEvent) []ComponentChange {
	changes := make([]ComponentChange, 0, len(events))
	for _, event := range events {
		change, ok := m.mapEvent(event)
		if ok {
			changes = append(changes, change)
		}
	}
	return changes
}

func (m *Mapper) mapEvent(event ChangeEvent) (ComponentChange, bool) {
	for _, dir := range m.dirs {
		if !ExtFilter(dir.Ext())(event.Path) {
			continue
		}
		id, err := dir.IdentifierForPath(event.Path)
		if err != nil {
			continue
		}

		change := ComponentChange{Event: event, Identifier: id, Dir: dir}
		if !event.Type.Gone() {
			comp, err := dir.ComponentForPath(event.Path)
			if err != nil {
				change.Err = err
			} else {
				change.Identifier = comp.Identifier()
				change.Component = &comp
			}
		}
		return change, true
	}
	return ComponentChange{}, false
}

// WatchDirs watches every existing component directory and forwards mapped
// changes to handler. Missing directories are skipped.
func WatchDirs(ctx context.Context, root string, dirs []*componentdir.Dir, delay time.Duration, handler ComponentHandler, opts ...Option) (*FileWatcher, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	fw, err := NewFileWatcher(root, delay, o.logger)
	if err != nil {
		return nil, err
	}

	fw.AddFilter(NoHiddenFilter)
	fw.AddFilter(NoTestFilter)

	for _, dir := range dirs {
		info, err := os.Stat(dir.FullPath())
		if err != nil || !info.IsDir() {
			fw.logger.Debug(ctx, "Skipping missing component directory", "dir", dir.Path())
			continue
		}
		if err := fw.AddRecursive(dir.FullPath()); err != nil {
			_ = fw.Stop()
			return nil, err
		}
	}

	mapper := NewMapper(dirs)
	fw.AddHandler(func(ctx context.Context, events []ChangeEvent) error {
		changes := mapper.Map(events)
		if len(changes) == 0 {
			return nil
		}
		return handler(ctx, changes)
	})

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	return fw, nil
}
