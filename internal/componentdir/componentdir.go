// Package componentdir locates component artifacts inside a configured
// directory and builds Components for them, in both directions: from an
// identifier to a file and from a file to an identifier.
//
// A Dir holds configuration only. It never caches the Components it builds.
package componentdir

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/directives"
	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/identifier"
	"github.com/conneroisu/stowage/internal/inflector"
)

// DefaultExt is the artifact extension used when none is configured.
const DefaultExt = ".go"

// Config is the per-directory configuration.
type Config struct {
	// Path is relative to the registry root.
	Path             string
	DefaultNamespace string
	AutoRegister     component.Predicate
	Memoize          component.Predicate
	// Loader overrides the registry's default loader for this directory.
	Loader component.Instantiator
}

// Globals are the registry-wide settings every directory inherits.
type Globals struct {
	Root      string
	Separator string
	Ext       string
	Inflector *inflector.Inflector
	Loader    component.Instantiator
	// Loaders resolves loader names given in per-file directives.
	Loaders map[string]component.Instantiator
}

// Dir is a component directory bound to its registry's globals.
type Dir struct {
	config  Config
	globals Globals
}

// New binds cfg to globals.
func New(cfg Config, globals Globals) *Dir {
	if globals.Separator == "" {
		globals.Separator = identifier.DefaultSeparator
	}
	if globals.Ext == "" {
		globals.Ext = DefaultExt
	}
	if globals.Inflector == nil {
		globals.Inflector = inflector.New()
	}
	return &Dir{config: cfg, globals: globals}
}

// Config returns the directory's own configuration.
func (d *Dir) Config() Config { return d.config }

// Path is the root-relative directory path.
func (d *Dir) Path() string { return d.config.Path }

// DefaultNamespace is the namespace stripped from identifiers found here.
func (d *Dir) DefaultNamespace() string { return d.config.DefaultNamespace }

// FullPath is the absolute (or root-joined) directory path.
func (d *Dir) FullPath() string {
	return filepath.Join(d.globals.Root, filepath.FromSlash(d.config.Path))
}

// Loader returns the directory's loader, falling back to the registry default.
func (d *Dir) Loader() component.Instantiator {
	if d.config.Loader != nil {
		return d.config.Loader
	}
	return d.globals.Loader
}

// ComponentFile returns the file for a slash-separated component path, if
// one exists.
func (d *Dir) ComponentFile(componentPath string) (string, bool) {
	file := filepath.Join(d.FullPath(), filepath.FromSlash(componentPath)+d.globals.Ext)

	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return "", false
	}
	return file, true
}

// ComponentForIdentifier finds the artifact for id. The namespace-qualified
// path is probed before the bare path. The boolean is false when neither
// exists; that is not an error.
func (d *Dir) ComponentForIdentifier(id string) (component.Component, bool, error) {
	sep := d.globals.Separator
	ns := d.config.DefaultNamespace

	if ns != "" {
		if file, ok := d.ComponentFile(identifier.ToPath(id, ns, sep)); ok {
			c, err := d.build(id, file, ns)
			return c, err == nil, err
		}
	}

	file, ok := d.ComponentFile(identifier.ToPath(id, "", sep))
	if !ok {
		return component.Component{}, false, nil
	}

	// A bare hit that still carries the default namespace is the same
	// component as the namespaced probe above.
	namespace := ""
	if _, stripped := identifier.StripNamespace(id, ns); stripped {
		namespace = ns
	}

	c, err := d.build(id, file, namespace)
	return c, err == nil, err
}

// IdentifierForPath derives the identifier of a file inside the directory
// without reading it, so it also works for files that no longer exist.
func (d *Dir) IdentifierForPath(path string) (string, error) {
	rel, err := filepath.Rel(d.FullPath(), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewValidationError(errors.ErrCodeOutsideDir,
			"file is outside the component directory").
			WithFilePath(path).
			WithContext("dir", d.FullPath())
	}
	return identifier.FromPath(filepath.ToSlash(rel), d.globals.Ext, d.globals.Separator), nil
}

// Ext is the component file extension.
func (d *Dir) Ext() string { return d.globals.Ext }

// ComponentForPath derives the component for a file inside the directory.
func (d *Dir) ComponentForPath(path string) (component.Component, error) {
	id, err := d.IdentifierForPath(path)
	if err != nil {
		return component.Component{}, err
	}

	namespace := ""
	if _, ok := identifier.StripNamespace(id, d.config.DefaultNamespace); ok {
		namespace = d.config.DefaultNamespace
	}

	return d.build(id, path, namespace)
}

// ComponentOptions merges the registry globals, the directory settings and
// the directives found in filePath, in increasing order of precedence.
func (d *Dir) ComponentOptions(filePath, namespace string) (component.Options, error) {
	opts := component.Options{
		Separator:    d.globals.Separator,
		Namespace:    namespace,
		Inflector:    d.globals.Inflector,
		AutoRegister: d.config.AutoRegister,
		Memoize:      d.config.Memoize,
		Loader:       d.Loader(),
	}

	if filePath == "" {
		return opts, nil
	}

	overrides, err := directives.Parse(filePath)
	if err != nil {
		return component.Options{}, err
	}

	if overrides.AutoRegister != nil {
		opts.AutoRegister = component.Bool(*overrides.AutoRegister)
	}
	if overrides.Memoize != nil {
		opts.Memoize = component.Bool(*overrides.Memoize)
	}
	if overrides.Loader != "" {
		loader, ok := d.globals.Loaders[overrides.Loader]
		if !ok {
			return component.Options{}, errors.NewValidationError(errors.ErrCodeInvalidDirective,
				"unknown loader "+overrides.Loader).
				WithFilePath(filePath)
		}
		opts.Loader = loader
	}

	return opts, nil
}

// Walk returns every artifact under the directory in lexical order. A
// missing directory yields no files.
func (d *Dir) Walk() ([]string, error) {
	root := d.FullPath()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), d.globals.Ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeDirScan, "cannot scan component directory", err).
			WithFilePath(root)
	}

	return files, nil
}

// Components builds a component for every artifact returned by Walk.
func (d *Dir) Components() ([]component.Component, error) {
	files, err := d.Walk()
	if err != nil {
		return nil, err
	}

	components := make([]component.Component, 0, len(files))
	for _, file := range files {
		c, err := d.ComponentForPath(file)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}
	return components, nil
}

func (d *Dir) build(id, filePath, namespace string) (component.Component, error) {
	opts, err := d.ComponentOptions(filePath, namespace)
	if err != nil {
		return component.Component{}, err
	}
	return component.NewWithFile(id, filePath, opts), nil
}
