package registry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/componentdir"
	"github.com/conneroisu/stowage/internal/config"
	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/identifier"
	"github.com/conneroisu/stowage/internal/inflector"
	"github.com/conneroisu/stowage/internal/loader"
	"github.com/conneroisu/stowage/internal/logging"
)

// FinalizeHook runs inside Finalize before any source is finalized.
type FinalizeHook func(ctx context.Context, c *Container) error

// Settings configure a container. The zero value is usable: every field
// has a default.
type Settings struct {
	Name string
	// Root is the directory component and registration paths are relative to.
	Root      string
	Separator string
	// Ext is the artifact extension scanned in component directories.
	Ext              string
	RegistrationsDir string
	ComponentDirs    []componentdir.Config

	Inflector *inflector.Inflector
	// Loader is the default instantiator. It defaults to Catalog.
	Loader component.Instantiator
	// Loaders are the instantiators per-file directives may name.
	Loaders map[string]component.Instantiator
	// Catalog holds the constructors manual registration files refer to.
	Catalog *loader.Catalog

	Logger logging.Logger
	Tracer trace.Tracer

	BeforeFinalize []FinalizeHook
}

func (s Settings) withDefaults() Settings {
	if s.Name == "" {
		s.Name = config.DefaultName
	}
	if s.Root == "" {
		s.Root = config.DefaultRoot
	}
	if s.Separator == "" {
		s.Separator = identifier.DefaultSeparator
	}
	if s.Ext == "" {
		s.Ext = componentdir.DefaultExt
	}
	if s.RegistrationsDir == "" {
		s.RegistrationsDir = config.DefaultRegistrationsDir
	}
	if s.Inflector == nil {
		s.Inflector = inflector.New()
	}
	if s.Catalog == nil {
		s.Catalog = loader.NewCatalog()
	}
	if s.Loader == nil {
		s.Loader = s.Catalog
	}
	if s.Logger == nil {
		s.Logger = logging.NewNop()
	}
	if s.Tracer == nil {
		s.Tracer = noop.NewTracerProvider().Tracer("stowage")
	}
	return s
}

// Clone returns a copy that shares no slices or maps with s. Loaders,
// the catalog, the logger and the tracer are shared.
func (s Settings) Clone() Settings {
	out := s
	out.ComponentDirs = append([]componentdir.Config(nil), s.ComponentDirs...)
	out.BeforeFinalize = append([]FinalizeHook(nil), s.BeforeFinalize...)
	if s.Loaders != nil {
		out.Loaders = make(map[string]component.Instantiator, len(s.Loaders))
		for name, l := range s.Loaders {
			out.Loaders[name] = l
		}
	}
	return out
}

// SettingsFromConfig converts loaded configuration into settings. Loader
// names in cfg are looked up in loaders.
func SettingsFromConfig(cfg *config.Config, loaders map[string]component.Instantiator) (Settings, error) {
	settings := Settings{
		Name:             cfg.Name,
		Root:             cfg.Root,
		Separator:        cfg.NamespaceSeparator,
		Ext:              cfg.ComponentExt,
		RegistrationsDir: cfg.RegistrationsDir,
		Loaders:          loaders,
	}

	for i, dir := range cfg.ComponentDirs {
		dc := componentdir.Config{
			Path:             dir.Path,
			DefaultNamespace: dir.DefaultNamespace,
			AutoRegister:     component.Bool(dir.AutoRegisterEnabled()),
			Memoize:          component.Bool(dir.MemoizeEnabled()),
		}
		if dir.Loader != "" {
			l, ok := loaders[dir.Loader]
			if !ok {
				return Settings{}, errors.NewConfigError(errors.ErrCodeConfigInvalid,
					fmt.Sprintf("component_dirs[%d]: unknown loader %q", i, dir.Loader))
			}
			dc.Loader = l
		}
		settings.ComponentDirs = append(settings.ComponentDirs, dc)
	}

	return settings.Clone(), nil
}
