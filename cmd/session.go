package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/conneroisu/stowage/internal/component"
	"github.com/conneroisu/stowage/internal/config"
	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/loader"
	"github.com/conneroisu/stowage/internal/logging"
	"github.com/conneroisu/stowage/internal/registry"
	"github.com/conneroisu/stowage/internal/tracing"
)

// session is a container built from the loaded configuration, together
// with the logger and tracer that serve it.
type session struct {
	cfg       *config.Config
	logger    logging.Logger
	tracing   *tracing.Provider
	container *registry.Container
	errors    *errors.ErrorHandler
}

// cliLoaders are the loader names component_dirs and directives may use.
func cliLoaders() map[string]component.Instantiator {
	return map[string]component.Instantiator{
		"describe": loader.Describe,
	}
}

// openSession loads configuration and builds a container whose components
// are instantiated as descriptors. Logs go to logOut.
func openSession(logOut io.Writer) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	resolveRoot(cfg, viper.ConfigFileUsed())

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		Output:    logOut,
		Component: "cli",
	})

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	settings, err := registry.SettingsFromConfig(cfg, cliLoaders())
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	settings.Loader = loader.Describe
	settings.Catalog = loader.NewCatalog().WithFallback(loader.DescribeConstructor)
	settings.Logger = logger
	settings.Tracer = provider.Tracer()

	return &session{
		cfg:       cfg,
		logger:    logger,
		tracing:   provider,
		container: registry.New(settings),
		errors:    errors.NewErrorHandler(logger),
	}, nil
}

// resolveRoot makes a relative root relative to the config file that
// declared it.
func resolveRoot(cfg *config.Config, configFile string) {
	if configFile == "" || filepath.IsAbs(cfg.Root) {
		return
	}
	cfg.Root = filepath.Join(filepath.Dir(configFile), cfg.Root)
}

// fail logs err by category and returns it wrapped with op.
func (s *session) fail(ctx context.Context, op string, err error) error {
	s.errors.Handle(ctx, err)
	return fmt.Errorf("%s: %w", op, err)
}

// Close stops started providers and flushes traces.
func (s *session) Close(ctx context.Context) error {
	if err := s.container.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, err, "Provider shutdown failed")
	}
	return s.tracing.Shutdown(ctx)
}
