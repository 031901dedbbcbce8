package registry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/stowage/internal/errors"
	"github.com/conneroisu/stowage/internal/logging"
	"github.com/conneroisu/stowage/internal/tracing"
)

// Finalize phases, in execution order.
const (
	PhaseHooks   = "hooks"
	PhaseImports = "imports"
	PhaseBoot    = "boot"
	PhaseManual  = "manual"
	PhaseAuto    = "auto_register"
)

type phase struct {
	name string
	run  func(ctx context.Context) error
}

// Finalize runs every source exhaustively and freezes the container. It is
// idempotent: once finalized it returns the same Frozen view. A failed
// finalize leaves the container active so it can be retried.
func (c *Container) Finalize(ctx context.Context) (*Frozen, error) {
	if f := c.frozen.Load(); f != nil {
		return f, nil
	}
	if holds(ctx, c.id) {
		return nil, errors.NewValidationError(errors.ErrCodeLifecycle,
			"finalize called while the container is loading").
			WithContext("registry", c.settings.Name)
	}

	c.gate.Lock()
	defer c.gate.Unlock()

	if f := c.frozen.Load(); f != nil {
		return f, nil
	}
	ctx = withHeld(ctx, c.id)

	ctx, span := c.tracer.Start(ctx, tracing.SpanFinalize, trace.WithAttributes(
		attribute.String(tracing.AttrRegistryID, c.id),
		attribute.String(tracing.AttrRegistryName, c.settings.Name),
	))
	defer span.End()

	perf := logging.StartOperation(c.logger, "finalize")

	phases := []phase{
		{PhaseHooks, c.runFinalizeHooks},
		{PhaseImports, c.importer.Finalize},
		{PhaseBoot, c.booter.Finalize},
		{PhaseManual, c.manual.Finalize},
		{PhaseAuto, c.autoRegister},
	}

	for _, p := range phases {
		if err := c.runPhase(ctx, p); err != nil {
			tracing.RecordError(span, err)
			perf.EndWithError(ctx, err)
			return nil, err
		}
	}

	f := newFrozen(c, c.items.Freeze())
	c.frozen.Store(f)

	perf.End(ctx, "keys", f.Len())
	return f, nil
}

func (c *Container) runPhase(ctx context.Context, p phase) error {
	ctx, span := c.tracer.Start(ctx, tracing.SpanPhase, trace.WithAttributes(
		attribute.String(tracing.AttrPhase, p.name),
	))
	defer span.End()

	before := c.items.Count()
	if err := p.run(ctx); err != nil {
		tracing.RecordError(span, err)
		c.logger.Error(ctx, err, "Finalize phase failed", "phase", p.name)
		return err
	}

	c.logger.Info(ctx, "Finalize phase complete", "phase", p.name, "added", c.items.Count()-before)
	return nil
}

func (c *Container) runFinalizeHooks(ctx context.Context) error {
	for _, hook := range c.settings.BeforeFinalize {
		if err := hook(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// autoRegister registers every remaining component whose auto-register
// option holds, directory by directory.
func (c *Container) autoRegister(ctx context.Context) error {
	for _, dir := range c.dirs {
		components, err := dir.Components()
		if err != nil {
			return err
		}

		for _, comp := range components {
			if c.items.Has(comp.Identifier()) || !comp.AutoRegister() {
				continue
			}
			if err := c.registerComponent(comp); err != nil {
				return err
			}
		}

		c.logger.Debug(ctx, "Directory scanned", "dir", dir.Path(), "components", len(components))
	}
	return nil
}
