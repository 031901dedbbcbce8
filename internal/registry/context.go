package registry

import (
	"context"
)

// frame is one key being resolved on one registry.
type frame struct {
	registry string
	key      string
}

type chainKey struct{}

type heldKey struct{}

func resolutionChain(ctx context.Context) []frame {
	chain, _ := ctx.Value(chainKey{}).([]frame)
	return chain
}

// withFrame returns a context recording that key is being resolved on
// registry.
func withFrame(ctx context.Context, registry, key string) context.Context {
	chain := resolutionChain(ctx)
	next := make([]frame, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, chainKey{}, append(next, frame{registry: registry, key: key}))
}

// inChain reports whether key is already being resolved on registry, and
// the keys of that registry's frames in order.
func inChain(ctx context.Context, registry, key string) (bool, []string) {
	var (
		keys  []string
		found bool
	)
	for _, f := range resolutionChain(ctx) {
		if f.registry != registry {
			continue
		}
		keys = append(keys, f.key)
		if f.key == key {
			found = true
		}
	}
	return found, keys
}

// holds reports whether the caller already holds registry's gate.
func holds(ctx context.Context, registry string) bool {
	held, _ := ctx.Value(heldKey{}).([]string)
	for _, id := range held {
		if id == registry {
			return true
		}
	}
	return false
}

func withHeld(ctx context.Context, registry string) context.Context {
	held, _ := ctx.Value(heldKey{}).([]string)
	next := make([]string, len(held), len(held)+1)
	copy(next, held)
	return context.WithValue(ctx, heldKey{}, append(next, registry))
}
