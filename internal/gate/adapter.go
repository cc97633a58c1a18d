package gate

import (
	"context"
	"fmt"

	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

// Adapter exposes one gate sequence as a resolver.Adapter.
type Adapter struct {
	id       string
	engine   *Engine
	sequence Sequence
}

// NewAdapter binds a validated sequence to the engine.
func NewAdapter(id string, engine *Engine, sequence Sequence) (*Adapter, error) {
	if id == "" {
		return nil, fmt.Errorf("adapter id is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("gate engine is required")
	}
	if err := sequence.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{id: id, engine: engine, sequence: sequence}, nil
}

// ID returns the registry adapter id.
func (a *Adapter) ID() string {
	return a.id
}

// Kind reports that the adapter serves dynamic registry rows.
func (a *Adapter) Kind() resolver.Kind {
	return resolver.KindDynamic
}

// Resolve bypasses the gates and returns the destination URL.
func (a *Adapter) Resolve(ctx context.Context, req resolver.Request) (resolver.Result, error) {
	dest, err := a.engine.Bypass(ctx, req, a.sequence)
	if err != nil {
		return resolver.Result{}, err
	}
	return resolver.Result{ResolvedURL: dest}, nil
}
