package transform

import (
	"context"
	"strings"
)

// Adapter is one content transform.
type Adapter interface {
	Name() string
	Apply(ctx context.Context, a *Asset) error
}

// Filter is implemented by adapters that refuse some inputs outright, such
// as Sass partials that are only meaningful when imported.
type Filter interface {
	Accept(rel string) bool
}

// Chain applies adapters in order.
type Chain []Adapter

// Accept reports whether every filtering adapter accepts rel.
func (c Chain) Accept(rel string) bool {
	for _, a := range c {
		if f, ok := a.(Filter); ok && !f.Accept(rel) {
			return false
		}
	}
	return true
}

// Run pipes a through the chain. The returned error, if any, is a *TransformError.
func (c Chain) Run(ctx context.Context, a *Asset) error {
	for _, adapter := range c {
		if err := ctx.Err(); err != nil {
			return &TransformError{Adapter: adapter.Name(), File: a.Source, Err: err}
		}
		if err := adapter.Apply(ctx, a); err != nil {
			if te, ok := AsTransformError(err); ok {
				if te.Adapter == "" {
					te.Adapter = adapter.Name()
				}
				if te.File == "" {
					te.File = a.Source
				}
				return te
			}
			return &TransformError{Adapter: adapter.Name(), File: a.Source, Err: err}
		}
	}
	return nil
}

// Names lists adapter names, for logs and graph output.
func (c Chain) Names() []string {
	out := make([]string, len(c))
	for i, a := range c {
		out[i] = a.Name()
	}
	return out
}

func (c Chain) String() string {
	return strings.Join(c.Names(), " -> ")
}

// Func adapts a plain function into an Adapter.
type Func struct {
	Label string
	Fn    func(ctx context.Context, a *Asset) error
}

func (f Func) Name() string { return f.Label }

func (f Func) Apply(ctx context.Context, a *Asset) error { return f.Fn(ctx, a) }
