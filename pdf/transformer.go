package pdf

import (
	"context"

	"github.com/kbukum/xpdflow/errors"
)

// Request is one transform call.
type Request struct {
	Kind        Kind
	Q           []float64
	I           []float64
	Composition string
	Config      Config
}

// Validate checks that Q and I align.
func (r Request) Validate() error {
	if len(r.Q) != len(r.I) {
		return errors.ShapeMismatch("pdf.Request", len(r.Q), len(r.I))
	}
	if len(r.Q) < 2 {
		return errors.InvalidInput("q", "at least two points are required")
	}
	return nil
}

// Result carries the transformed curve and the configuration actually used.
type Result struct {
	Kind   Kind
	X      []float64
	Y      []float64
	Config Config
}

// Transformer computes structure functions.
type Transformer interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Transform(ctx context.Context, req Request) (Result, error)
}

// Noop is the transformer used when no backend is configured. It reports
// itself unavailable and returns empty curves.
type Noop struct{}

func (Noop) Name() string                       { return "noop" }
func (Noop) IsAvailable(_ context.Context) bool { return false }

func (Noop) Transform(_ context.Context, req Request) (Result, error) {
	return Result{Kind: req.Kind, Config: req.Config}, nil
}
