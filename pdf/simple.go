package pdf

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/kbukum/xpdflow/errors"
)

// Simple normalizes I(Q) by its high-Q average to obtain S(Q), forms
// F(Q) = Q (S(Q) - 1) and sine-transforms F(Q) into G(r).
type Simple struct{}

// NewSimple returns the reference transformer.
func NewSimple() *Simple { return &Simple{} }

func (*Simple) Name() string                       { return "simple" }
func (*Simple) IsAvailable(_ context.Context) bool { return true }

func (*Simple) Transform(_ context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	cfg := req.Config
	q, iq := window(req.Q, req.I, cfg.QMin, math.Min(cfg.QMax, cfg.QMaxInst))
	if len(q) < 3 {
		return Result{}, errors.InvalidInput("q", "fewer than three points inside [qmin, qmax]")
	}

	sq := structureFactor(q, iq)
	res := Result{Kind: req.Kind, Config: cfg}
	switch req.Kind {
	case KindSQ:
		res.X, res.Y = q, sq
	case KindFQ:
		res.X, res.Y = q, reduced(q, sq)
	case KindPDF:
		res.X, res.Y = SineTransform(q, reduced(q, sq), cfg.RMin, cfg.RMax, cfg.RStep)
	default:
		return Result{}, errors.InvalidInput("kind", string(req.Kind))
	}
	return res, nil
}

func window(q, iq []float64, lo, hi float64) ([]float64, []float64) {
	var xs, ys []float64
	for i, v := range q {
		if v >= lo && v <= hi {
			xs = append(xs, v)
			ys = append(ys, iq[i])
		}
	}
	return xs, ys
}

// structureFactor scales iq so its mean over the top fifth of the Q range
// is 1.
func structureFactor(q, iq []float64) []float64 {
	cut := q[0] + 0.8*(q[len(q)-1]-q[0])
	var tail []float64
	for i, v := range q {
		if v >= cut {
			tail = append(tail, iq[i])
		}
	}
	norm := floats.Sum(tail) / float64(len(tail))
	out := make([]float64, len(iq))
	if norm == 0 {
		return out
	}
	floats.ScaleTo(out, 1/norm, iq)
	return out
}

func reduced(q, sq []float64) []float64 {
	out := make([]float64, len(q))
	for i := range q {
		out[i] = q[i] * (sq[i] - 1)
	}
	return out
}

// SineTransform computes G(r) = 2/pi * integral F(Q) sin(Qr) dQ on the grid
// rmin, rmin+rstep, ... up to rmax inclusive. q must be sorted with at least
// three points.
func SineTransform(q, fq []float64, rmin, rmax, rstep float64) (r, gr []float64) {
	n := int(math.Floor((rmax-rmin)/rstep+1e-9)) + 1
	r = make([]float64, n)
	gr = make([]float64, n)
	integrand := make([]float64, len(q))
	for k := range r {
		r[k] = rmin + float64(k)*rstep
		for i := range q {
			integrand[i] = fq[i] * math.Sin(q[i]*r[k])
		}
		gr[k] = 2 / math.Pi * integrate.Simpsons(q, integrand)
	}
	return r, gr
}
