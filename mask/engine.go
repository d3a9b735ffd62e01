package mask

import (
	"context"
	"time"

	"github.com/kbukum/xpdflow/binning"
	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/observability"
	"github.com/kbukum/xpdflow/workpool"
)

// Engine computes masks, running outlier clipping on a bounded worker pool.
type Engine struct {
	workers  int
	metrics  *observability.Metrics
	log      *logger.Logger
	progress workpool.ProgressFunc
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers sets the pool size. Zero or less uses GOMAXPROCS.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) { e.workers = n }
}

// WithMetrics records flagged counts and durations.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithProgress reports per-ring progress of mean clipping.
func WithProgress(fn workpool.ProgressFunc) EngineOption {
	return func(e *Engine) { e.progress = fn }
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{log: logger.Get("mask")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type ring struct {
	values    []float64
	positions []int
}

// Outliers returns the flat indices of pixels flagged by sigma clipping
// within each ring of b. The order of the result is unspecified.
func (e *Engine) Outliers(ctx context.Context, img *frame.Frame, b *binning.Binner, alpha float64, method Method) ([]int, error) {
	if img.Shape != b.Partition().Shape() {
		return nil, errors.ShapeMismatch("mask.Outliers", b.Partition().Shape(), img.Shape)
	}
	rings := make([]ring, 0, b.Len())
	for i := 0; i < b.Len(); i++ {
		if b.Counts()[i] == 0 {
			continue
		}
		rings = append(rings, ring{values: b.Values(img, i), positions: b.Group(i)})
	}

	clip := ringFunc(method)
	opts := []workpool.Option{workpool.WithName("outlier." + string(method))}
	if method == MethodMean && e.progress != nil {
		opts = append(opts, workpool.WithProgress(e.progress))
	}
	removals, err := workpool.Run(ctx, e.workers, rings, func(_ context.Context, r ring) ([]int, error) {
		return clip(r.values, r.positions, alpha), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	var flagged []int
	for _, r := range removals {
		flagged = append(flagged, r...)
	}
	return flagged, nil
}

// Mask composes prior, edge, threshold and outlier masks for img. prior may
// be nil.
func (e *Engine) Mask(ctx context.Context, img *frame.Frame, p *binning.Partition, opts Options, prior *frame.Mask) (*frame.Mask, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanMask)
	defer span.End()
	start := time.Now()

	if img.Shape != p.Shape() {
		err := errors.ShapeMismatch("mask.Mask", p.Shape(), img.Shape)
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	working := frame.Ones(img.Shape)
	if prior != nil {
		working = prior.Clone()
	}
	if _, err := working.And(Margin(img.Shape, opts.Edge), Threshold(img, opts.LowerThreshold, opts.UpperThreshold)); err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	flagged := 0
	if opts.Alpha > 0 {
		b, err := p.Bind(working)
		if err != nil {
			observability.SetSpanError(ctx, err)
			return nil, err
		}
		removals, err := e.Outliers(ctx, img, b, opts.Alpha, opts.Method)
		if err != nil {
			observability.SetSpanError(ctx, err)
			return nil, err
		}
		working.Exclude(removals...)
		flagged = len(removals)
	}

	d := time.Since(start)
	observability.SetSpanAttribute(ctx, observability.AttrMethod, string(opts.Method))
	observability.SetSpanAttribute(ctx, observability.AttrFlagged, flagged)
	observability.SetSpanAttribute(ctx, observability.AttrBins, p.Len())
	if e.metrics != nil {
		e.metrics.RecordMask(ctx, string(opts.Method), flagged, d)
	}
	e.log.WithContext(ctx).Debug("mask computed", logger.Fields(
		logger.FieldMethod, string(opts.Method),
		logger.FieldFlagged, flagged,
		logger.FieldBins, p.Len(),
		logger.FieldShape, img.Shape.String(),
		logger.FieldDuration, d.Milliseconds(),
	))
	return working, nil
}

// Margin excludes pixels within edge pixels of the frame border. edge <= 0
// returns nil.
func Margin(s frame.Shape, edge int) *frame.Mask {
	if edge <= 0 {
		return nil
	}
	m := &frame.Mask{Shape: s, Bits: make([]bool, s.Size())}
	for r := edge; r < s.Rows-edge; r++ {
		for c := edge; c < s.Cols-edge; c++ {
			m.Bits[r*s.Cols+c] = true
		}
	}
	return m
}

// Threshold excludes pixels with v <= lower or v >= upper. It returns nil
// when both bounds are nil.
func Threshold(img *frame.Frame, lower, upper *float64) *frame.Mask {
	if lower == nil && upper == nil {
		return nil
	}
	m := frame.Ones(img.Shape)
	for i, v := range img.Pix {
		if (lower != nil && v <= *lower) || (upper != nil && v >= *upper) {
			m.Bits[i] = false
		}
	}
	return m
}

// Overlay returns a copy of img with excluded pixels replaced by fill.
func Overlay(img *frame.Frame, m *frame.Mask, fill float64) (*frame.Frame, error) {
	if img.Shape != m.Shape {
		return nil, errors.ShapeMismatch("mask.Overlay", img.Shape, m.Shape)
	}
	out := img.Clone()
	for i, keep := range m.Bits {
		if !keep {
			out.Pix[i] = fill
		}
	}
	return out, nil
}
