package reduction

import (
	"context"
	"embed"
	"sync"

	"github.com/spf13/afero"

	"github.com/kbukum/xpdflow/binning"
	"github.com/kbukum/xpdflow/component"
	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/geometry"
	"github.com/kbukum/xpdflow/link"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/mask"
	"github.com/kbukum/xpdflow/observability"
	"github.com/kbukum/xpdflow/pdf"
	"github.com/kbukum/xpdflow/settings"
	"github.com/kbukum/xpdflow/stream"
)

//go:embed pipelines/*.yaml
var embedded embed.FS

// DefinitionsDir is the directory of the embedded definitions inside
// Definitions().
const DefinitionsDir = "pipelines"

// Definitions returns the embedded pipeline definitions as a read-only
// filesystem.
func Definitions() afero.Fs {
	return afero.FromIOFS{FS: embedded}
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	fs          afero.Fs
	loader      geometry.Loader
	calibrator  geometry.Calibrator
	transformer pdf.Transformer
	definitions link.Loader
	metrics     *observability.Metrics
	hooks       []stream.Hook
	chunks      []link.Chunk
	log         *logger.Logger
	progress    func(done, total int)
}

// WithFs sets the filesystem for calibration files and DefinitionsDir.
// Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithLoader sets how stored geometry parameters become a Geometry.
// Defaults to geometry.FlatLoader.
func WithLoader(l geometry.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithCalibrator enables calibration from calibrant frames.
func WithCalibrator(c geometry.Calibrator) Option {
	return func(o *options) { o.calibrator = c }
}

// WithTransformer sets the PDF backend. Defaults to pdf.Noop, which
// produces no structure functions.
func WithTransformer(t pdf.Transformer) Option {
	return func(o *options) { o.transformer = t }
}

// WithDefinitions adds a loader consulted before the configured directory
// and the embedded definitions.
func WithDefinitions(l link.Loader) Option {
	return func(o *options) { o.definitions = l }
}

// WithMetrics records node, mask and transform metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithHooks installs stream hooks on the graph.
func WithHooks(hooks ...stream.Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

// WithChunks registers extra chunks that definitions may name. A chunk
// with a built-in name replaces the built-in.
func WithChunks(chunks ...link.Chunk) Option {
	return func(o *options) { o.chunks = append(o.chunks, chunks...) }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMaskProgress reports progress of the iterative mean mask.
func WithMaskProgress(fn func(done, total int)) Option {
	return func(o *options) { o.progress = fn }
}

// Pipeline is an assembled reduction graph.
type Pipeline struct {
	cfg     *Config
	rt      *settings.Runtime
	graph   *stream.Graph
	ns      *link.Namespace
	gate    *Gate
	cache   *binning.Cache
	chunks  []string
	calib   *geometry.Params
	metrics *observability.Metrics
	log     *logger.Logger

	mu      sync.RWMutex
	running bool
	stopped bool
}

var _ component.Component = (*Pipeline)(nil)

// New assembles the pipeline named by cfg.Pipeline. rt may be nil, in which
// case it is built from cfg. Wiring and calibration-discovery failures are
// returned here, before any frame is processed.
func New(cfg *Config, rt *settings.Runtime, opts ...Option) (*Pipeline, error) {
	o := options{
		fs:          afero.NewOsFs(),
		loader:      geometry.FlatLoader,
		transformer: pdf.Noop{},
		log:         logger.Get("reduction"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rt == nil {
		var err error
		if rt, err = cfg.NewRuntime(); err != nil {
			return nil, err
		}
	}

	p := &Pipeline{cfg: cfg, rt: rt, metrics: o.metrics, log: o.log}

	if cfg.CalibrationDir != "" {
		params, err := geometry.LoadCalibration(o.fs, cfg.CalibrationDir)
		if err != nil {
			return nil, err
		}
		p.calib = &params
	}

	engineOpts := []mask.EngineOption{mask.WithWorkers(cfg.Workers), mask.WithLogger(o.log.WithComponent("mask"))}
	if o.metrics != nil {
		engineOpts = append(engineOpts, mask.WithMetrics(o.metrics))
	}
	if o.progress != nil {
		engineOpts = append(engineOpts, mask.WithProgress(o.progress))
	}
	p.gate = NewGate(rt, mask.NewEngine(engineOpts...))
	p.cache = binning.NewCache(cfg.PartitionCache)

	middlewares := []pdf.Middleware{pdf.WithLogging(o.log.WithComponent("pdf")), pdf.WithTracing(cfg.Name)}
	if o.metrics != nil {
		middlewares = append(middlewares, pdf.WithMetrics(o.metrics))
	}
	transformer := pdf.Chain(middlewares...)(o.transformer)
	set := &chunkSet{
		rt:          rt,
		gate:        p.gate,
		cache:       p.cache,
		loader:      o.loader,
		calibrator:  o.calibrator,
		transformer: transformer,
		factor:      cfg.PolarizationFactor,
		log:         o.log,
	}
	registry := link.NewRegistry()
	registry.Register(set.all()...)
	registry.Register(o.chunks...)

	var loaders link.Chain
	if o.definitions != nil {
		loaders = append(loaders, o.definitions)
	}
	if cfg.DefinitionsDir != "" {
		loaders = append(loaders, link.NewFSLoader(o.fs, cfg.DefinitionsDir))
	}
	loaders = append(loaders, link.NewFSLoader(Definitions(), DefinitionsDir))

	def, err := loaders.Load(cfg.Pipeline)
	if err != nil {
		return nil, err
	}
	chunks, err := link.Resolve(def, registry, loaders)
	if err != nil {
		return nil, err
	}

	hooks := o.hooks
	if o.metrics != nil {
		hooks = append(hooks, stream.MetricsHook{Metrics: o.metrics})
	}
	p.graph = stream.NewGraph(stream.WithName(def.Name), stream.WithHooks(hooks...))
	assembler := link.NewAssembler(link.WithLogger(o.log.WithComponent("link"))).Add(chunks...)
	if p.chunks, err = assembler.Order(); err != nil {
		return nil, err
	}
	if p.ns, err = assembler.Assemble(context.Background(), p.graph); err != nil {
		return nil, err
	}
	return p, nil
}

// Name implements component.Component.
func (p *Pipeline) Name() string { return "reduction" }

// Start implements component.Component.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return errors.ServiceUnavailable("reduction")
	}
	p.running = true
	p.log.WithContext(ctx).Info("pipeline started", logger.Fields(
		"pipeline", p.graph.Name(),
		logger.FieldChunk, p.chunks,
		logger.FieldMaskMode, string(p.rt.MaskMode()),
	))
	return nil
}

// Stop implements component.Component. It tears the graph down; a stopped
// pipeline cannot be restarted.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.graph.Destroy()
	p.running, p.stopped = false, true
	p.log.WithContext(ctx).Info("pipeline stopped")
	return nil
}

// Health implements component.Component.
func (p *Pipeline) Health(_ context.Context) component.Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := component.Health{Name: p.Name(), Status: component.StatusHealthy}
	switch {
	case p.stopped:
		h.Status, h.Message = component.StatusUnhealthy, "stopped"
	case !p.running:
		h.Status, h.Message = component.StatusDegraded, "not started"
	}
	return h
}

// Namespace returns the assembled ports.
func (p *Pipeline) Namespace() *link.Namespace { return p.ns }

// Runtime returns the live settings the gates read.
func (p *Pipeline) Runtime() *settings.Runtime { return p.rt }

// Chunks returns the chunk names in build order.
func (p *Pipeline) Chunks() []string { return append([]string(nil), p.chunks...) }

// Gate returns the masking gate.
func (p *Pipeline) Gate() *Gate { return p.gate }

// PartitionCache returns the partition cache.
func (p *Pipeline) PartitionCache() *binning.Cache { return p.cache }

// Emit pushes v into the pipeline's input port and runs the cascade.
func Emit[T any](ctx context.Context, p *Pipeline, port link.Port[T], v T) error {
	s, err := link.Lookup(p.ns, port)
	if err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.RecordFrame(ctx, port.Name)
	}
	return s.Emit(ctx, v)
}

// Series describes an acquisition. Zero fields are not emitted.
type Series struct {
	ID string
	// Geometry is the stored calibration of the series. Nil falls back to
	// the file found in Config.CalibrationDir.
	Geometry    *geometry.Params
	Wavelength  float64
	Calibrant   string
	Detector    string
	Composition string
	// Calibration marks the frames of the series as calibrant frames.
	Calibration     bool
	ForegroundDark  *frame.Frame
	Background      *frame.Frame
	BackgroundDark  *frame.Frame
	BackgroundScale float64
}

// BeginSeries emits start and the series metadata. The background is
// emitted after its dark and scale, and geometry goes last so it sees the
// calibration flag of this series.
func (p *Pipeline) BeginSeries(ctx context.Context, s Series) error {
	steps := []func() error{
		func() error { return Emit(ctx, p, StartPort, Start{Series: s.ID}) },
	}
	add := func(ok bool, fn func() error) {
		if ok {
			steps = append(steps, fn)
		}
	}
	add(s.Wavelength > 0, func() error { return Emit(ctx, p, Wavelength, s.Wavelength) })
	add(s.Calibrant != "", func() error { return Emit(ctx, p, Calibrant, s.Calibrant) })
	add(s.Detector != "", func() error { return Emit(ctx, p, Detector, s.Detector) })
	add(s.Composition != "", func() error { return Emit(ctx, p, Composition, s.Composition) })
	add(s.ForegroundDark != nil, func() error { return Emit(ctx, p, RawForegroundDark, s.ForegroundDark) })
	add(s.BackgroundScale != 0, func() error { return Emit(ctx, p, BackgroundScale, s.BackgroundScale) })
	add(s.BackgroundDark != nil, func() error { return Emit(ctx, p, RawBackgroundDark, s.BackgroundDark) })
	add(s.Background != nil || s.BackgroundDark != nil || s.BackgroundScale != 0, func() error {
		bg := s.Background
		if bg == nil {
			bg = frame.Scalar(0)
		}
		return Emit(ctx, p, RawBackground, bg)
	})
	add(true, func() error { return Emit(ctx, p, IsCalibration, s.Calibration) })

	params := s.Geometry
	if params == nil {
		params = p.calib
	}
	add(params != nil, func() error { return Emit(ctx, p, GeometryInput, *params) })

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	p.log.WithContext(ctx).Debug("series started", logger.Fields("series", s.ID, "calibration", s.Calibration))
	return nil
}

// Exposure is one detector frame.
type Exposure struct {
	Counter  int
	Image    *frame.Frame
	Filename string
}

// Feed emits the counter, the file name and the frame, in that order.
func (p *Pipeline) Feed(ctx context.Context, e Exposure) error {
	if e.Image == nil {
		return errors.InvalidInput("image", "exposure has no frame")
	}
	ctx = logger.ContextWithFrame(ctx, e.Counter)
	if err := Emit(ctx, p, ImageCounter, e.Counter); err != nil {
		return err
	}
	if e.Filename != "" {
		if err := Emit(ctx, p, Filename, e.Filename); err != nil {
			return err
		}
	}
	return Emit(ctx, p, RawForeground, e.Image)
}
