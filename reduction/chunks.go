package reduction

import (
	"context"
	"time"

	"github.com/kbukum/xpdflow/binning"
	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/geometry"
	"github.com/kbukum/xpdflow/link"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/mask"
	"github.com/kbukum/xpdflow/observability"
	"github.com/kbukum/xpdflow/pdf"
	"github.com/kbukum/xpdflow/qoi"
	"github.com/kbukum/xpdflow/settings"
	"github.com/kbukum/xpdflow/stream"
)

// Chunk names.
const (
	ChunkSources      = "sources"
	ChunkImageProcess = "image_process"
	ChunkCalibration  = "calibration"
	ChunkScattering   = "scattering"
	ChunkGenMask      = "gen_mask"
	ChunkIntegration  = "integration"
	ChunkExtras       = "extras"
	ChunkPDF          = "pdf"
	ChunkQOI          = "qoi"
	ChunkArtifacts    = "artifacts"
)

// chunkSet holds what the built-in chunks share.
type chunkSet struct {
	rt          *settings.Runtime
	gate        *Gate
	cache       *binning.Cache
	loader      geometry.Loader
	calibrator  geometry.Calibrator
	transformer pdf.Transformer
	factor      float64
	log         *logger.Logger
}

// all returns the built-in chunks.
func (c *chunkSet) all() []link.Chunk {
	return []link.Chunk{
		c.sources(),
		c.imageProcess(),
		c.calibration(),
		c.scattering(),
		c.genMask(),
		c.integration(),
		c.extras(),
		c.pdf(),
		c.qoi(),
		c.artifacts(),
	}
}

// wiring collects the first port error of a chunk build so that the
// Input and Provide calls read in sequence.
type wiring struct {
	s   *link.Scope
	err error
}

func input[T any](w *wiring, p link.Port[T]) *stream.Stream[T] {
	if w.err != nil {
		return nil
	}
	st, err := link.Input(w.s, p)
	if err != nil {
		w.err = err
	}
	return st
}

func provide[T any](w *wiring, p link.Port[T], st *stream.Stream[T]) {
	if w.err != nil {
		return
	}
	w.err = link.Provide(w.s, p, st.Named(p.Name))
}

func subtract(_ context.Context, p stream.Pair[*frame.Frame, *frame.Frame]) (*frame.Frame, error) {
	return frame.Sub(p.A, p.B)
}

func (c *chunkSet) sources() link.Chunk {
	return link.Chunk{
		Name: ChunkSources,
		Outputs: link.Infos(StartPort, RawForeground, RawForegroundDark, RawBackground, RawBackgroundDark,
			BackgroundScale, Wavelength, Calibrant, Detector, IsCalibration, GeometryInput, ImageCounter,
			Composition, Filename),
		Build: func(s *link.Scope) error {
			g := s.Graph()
			w := &wiring{s: s}

			start := stream.New[Start](g, StartPort.Name)
			fgDark := stream.New[*frame.Frame](g, RawForegroundDark.Name)
			bg := stream.New[*frame.Frame](g, RawBackground.Name)
			bgDark := stream.New[*frame.Frame](g, RawBackgroundDark.Name)
			scale := stream.New[float64](g, BackgroundScale.Name)

			// Seed the passive inputs of the subtraction stage on start. The
			// scale and the background dark must be cached before the
			// background itself arrives.
			one := stream.Map(start, func(context.Context, Start) (float64, error) { return 1, nil })
			if err := stream.Connect(one, scale); err != nil {
				return err
			}
			zero := stream.Map(start, func(context.Context, Start) (*frame.Frame, error) {
				return frame.Scalar(0), nil
			})
			for _, dst := range []*stream.Stream[*frame.Frame]{fgDark, bgDark, bg} {
				if err := stream.Connect(zero, dst); err != nil {
					return err
				}
			}

			provide(w, StartPort, start)
			provide(w, RawForeground, stream.New[*frame.Frame](g, RawForeground.Name))
			provide(w, RawForegroundDark, fgDark)
			provide(w, RawBackground, bg)
			provide(w, RawBackgroundDark, bgDark)
			provide(w, BackgroundScale, scale)
			provide(w, Wavelength, stream.New[float64](g, Wavelength.Name))
			provide(w, Calibrant, stream.New[string](g, Calibrant.Name))
			provide(w, Detector, stream.New[string](g, Detector.Name))
			provide(w, IsCalibration, stream.New[bool](g, IsCalibration.Name))
			provide(w, GeometryInput, stream.New[geometry.Params](g, GeometryInput.Name))
			provide(w, ImageCounter, stream.New[int](g, ImageCounter.Name))
			provide(w, Composition, stream.New[string](g, Composition.Name))
			provide(w, Filename, stream.New[string](g, Filename.Name))
			return w.err
		},
	}
}

func (c *chunkSet) imageProcess() link.Chunk {
	return link.Chunk{
		Name: ChunkImageProcess,
		Inputs: link.Infos(StartPort, RawForeground, RawForegroundDark, RawBackground, RawBackgroundDark,
			BackgroundScale),
		Outputs: link.Infos(DarkCorrectedForeground, DarkCorrectedBackground, BackgroundCorrected,
			ImageShape, FrameStack),
		Build: func(s *link.Scope) error {
			w := &wiring{s: s}
			start := input(w, StartPort)
			fg, fgDark := input(w, RawForeground), input(w, RawForegroundDark)
			bg, bgDark := input(w, RawBackground), input(w, RawBackgroundDark)
			scale := input(w, BackgroundScale)
			if w.err != nil {
				return w.err
			}

			darkFg := stream.Map(stream.Combine(fg, fgDark, stream.OnA), subtract)
			darkBg := stream.Map(stream.Combine(stream.Map(stream.Combine(bg, bgDark, stream.OnA), subtract), scale, stream.OnA),
				func(_ context.Context, p stream.Pair[*frame.Frame, float64]) (*frame.Frame, error) {
					return frame.Scale(p.A, p.B), nil
				})
			corrected := stream.Map(stream.Combine(darkFg, darkBg, stream.OnA), subtract)
			shape := stream.Unique(stream.Map(corrected, func(_ context.Context, f *frame.Frame) (frame.Shape, error) {
				return f.Shape, nil
			}), func(a, b frame.Shape) bool { return a == b })
			stack := stream.Accumulate(darkFg, []*frame.Frame(nil), func(acc []*frame.Frame, f *frame.Frame) ([]*frame.Frame, error) {
				return append(acc[:len(acc):len(acc)], f), nil
			}, start)

			provide(w, DarkCorrectedForeground, darkFg)
			provide(w, DarkCorrectedBackground, darkBg)
			provide(w, BackgroundCorrected, corrected)
			provide(w, ImageShape, shape)
			provide(w, FrameStack, stack)
			return w.err
		},
	}
}

func (c *chunkSet) calibration() link.Chunk {
	return link.Chunk{
		Name: ChunkCalibration,
		Inputs: link.Infos(BackgroundCorrected, ImageShape, IsCalibration, GeometryInput,
			Wavelength, Calibrant, Detector),
		Outputs: link.Infos(Geometry, PartitionOut),
		Build: func(s *link.Scope) error {
			w := &wiring{s: s}
			img, shape := input(w, BackgroundCorrected), input(w, ImageShape)
			isCal, geoIn := input(w, IsCalibration), input(w, GeometryInput)
			wavelength, calibrant, detector := input(w, Wavelength), input(w, Calibrant), input(w, Detector)
			if w.err != nil {
				return w.err
			}

			loaded := stream.Map(
				stream.Filter(stream.Combine(geoIn, isCal, stream.OnA), func(p stream.Pair[geometry.Params, bool]) bool {
					return !p.B
				}),
				func(ctx context.Context, p stream.Pair[geometry.Params, bool]) (geometry.Geometry, error) {
					return c.loader.Load(ctx, p.A)
				})

			geo := stream.Union(loaded)
			if c.calibrator != nil {
				calFrames := stream.Map(
					stream.Filter(stream.Combine(img, isCal, stream.OnA), func(p stream.Pair[*frame.Frame, bool]) bool {
						return p.B
					}),
					func(_ context.Context, p stream.Pair[*frame.Frame, bool]) (*frame.Frame, error) { return p.A, nil })
				requests := stream.Filter(stream.Combine4(calFrames, wavelength, calibrant, detector, stream.OnA),
					func(stream.Quad[*frame.Frame, float64, string, string]) bool { return c.rt.Calibration() })
				geo = stream.Union(loaded, stream.Map(requests, c.calibrate))
			}

			part := stream.Map(stream.Combine(geo, shape, stream.OnAny), c.partition)

			provide(w, Geometry, geo)
			provide(w, PartitionOut, part)
			return w.err
		},
	}
}

func (c *chunkSet) calibrate(ctx context.Context, q stream.Quad[*frame.Frame, float64, string, string]) (geometry.Geometry, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanCalibrate)
	defer span.End()

	start := time.Now()
	geo, err := c.calibrator.Calibrate(ctx, geometry.CalibrationRequest{
		Image:      q.A,
		Wavelength: q.B,
		Calibrant:  q.C,
		Detector:   q.D,
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	c.log.WithContext(ctx).Info("calibrated from frame", logger.Fields(
		"calibrant", q.C,
		"detector", q.D,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return geo, nil
}

func (c *chunkSet) partition(ctx context.Context, p stream.Pair[geometry.Geometry, frame.Shape]) (*binning.Partition, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanPartition)
	defer span.End()

	part, hit, err := c.cache.Get(p.A, p.B)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	observability.SetSpanAttribute(ctx, observability.AttrBins, part.Len())
	observability.SetSpanAttribute(ctx, observability.AttrCacheHit, hit)
	if !hit {
		c.log.WithContext(ctx).Debug("partition built", logger.Fields(
			logger.FieldShape, p.B.String(),
			logger.FieldBins, part.Len(),
		))
	}
	return part, nil
}

func (c *chunkSet) scattering() link.Chunk {
	return link.Chunk{
		Name:    ChunkScattering,
		Inputs:  link.Infos(Geometry, ImageShape, BackgroundCorrected),
		Outputs: link.Infos(Polarization, PolarizationCorrected),
		Build: func(s *link.Scope) error {
			w := &wiring{s: s}
			geo, shape, img := input(w, Geometry), input(w, ImageShape), input(w, BackgroundCorrected)
			if w.err != nil {
				return w.err
			}

			pol := stream.Map(stream.Combine(geo, shape, stream.OnAny),
				func(_ context.Context, p stream.Pair[geometry.Geometry, frame.Shape]) (*frame.Frame, error) {
					return p.A.PolarizationFactorMap(p.B, c.factor), nil
				})
			corrected := stream.Map(stream.Combine(img, pol, stream.OnA),
				func(_ context.Context, p stream.Pair[*frame.Frame, *frame.Frame]) (*frame.Frame, error) {
					return frame.Div(p.A, p.B)
				})

			provide(w, Polarization, pol)
			provide(w, PolarizationCorrected, corrected)
			return w.err
		},
	}
}

type maskInput = stream.Pair[stream.Pair[*frame.Frame, *binning.Partition], int]

func (c *chunkSet) genMask() link.Chunk {
	return link.Chunk{
		Name:    ChunkGenMask,
		Inputs:  link.Infos(PolarizationCorrected, PartitionOut, ImageCounter, StartPort),
		Outputs: link.Infos(Mask),
		Build: func(s *link.Scope) error {
			w := &wiring{s: s}
			img, part := input(w, PolarizationCorrected), input(w, PartitionOut)
			counter, start := input(w, ImageCounter), input(w, StartPort)
			if w.err != nil {
				return w.err
			}

			stream.Sink(start, func(context.Context, Start) error {
				c.gate.Clear()
				return nil
			})
			framed := stream.ZipLatestOr(stream.Combine(img, part, stream.OnA), counter, 0)
			m := stream.Map(framed, func(ctx context.Context, in maskInput) (*frame.Mask, error) {
				return c.gate.Apply(ctx, in.A.A, in.A.B, in.B)
			})

			provide(w, Mask, m)
			return w.err
		},
	}
}

func evaluate(stat binning.Statistic) func(context.Context, ImageBinner) ([]float64, error) {
	return func(_ context.Context, p ImageBinner) ([]float64, error) {
		return p.B.Evaluate(p.A, stat)
	}
}

func (c *chunkSet) integration() link.Chunk {
	return link.Chunk{
		Name:    ChunkIntegration,
		Inputs:  link.Infos(PartitionOut, Mask, Geometry, PolarizationCorrected),
		Outputs: link.Infos(Binner, Q, TwoTheta, ImgBinner, Mean),
		Build: func(s *link.Scope) error {
			w := &wiring{s: s}
			part, m := input(w, PartitionOut), input(w, Mask)
			geo, img := input(w, Geometry), input(w, PolarizationCorrected)
			if w.err != nil {
				return w.err
			}

			binner := stream.Map(stream.Combine(part, m, stream.OnB),
				func(_ context.Context, p stream.Pair[*binning.Partition, *frame.Mask]) (*binning.Binner, error) {
					return p.A.Bind(p.B)
				})
			q := stream.Map(binner, func(_ context.Context, b *binning.Binner) ([]float64, error) {
				return b.BinCenters(), nil
			})
			tth := stream.Map(stream.Combine(q, geo, stream.OnA),
				func(_ context.Context, p stream.Pair[[]float64, geometry.Geometry]) ([]float64, error) {
					return geometry.QToTwoTheta(p.A, p.B.Wavelength()), nil
				})
			imgBinner := stream.Combine(img, binner, stream.OnA)
			mean := stream.Map(imgBinner, evaluate(binning.Mean))

			provide(w, Binner, binner)
			provide(w, Q, q)
			provide(w, TwoTheta, tth)
			provide(w, ImgBinner, imgBinner)
			provide(w, Mean, mean)
			return w.err
		},
	}
}

func (c *chunkSet) extras() link.Chunk {
	return link.Chunk{
		Name:    ChunkExtras,
		Inputs:  link.Infos(ImgBinner, Mask),
		Outputs: link.Infos(Median, Std, ZScore),
		Build: func(s *link.Scope) error {
			w := &wiring{s: s}
			imgBinner, m := input(w, ImgBinner), input(w, Mask)
			if w.err != nil {
				return w.err
			}

			scored := stream.Map(imgBinner, func(_ context.Context, p ImageBinner) (*frame.Frame, error) {
				return p.B.ZScore(p.A)
			})
			z := stream.Map(stream.Combine(scored, m, stream.OnA),
				func(_ context.Context, p stream.Pair[*frame.Frame, *frame.Mask]) (*frame.Frame, error) {
					return mask.Overlay(p.A, p.B, 0)
				})

			provide(w, Median, stream.Map(imgBinner, evaluate(binning.Median)))
			provide(w, Std, stream.Map(imgBinner, evaluate(binning.Std)))
			provide(w, ZScore, z)
			return w.err
		},
	}
}

type profile = stream.Pair[stream.Pair[[]float64, []float64], string]

func (c *chunkSet) pdf() link.Chunk {
	return link.Chunk{
		Name:    ChunkPDF,
		Inputs:  link.Infos(Mean, Q, Composition),
		Outputs: link.Infos(SQ, FQ, PDF),
		Build: func(s *link.Scope) error {
			w := &wiring{s: s}
			mean, q, composition := input(w, Mean), input(w, Q), input(w, Composition)
			if w.err != nil {
				return w.err
			}

			iq := stream.Filter(stream.ZipLatestOr(stream.Combine(mean, q, stream.OnA), composition, ""),
				func(profile) bool { return c.transformer.IsAvailable(context.Background()) })
			for _, out := range []struct {
				kind pdf.Kind
				port link.Port[pdf.Result]
			}{{pdf.KindSQ, SQ}, {pdf.KindFQ, FQ}, {pdf.KindPDF, PDF}} {
				provide(w, out.port, stream.Map(iq, c.transform(out.kind)))
			}
			return w.err
		},
	}
}

func (c *chunkSet) transform(kind pdf.Kind) func(context.Context, profile) (pdf.Result, error) {
	return func(ctx context.Context, p profile) (pdf.Result, error) {
		cfg, err := c.rt.PDFConfig(kind)
		if err != nil {
			return pdf.Result{}, err
		}
		return c.transformer.Transform(ctx, pdf.Request{
			Kind:        kind,
			Q:           p.A.B,
			I:           p.A.A,
			Composition: p.B,
			Config:      cfg,
		})
	}
}

func (c *chunkSet) qoi() link.Chunk {
	return link.Chunk{
		Name:    ChunkQOI,
		Inputs:  link.Infos(Mean, Q, PDF),
		Outputs: link.Infos(MeanPeaks, PDFPeaks),
		Build: func(s *link.Scope) error {
			w := &wiring{s: s}
			mean, q, gr := input(w, Mean), input(w, Q), input(w, PDF)
			if w.err != nil {
				return w.err
			}

			provide(w, MeanPeaks, stream.Map(stream.Combine(mean, q, stream.OnA),
				func(_ context.Context, p stream.Pair[[]float64, []float64]) ([]qoi.Peak, error) {
					return qoi.Peaks(p.B, p.A, qoi.ProfilePeakOrder), nil
				}))
			provide(w, PDFPeaks, stream.Map(gr, func(_ context.Context, r pdf.Result) ([]qoi.Peak, error) {
				return qoi.Peaks(r.X, r.Y, qoi.PDFPeakOrder), nil
			}))
			return w.err
		},
	}
}

func (c *chunkSet) artifacts() link.Chunk {
	return link.Chunk{
		Name:    ChunkArtifacts,
		Inputs:  link.Infos(Filename, Mask),
		Outputs: link.Infos(ArtifactsOut, Fit2DMask),
		Build: func(s *link.Scope) error {
			w := &wiring{s: s}
			filename, m := input(w, Filename), input(w, Mask)
			if w.err != nil {
				return w.err
			}

			provide(w, ArtifactsOut, stream.Map(filename, func(_ context.Context, name string) (Artifacts, error) {
				return ArtifactNames(name), nil
			}))
			provide(w, Fit2DMask, stream.Map(m, func(_ context.Context, m *frame.Mask) (*frame.Mask, error) {
				return m.FlipUD(), nil
			}))
			return w.err
		},
	}
}
