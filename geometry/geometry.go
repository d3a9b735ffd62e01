package geometry

import (
	"context"
	"math"

	"github.com/kbukum/xpdflow/frame"
)

// Geometry maps detector pixels to scattering coordinates.
type Geometry interface {
	// RadialDistanceMap returns each pixel's distance from the beam centre
	// in the detector plane, in metres.
	RadialDistanceMap(s frame.Shape) *frame.Frame
	// MomentumTransferMap returns Q per pixel in inverse angstroms.
	MomentumTransferMap(s frame.Shape) *frame.Frame
	// MomentumTransferResolutionMap returns the largest Q deviation between
	// a pixel centre and its corners.
	MomentumTransferResolutionMap(s frame.Shape) *frame.Frame
	// PolarizationFactorMap returns the per-pixel polarization correction.
	PolarizationFactorMap(s frame.Shape, factor float64) *frame.Frame
	// PixelSize returns the pixel pitch along rows and columns in metres.
	PixelSize() (p1, p2 float64)
	// Wavelength returns the beam wavelength in metres.
	Wavelength() float64
	// Fingerprint identifies the geometry content.
	Fingerprint() uint64
}

// Flat is an untilted flat-panel geometry. Rotations are part of the
// fingerprint but are not applied to the pixel maps.
type Flat struct {
	params Params
}

// NewFlat validates p and returns the geometry it describes.
func NewFlat(p Params) (*Flat, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Flat{params: p}, nil
}

// Params returns the parameters the geometry was built from.
func (g *Flat) Params() Params { return g.params }

func (g *Flat) PixelSize() (float64, float64) { return g.params.PixelSize1, g.params.PixelSize2 }

func (g *Flat) Wavelength() float64 { return g.params.Wavelength }

func (g *Flat) Fingerprint() uint64 { return g.params.Fingerprint() }

// offsets returns the in-plane position of fractional pixel coordinate
// (i, j) relative to the point of normal incidence.
func (g *Flat) offsets(i, j float64) (d1, d2 float64) {
	return i*g.params.PixelSize1 - g.params.Poni1, j*g.params.PixelSize2 - g.params.Poni2
}

func (g *Flat) twoTheta(d1, d2 float64) float64 {
	return math.Atan2(math.Hypot(d1, d2), g.params.Distance)
}

// q converts a scattering angle to inverse angstroms.
func (g *Flat) q(tth float64) float64 {
	return 4 * math.Pi * math.Sin(tth/2) / g.params.Wavelength * 1e-10
}

func (g *Flat) fill(s frame.Shape, fn func(i, j float64) float64) *frame.Frame {
	f := frame.New(s)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			f.Set(r, c, fn(float64(r), float64(c)))
		}
	}
	return f
}

func (g *Flat) RadialDistanceMap(s frame.Shape) *frame.Frame {
	return g.fill(s, func(i, j float64) float64 {
		return math.Hypot(g.offsets(i+0.5, j+0.5))
	})
}

func (g *Flat) MomentumTransferMap(s frame.Shape) *frame.Frame {
	return g.fill(s, func(i, j float64) float64 {
		return g.q(g.twoTheta(g.offsets(i+0.5, j+0.5)))
	})
}

func (g *Flat) MomentumTransferResolutionMap(s frame.Shape) *frame.Frame {
	return g.fill(s, func(i, j float64) float64 {
		centre := g.q(g.twoTheta(g.offsets(i+0.5, j+0.5)))
		var worst float64
		for _, corner := range [4][2]float64{{i, j}, {i + 1, j}, {i, j + 1}, {i + 1, j + 1}} {
			d := math.Abs(g.q(g.twoTheta(g.offsets(corner[0], corner[1]))) - centre)
			worst = math.Max(worst, d)
		}
		return worst
	})
}

// PolarizationFactorMap follows the pyFAI convention
// 0.5 * (1 + cos²2θ - factor * cos2χ * sin²2θ).
func (g *Flat) PolarizationFactorMap(s frame.Shape, factor float64) *frame.Frame {
	return g.fill(s, func(i, j float64) float64 {
		d1, d2 := g.offsets(i+0.5, j+0.5)
		cos2tth := math.Pow(math.Cos(g.twoTheta(d1, d2)), 2)
		chi := math.Atan2(d1, d2)
		return 0.5 * (1 + cos2tth - factor*math.Cos(2*chi)*(1-cos2tth))
	})
}

// QToTwoTheta converts Q values in inverse angstroms to scattering angles
// in degrees for a wavelength in metres. Unreachable Q values map to 0.
func QToTwoTheta(q []float64, wavelength float64) []float64 {
	lambda := wavelength * 1e10
	out := make([]float64, len(q))
	for i, v := range q {
		out[i] = 2 * math.Asin(v*lambda/(4*math.Pi)) * 180 / math.Pi
	}
	return frame.NanToNum(out)
}

// Loader builds a Geometry from stored parameters.
type Loader interface {
	Load(ctx context.Context, p Params) (Geometry, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, p Params) (Geometry, error)

func (f LoaderFunc) Load(ctx context.Context, p Params) (Geometry, error) { return f(ctx, p) }

// FlatLoader loads Params as a Flat geometry.
var FlatLoader Loader = LoaderFunc(func(_ context.Context, p Params) (Geometry, error) {
	return NewFlat(p)
})

// CalibrationRequest carries a calibrant frame and its acquisition metadata.
type CalibrationRequest struct {
	Image      *frame.Frame
	Wavelength float64
	Calibrant  string
	Detector   string
}

// Calibrator derives a Geometry from a calibrant image.
type Calibrator interface {
	Calibrate(ctx context.Context, req CalibrationRequest) (Geometry, error)
}

// CalibratorFunc adapts a function to Calibrator.
type CalibratorFunc func(ctx context.Context, req CalibrationRequest) (Geometry, error)

func (f CalibratorFunc) Calibrate(ctx context.Context, req CalibrationRequest) (Geometry, error) {
	return f(ctx, req)
}
