package geometry

import (
	"context"
	"math"
	"testing"

	"github.com/spf13/afero"

	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/frame"
)

func testParams() Params {
	return Params{
		Distance:   0.2,
		Poni1:      0.001,
		Poni2:      0.001,
		PixelSize1: 0.0002,
		PixelSize2: 0.0002,
		Wavelength: 1.8e-11,
		Detector:   "Perkin",
	}
}

func TestNewFlat_Validates(t *testing.T) {
	p := testParams()
	p.Wavelength = 0
	_, err := NewFlat(p)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestFlat_Maps(t *testing.T) {
	g, err := NewFlat(testParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := frame.Shape{Rows: 10, Cols: 10}

	r := g.RadialDistanceMap(s)
	q := g.MomentumTransferMap(s)
	dq := g.MomentumTransferResolutionMap(s)
	if r.Shape != s || q.Shape != s || dq.Shape != s {
		t.Fatal("maps must match the requested shape")
	}

	// The beam centre sits on the corner shared by pixels (4,4),(4,5),(5,4),(5,5).
	if math.Abs(r.At(4, 4)-r.At(5, 5)) > 1e-15 {
		t.Fatalf("expected symmetric radii, got %g and %g", r.At(4, 4), r.At(5, 5))
	}
	if !(q.At(0, 0) > q.At(4, 4)) {
		t.Fatal("q must grow away from the beam centre")
	}
	for i, v := range dq.Pix {
		if v <= 0 {
			t.Fatalf("pixel %d: expected positive resolution, got %g", i, v)
		}
	}
}

func TestFlat_Polarization(t *testing.T) {
	g, _ := NewFlat(testParams())
	s := frame.Shape{Rows: 10, Cols: 10}
	p := g.PolarizationFactorMap(s, 0)
	for _, v := range p.Pix {
		if v <= 0.5 || v > 1 {
			t.Fatalf("unpolarized factor must be in (0.5, 1], got %g", v)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a, b := testParams(), testParams()
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("equal params must share a fingerprint")
	}
	b.Distance = 0.21
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("changed distance must change the fingerprint")
	}
}

func TestQToTwoTheta(t *testing.T) {
	lambda := 1e-10
	q := []float64{0, 4 * math.Pi * math.Sin(math.Pi/12), 100}
	tth := QToTwoTheta(q, lambda)
	if tth[0] != 0 || math.Abs(tth[1]-30) > 1e-9 || tth[2] != 0 {
		t.Fatalf("unexpected two-theta %v", tth)
	}
}

func TestParamsFromMap(t *testing.T) {
	p, err := ParamsFromMap(map[string]any{
		"dist": "0.2", "pixel1": 0.0002, "pixel2": "2e-4", "wavelength": 1.8e-11,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Distance != 0.2 || p.PixelSize2 != 0.0002 {
		t.Fatalf("unexpected params %+v", p)
	}
}

const poniV2 = `# Nota: C-Order, 1 refers to the Y axis, 2 to the X axis
poni_version: 2
Detector: Perkin
Detector_config: {"pixel1": 0.0002, "pixel2": 0.0002, "max_shape": [2048, 2048]}
Distance: 0.2041
Poni1: 0.2043
Poni2: 0.2048
Rot1: 0.001
Rot2: -0.002
Rot3: 0.0
Wavelength: 1.8333e-11
`

const poniV1 = `PixelSize1: 0.0002
PixelSize2: 0.0002
Distance: 0.3
Poni1: 0.1
Poni2: 0.1
Wavelength: 1.8e-11
`

func TestReadPoni(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/cal/v2.poni", []byte(poniV2), 0o644)
	_ = afero.WriteFile(fs, "/old/v1.poni", []byte(poniV1), 0o644)

	p, err := ReadPoni(fs, "/cal/v2.poni")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Distance != 0.2041 || p.PixelSize1 != 0.0002 || p.Detector != "Perkin" || p.Rot2 != -0.002 {
		t.Fatalf("unexpected params %+v", p)
	}

	p, err = ReadPoni(fs, "/old/v1.poni")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Distance != 0.3 || p.PixelSize2 != 0.0002 {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestFindCalibration(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/empty", 0o755)
	_ = afero.WriteFile(fs, "/one/a.poni", []byte(poniV1), 0o644)
	_ = afero.WriteFile(fs, "/one/notes.txt", []byte("x"), 0o644)
	_ = afero.WriteFile(fs, "/two/a.poni", []byte(poniV1), 0o644)
	_ = afero.WriteFile(fs, "/two/b.poni", []byte(poniV1), 0o644)

	tests := []struct {
		dir     string
		want    string
		wantErr bool
	}{
		{dir: "/empty", wantErr: true},
		{dir: "/one", want: "/one/a.poni"},
		{dir: "/two", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			got, err := FindCalibration(fs, tt.dir)
			if tt.wantErr {
				appErr, ok := errors.AsAppError(err)
				if !ok || appErr.Code != errors.ErrCodeConfiguration {
					t.Fatalf("expected CONFIGURATION error, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}

	if _, err := LoadCalibration(fs, "/one"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoaderAndCalibratorAdapters(t *testing.T) {
	g, err := FlatLoader.Load(context.Background(), testParams())
	if err != nil || g.Fingerprint() != testParams().Fingerprint() {
		t.Fatalf("unexpected loader result %v, %v", g, err)
	}
	var seen CalibrationRequest
	cal := CalibratorFunc(func(_ context.Context, req CalibrationRequest) (Geometry, error) {
		seen = req
		return g, nil
	})
	if _, err := cal.Calibrate(context.Background(), CalibrationRequest{Calibrant: "Ni"}); err != nil || seen.Calibrant != "Ni" {
		t.Fatalf("calibrator not invoked: %v", err)
	}
}
