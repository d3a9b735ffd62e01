package frame

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kbukum/xpdflow/errors"
)

// Shape is the (rows, cols) extent of a detector image.
type Shape struct {
	Rows int `json:"rows" mapstructure:"rows"`
	Cols int `json:"cols" mapstructure:"cols"`
}

// Size returns the pixel count.
func (s Shape) Size() int { return s.Rows * s.Cols }

// IsZero reports whether s is the scalar shape.
func (s Shape) IsZero() bool { return s.Rows == 0 && s.Cols == 0 }

func (s Shape) String() string { return fmt.Sprintf("%dx%d", s.Rows, s.Cols) }

// Frame is a row-major 2-D image.
type Frame struct {
	Shape Shape
	Pix   []float64
}

// New returns a zero-filled frame.
func New(s Shape) *Frame {
	return &Frame{Shape: s, Pix: make([]float64, s.Size())}
}

// Filled returns a frame with every pixel set to v.
func Filled(s Shape, v float64) *Frame {
	f := New(s)
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

// FromRows builds a frame from equal-length rows.
func FromRows(rows [][]float64) (*Frame, error) {
	if len(rows) == 0 {
		return nil, errors.InvalidInput("rows", "frame needs at least one row")
	}
	s := Shape{Rows: len(rows), Cols: len(rows[0])}
	f := New(s)
	for r, row := range rows {
		if len(row) != s.Cols {
			return nil, errors.ShapeMismatch("frame.FromRows", s.Cols, len(row))
		}
		copy(f.Pix[r*s.Cols:], row)
	}
	return f, nil
}

// FromPixels wraps pix as a frame of shape s without copying.
func FromPixels(s Shape, pix []float64) (*Frame, error) {
	if len(pix) != s.Size() {
		return nil, errors.ShapeMismatch("frame.FromPixels", s.Size(), len(pix))
	}
	return &Frame{Shape: s, Pix: pix}, nil
}

// Scalar returns a broadcastable single-value frame.
func Scalar(v float64) *Frame {
	return &Frame{Pix: []float64{v}}
}

// IsScalar reports whether f broadcasts.
func (f *Frame) IsScalar() bool { return f.Shape.IsZero() && len(f.Pix) == 1 }

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	pix := make([]float64, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Shape: f.Shape, Pix: pix}
}

// Index returns the flat pixel index of (r, c).
func (f *Frame) Index(r, c int) int { return r*f.Shape.Cols + c }

// At returns the pixel at (r, c).
func (f *Frame) At(r, c int) float64 { return f.Pix[f.Index(r, c)] }

// Set stores v at (r, c).
func (f *Frame) Set(r, c int, v float64) { f.Pix[f.Index(r, c)] = v }

// broadcast resolves the output shape of a binary operation and expands a
// scalar operand to that shape.
func broadcast(op string, a, b *Frame) (x, y []float64, s Shape, err error) {
	switch {
	case a.IsScalar() && b.IsScalar():
		return a.Pix, b.Pix, Shape{}, nil
	case a.IsScalar():
		return Filled(b.Shape, a.Pix[0]).Pix, b.Pix, b.Shape, nil
	case b.IsScalar():
		return a.Pix, Filled(a.Shape, b.Pix[0]).Pix, a.Shape, nil
	case a.Shape != b.Shape:
		return nil, nil, Shape{}, errors.ShapeMismatch(op, a.Shape, b.Shape)
	}
	return a.Pix, b.Pix, a.Shape, nil
}

// Sub returns a - b with scalar broadcasting.
func Sub(a, b *Frame) (*Frame, error) {
	x, y, s, err := broadcast("frame.Sub", a, b)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	floats.SubTo(out, x, y)
	return &Frame{Shape: s, Pix: out}, nil
}

// Div returns a / b elementwise with IEEE semantics and scalar broadcasting.
func Div(a, b *Frame) (*Frame, error) {
	x, y, s, err := broadcast("frame.Div", a, b)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	floats.DivTo(out, x, y)
	return &Frame{Shape: s, Pix: out}, nil
}

// Scale returns k * f.
func Scale(f *Frame, k float64) *Frame {
	out := make([]float64, len(f.Pix))
	floats.ScaleTo(out, k, f.Pix)
	return &Frame{Shape: f.Shape, Pix: out}
}

// NanToNum replaces NaN and ±Inf in values with 0, in place, and returns
// values.
func NanToNum(values []float64) []float64 {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			values[i] = 0
		}
	}
	return values
}

// Sanitized returns a copy of f with non-finite pixels set to 0.
func (f *Frame) Sanitized() *Frame {
	c := f.Clone()
	NanToNum(c.Pix)
	return c
}
