package frame

import "github.com/kbukum/xpdflow/errors"

// Mask is a boolean array aligned with a frame; false excludes a pixel.
type Mask struct {
	Shape Shape
	Bits  []bool
}

// Ones returns a mask that keeps every pixel.
func Ones(s Shape) *Mask {
	m := &Mask{Shape: s, Bits: make([]bool, s.Size())}
	for i := range m.Bits {
		m.Bits[i] = true
	}
	return m
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	bits := make([]bool, len(m.Bits))
	copy(bits, m.Bits)
	return &Mask{Shape: m.Shape, Bits: bits}
}

// Kept returns the number of pixels that pass the mask.
func (m *Mask) Kept() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Excluded returns the flat indices of masked-out pixels in ascending order.
func (m *Mask) Excluded() []int {
	var out []int
	for i, b := range m.Bits {
		if !b {
			out = append(out, i)
		}
	}
	return out
}

// Exclude sets the given flat indices to false.
func (m *Mask) Exclude(indices ...int) {
	for _, i := range indices {
		m.Bits[i] = false
	}
}

// Equal reports bit-identical masks of the same shape.
func (m *Mask) Equal(o *Mask) bool {
	if m.Shape != o.Shape || len(m.Bits) != len(o.Bits) {
		return false
	}
	for i := range m.Bits {
		if m.Bits[i] != o.Bits[i] {
			return false
		}
	}
	return true
}

// And intersects m with others in place and returns m.
func (m *Mask) And(others ...*Mask) (*Mask, error) {
	for _, o := range others {
		if o == nil {
			continue
		}
		if o.Shape != m.Shape {
			return nil, errors.ShapeMismatch("mask.And", m.Shape, o.Shape)
		}
		for i, b := range o.Bits {
			m.Bits[i] = m.Bits[i] && b
		}
	}
	return m, nil
}

// FlipUD returns the mask with rows in reverse order.
func (m *Mask) FlipUD() *Mask {
	out := &Mask{Shape: m.Shape, Bits: make([]bool, len(m.Bits))}
	cols := m.Shape.Cols
	for r := 0; r < m.Shape.Rows; r++ {
		copy(out.Bits[(m.Shape.Rows-1-r)*cols:(m.Shape.Rows-r)*cols], m.Bits[r*cols:(r+1)*cols])
	}
	return out
}
