package geometry

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/validation"
)

// Params describes a detector position in pyFAI conventions. Lengths are in
// metres, angles in radians.
type Params struct {
	Distance   float64 `mapstructure:"dist" yaml:"dist" json:"dist" validate:"gt=0"`
	Poni1      float64 `mapstructure:"poni1" yaml:"poni1" json:"poni1"`
	Poni2      float64 `mapstructure:"poni2" yaml:"poni2" json:"poni2"`
	Rot1       float64 `mapstructure:"rot1" yaml:"rot1" json:"rot1"`
	Rot2       float64 `mapstructure:"rot2" yaml:"rot2" json:"rot2"`
	Rot3       float64 `mapstructure:"rot3" yaml:"rot3" json:"rot3"`
	PixelSize1 float64 `mapstructure:"pixel1" yaml:"pixel1" json:"pixel1" validate:"gt=0"`
	PixelSize2 float64 `mapstructure:"pixel2" yaml:"pixel2" json:"pixel2" validate:"gt=0"`
	Wavelength float64 `mapstructure:"wavelength" yaml:"wavelength" json:"wavelength" validate:"gt=0"`
	Detector   string  `mapstructure:"detector" yaml:"detector" json:"detector"`
}

// Validate checks that the parameters describe a usable detector.
func (p Params) Validate() error {
	return validation.Validate(p)
}

// Fingerprint hashes every numeric parameter. Two Params with the same
// fingerprint produce identical pixel maps.
func (p Params) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, v := range []float64{p.Distance, p.Poni1, p.Poni2, p.Rot1, p.Rot2, p.Rot3, p.PixelSize1, p.PixelSize2, p.Wavelength} {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	_, _ = h.WriteString(p.Detector)
	return h.Sum64()
}

// ParamsFromMap decodes loosely typed geometry input, such as a settings
// payload or a parsed .poni file, and validates it.
func ParamsFromMap(m map[string]any) (Params, error) {
	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return Params{}, errors.Internal(err)
	}
	if err := dec.Decode(m); err != nil {
		return Params{}, errors.InvalidInput("geometry", err.Error())
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
