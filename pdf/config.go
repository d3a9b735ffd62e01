package pdf

import (
	"math"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/validation"
)

// Kind selects the transform output.
type Kind string

const (
	KindSQ  Kind = "sq"
	KindFQ  Kind = "fq"
	KindPDF Kind = "pdf"
)

// Kinds lists every transform in pipeline order.
var Kinds = []Kind{KindSQ, KindFQ, KindPDF}

// Config holds transform parameters. Q values are in inverse angstroms and
// r values in angstroms.
type Config struct {
	DataFormat string  `mapstructure:"dataformat" yaml:"dataformat" json:"dataformat" validate:"oneof=QA Qnm twotheta"`
	QMin       float64 `mapstructure:"qmin" yaml:"qmin" json:"qmin" validate:"gte=0"`
	QMax       float64 `mapstructure:"qmax" yaml:"qmax" json:"qmax" validate:"gt=0"`
	QMaxInst   float64 `mapstructure:"qmaxinst" yaml:"qmaxinst" json:"qmaxinst" validate:"gt=0"`
	RMin       float64 `mapstructure:"rmin" yaml:"rmin" json:"rmin" validate:"gte=0"`
	RMax       float64 `mapstructure:"rmax" yaml:"rmax" json:"rmax" validate:"gt=0"`
	RStep      float64 `mapstructure:"rstep" yaml:"rstep" json:"rstep" validate:"gt=0"`
	RPoly      float64 `mapstructure:"rpoly" yaml:"rpoly" json:"rpoly" validate:"gte=0"`
}

// DefaultConfig returns the per-kind defaults: QA data, qmaxinst 28, qmax
// 25 for S(Q) and F(Q), 22 for G(r), and rstep pi/qmax.
func DefaultConfig(kind Kind) Config {
	qmax := 25.0
	if kind == KindPDF {
		qmax = 22
	}
	return Config{
		DataFormat: "QA",
		QMaxInst:   28,
		QMax:       qmax,
		RMax:       30,
		RStep:      math.Pi / qmax,
		RPoly:      0.9,
	}
}

// Validate checks ranges and that qmin < qmax <= qmaxinst.
func (c Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	v := validation.New().
		Less("qmin", c.QMin, c.QMax).
		Less("rmin", c.RMin, c.RMax).
		Custom(c.QMax <= c.QMaxInst, "qmax", "must not exceed qmaxinst")
	return v.Validate()
}

// ResolveConfig overlays overrides onto the defaults of kind. Unknown keys
// are rejected.
func ResolveConfig(kind Kind, overrides map[string]any) (Config, error) {
	cfg := DefaultConfig(kind)
	if len(overrides) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return Config{}, errors.Internal(err)
		}
		if err := dec.Decode(overrides); err != nil {
			return Config{}, errors.InvalidInput("pdf", err.Error())
		}
		if _, ok := overrides["rstep"]; !ok {
			if _, ok := overrides["qmax"]; ok {
				cfg.RStep = math.Pi / cfg.QMax
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
