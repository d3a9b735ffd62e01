package mask

import (
	"github.com/kbukum/xpdflow/validation"
)

// Method selects the outlier algorithm.
type Method string

const (
	MethodMedian Method = "median"
	MethodMean   Method = "mean"
)

// Options configures mask composition. A zero Edge disables the margin, nil
// thresholds are not applied and a zero Alpha disables outlier clipping.
type Options struct {
	Edge           int      `mapstructure:"edge" yaml:"edge" json:"edge" validate:"gte=0"`
	LowerThreshold *float64 `mapstructure:"lower_thresh" yaml:"lower_thresh" json:"lower_thresh"`
	UpperThreshold *float64 `mapstructure:"upper_thresh" yaml:"upper_thresh" json:"upper_thresh"`
	Alpha          float64  `mapstructure:"alpha" yaml:"alpha" json:"alpha" validate:"gte=0"`
	Method         Method   `mapstructure:"auto_type" yaml:"auto_type" json:"auto_type" validate:"oneof=median mean"`
}

// DefaultOptions returns a 30 pixel margin, alpha 3 and median clipping.
func DefaultOptions() Options {
	return Options{Edge: 30, Alpha: 3, Method: MethodMedian}
}

// Validate checks field ranges and that the thresholds do not cross.
func (o Options) Validate() error {
	if err := validation.Validate(o); err != nil {
		return err
	}
	if o.LowerThreshold != nil && o.UpperThreshold != nil {
		return validation.New().Less("lower_thresh", *o.LowerThreshold, *o.UpperThreshold).Validate()
	}
	return nil
}

// Clone returns a copy that shares no threshold pointers with o.
func (o Options) Clone() Options {
	c := o
	if o.LowerThreshold != nil {
		v := *o.LowerThreshold
		c.LowerThreshold = &v
	}
	if o.UpperThreshold != nil {
		v := *o.UpperThreshold
		c.UpperThreshold = &v
	}
	return c
}

// Float returns a pointer to v for threshold fields.
func Float(v float64) *float64 { return &v }
