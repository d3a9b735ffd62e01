// Package validation checks configuration and settings structs.
//
// Struct tags cover single-field rules; the programmatic Validator covers
// cross-field rules such as lower_thresh < upper_thresh. Both produce an
// *errors.AppError with per-field details.
//
//	type Options struct {
//	    Edge  int      `mapstructure:"edge" validate:"gte=0"`
//	    Alpha *float64 `mapstructure:"alpha" validate:"omitempty,gt=0"`
//	}
//	err := validation.Validate(opts)
package validation
