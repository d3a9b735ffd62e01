// Package settings holds the runtime configuration that gating nodes read
// while frames flow: the masking mode, mask options, the calibration flag
// and PDF overrides.
//
// A Runtime is injected into the pipeline that reads it. Readers take a
// consistent Snapshot at dispatch time, so an update becomes visible on the
// next frame without rebuilding the graph. Two pipelines built with two
// Runtimes never share state.
package settings

import (
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/mask"
	"github.com/kbukum/xpdflow/pdf"
)

// MaskMode is the masking frequency.
type MaskMode string

const (
	// ModeAuto computes a fresh outlier mask for every frame.
	ModeAuto MaskMode = "auto"
	// ModeFirst computes the mask on the first frame of a series and reuses it.
	ModeFirst MaskMode = "first"
	// ModeNone skips outlier masking and keeps every pixel.
	ModeNone MaskMode = "none"
)

// ParseMaskMode validates a mode name.
func ParseMaskMode(s string) (MaskMode, error) {
	switch m := MaskMode(s); m {
	case ModeAuto, ModeFirst, ModeNone:
		return m, nil
	}
	return "", errors.InvalidInput("mask_mode", "must be one of: auto first none")
}

// Snapshot is a consistent copy of the runtime state.
type Snapshot struct {
	MaskMode    MaskMode       `json:"mask_mode"`
	Mask        mask.Options   `json:"mask"`
	Calibration bool           `json:"calibration"`
	PDF         map[string]any `json:"pdf,omitempty"`
	// Generation increases whenever the mask options change.
	Generation uint64 `json:"generation"`
	// Resets increases on every ResetMask call.
	Resets uint64 `json:"resets"`
	// Prior is the starting mask installed with the same Generation, or nil.
	Prior *frame.Mask `json:"-"`
}

// Initial seeds a Runtime.
type Initial struct {
	MaskMode    MaskMode
	Mask        mask.Options
	Calibration bool
	PDF         map[string]any
}

// Runtime is the live configuration shared by gating nodes.
type Runtime struct {
	mu          sync.RWMutex
	mode        MaskMode
	maskOpts    mask.Options
	calibration bool
	pdf         map[string]any
	prior       *frame.Mask
	generation  uint64
	resets      uint64
	log         *logger.Logger
}

// New creates a Runtime. An empty mode defaults to auto.
func New(init Initial) (*Runtime, error) {
	if init.MaskMode == "" {
		init.MaskMode = ModeAuto
	}
	if _, err := ParseMaskMode(string(init.MaskMode)); err != nil {
		return nil, err
	}
	if err := init.Mask.Validate(); err != nil {
		return nil, err
	}
	r := &Runtime{
		mode:        init.MaskMode,
		maskOpts:    init.Mask.Clone(),
		calibration: init.Calibration,
		pdf:         copyMap(init.PDF),
		log:         logger.Get("settings"),
	}
	return r, nil
}

// Default returns a Runtime in auto mode with default mask options and
// calibration enabled.
func Default() *Runtime {
	r, _ := New(Initial{MaskMode: ModeAuto, Mask: mask.DefaultOptions(), Calibration: true})
	return r
}

// Snapshot returns a copy of the current state.
func (r *Runtime) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		MaskMode:    r.mode,
		Mask:        r.maskOpts.Clone(),
		Calibration: r.calibration,
		PDF:         copyMap(r.pdf),
		Generation:  r.generation,
		Resets:      r.resets,
	}
	if r.prior != nil {
		snap.Prior = r.prior.Clone()
	}
	return snap
}

// MaskMode returns the current masking mode.
func (r *Runtime) MaskMode() MaskMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// SetMaskMode switches the masking mode for subsequent frames.
func (r *Runtime) SetMaskMode(m MaskMode) error {
	if _, err := ParseMaskMode(string(m)); err != nil {
		return err
	}
	r.mu.Lock()
	prev := r.mode
	r.mode = m
	r.mu.Unlock()
	if prev != m {
		r.log.Info("mask mode changed", logger.Fields("from", string(prev), logger.FieldMaskMode, string(m)))
	}
	return nil
}

// MaskOptions returns a copy of the mask options.
func (r *Runtime) MaskOptions() mask.Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maskOpts.Clone()
}

// SetMaskOptions replaces the mask options after validating them.
func (r *Runtime) SetMaskOptions(o mask.Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.storeMaskOptions(o)
	r.mu.Unlock()
	return nil
}

// storeMaskOptions must be called with r.mu held for writing.
func (r *Runtime) storeMaskOptions(o mask.Options) {
	r.maskOpts = o.Clone()
	r.generation++
}

// UpdateMaskOptions applies a partial update such as {"alpha": 2.5}. Keys
// follow the mask option names; unknown keys are rejected and a null
// threshold clears it. The merge runs under the write lock, so concurrent
// patches of different keys all land.
func (r *Runtime) UpdateMaskOptions(patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.maskOpts.Clone()
	for _, k := range []string{"lower_thresh", "upper_thresh"} {
		if v, ok := patch[k]; ok && v == nil {
			if k == "lower_thresh" {
				next.LowerThreshold = nil
			} else {
				next.UpperThreshold = nil
			}
		}
	}
	rest := make(map[string]any, len(patch))
	for k, v := range patch {
		if v != nil {
			rest[k] = v
		}
	}
	if err := decode(rest, &next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	r.storeMaskOptions(next)
	return nil
}

// Calibration reports whether calibration frames trigger on-the-fly
// calibration.
func (r *Runtime) Calibration() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calibration
}

// SetCalibration toggles on-the-fly calibration.
func (r *Runtime) SetCalibration(on bool) {
	r.mu.Lock()
	r.calibration = on
	r.mu.Unlock()
}

// PDFConfig resolves the PDF configuration of kind with the current
// overrides applied.
func (r *Runtime) PDFConfig(kind pdf.Kind) (pdf.Config, error) {
	r.mu.RLock()
	overrides := copyMap(r.pdf)
	r.mu.RUnlock()
	return pdf.ResolveConfig(kind, overrides)
}

// UpdatePDF merges overrides into the PDF settings. Every kind must still
// resolve to a valid configuration.
func (r *Runtime) UpdatePDF(patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := copyMap(r.pdf)
	if next == nil {
		next = map[string]any{}
	}
	for k, v := range patch {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	for _, kind := range pdf.Kinds {
		if _, err := pdf.ResolveConfig(kind, next); err != nil {
			return err
		}
	}
	r.pdf = next
	return nil
}

// ResetMask forces the next frame in first mode to recompute its mask.
func (r *Runtime) ResetMask() {
	r.mu.Lock()
	r.resets++
	r.mu.Unlock()
	r.log.Info("mask reset requested")
}

// PriorMask returns the mask every computed mask starts from, or nil.
func (r *Runtime) PriorMask() *frame.Mask {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.prior == nil {
		return nil
	}
	return r.prior.Clone()
}

// SetPriorMask installs a starting mask, for example a detector bad-pixel
// map. It counts as a mask option change.
func (r *Runtime) SetPriorMask(m *frame.Mask) {
	r.mu.Lock()
	if m != nil {
		m = m.Clone()
	}
	r.prior = m
	r.generation++
	r.mu.Unlock()
}

func decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Internal(err)
	}
	if err := dec.Decode(in); err != nil {
		return errors.InvalidInput("mask", err.Error())
	}
	return nil
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
