package reduction

import (
	"github.com/fsnotify/fsnotify"

	"github.com/kbukum/xpdflow/config"
	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/mask"
	"github.com/kbukum/xpdflow/observability"
	"github.com/kbukum/xpdflow/settings"
	"github.com/kbukum/xpdflow/validation"
	"github.com/kbukum/xpdflow/workpool"
)

// ServiceName is the configuration and environment prefix of the service.
const ServiceName = "xpdflow"

// Config is the service configuration.
//
//	name: xpdflow
//	pipeline: full
//	mask_mode: first
//	mask:
//	  edge: 20
//	  alpha: 2.5
//	  auto_type: mean
//	pdf:
//	  qmax: 24
//	telemetry:
//	  tracing: true
//	  endpoint: collector:4318
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// Pipeline names the definition to build.
	Pipeline string `yaml:"pipeline" mapstructure:"pipeline" validate:"required"`
	// DefinitionsDir is searched for definitions before the embedded ones.
	DefinitionsDir string `yaml:"definitions_dir" mapstructure:"definitions_dir"`
	// CalibrationDir holds exactly one .poni file used when a series brings
	// no geometry of its own.
	CalibrationDir string `yaml:"calibration_dir" mapstructure:"calibration_dir"`

	Workers        int `yaml:"workers" mapstructure:"workers" validate:"gte=0"`
	PartitionCache int `yaml:"partition_cache" mapstructure:"partition_cache" validate:"gte=0"`

	MaskMode           string         `yaml:"mask_mode" mapstructure:"mask_mode" validate:"oneof=auto first none"`
	Mask               mask.Options   `yaml:"mask" mapstructure:"mask"`
	Calibration        *bool          `yaml:"calibration" mapstructure:"calibration"`
	PolarizationFactor float64        `yaml:"polarization_factor" mapstructure:"polarization_factor" validate:"gte=-1,lte=1"`
	PDF                map[string]any `yaml:"pdf" mapstructure:"pdf"`

	ControlAddr string `yaml:"control_addr" mapstructure:"control_addr"`

	Telemetry observability.TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// DefaultPolarizationFactor is the polarization factor of a horizontally
// polarized synchrotron beam.
const DefaultPolarizationFactor = 0.99

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Pipeline == "" {
		c.Pipeline = "full"
	}
	if c.Workers == 0 {
		c.Workers = workpool.DefaultWorkers()
	}
	if c.PartitionCache == 0 {
		c.PartitionCache = 4
	}
	if c.MaskMode == "" {
		c.MaskMode = string(settings.ModeAuto)
	}
	if c.Mask == (mask.Options{}) {
		c.Mask = mask.DefaultOptions()
	} else if c.Mask.Method == "" {
		c.Mask.Method = mask.MethodMedian
	}
	if c.Calibration == nil {
		on := true
		c.Calibration = &on
	}
	if c.PolarizationFactor == 0 {
		c.PolarizationFactor = DefaultPolarizationFactor
	}
	c.Telemetry.ApplyDefaults()
}

// Validate checks the configuration after defaults were applied.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return errors.Configuration(err.Error()).WithCause(err)
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Mask.Validate(); err != nil {
		return err
	}
	// Building a runtime checks the PDF overrides against every kind.
	if _, err := c.NewRuntime(); err != nil {
		return err
	}
	return nil
}

// Initial returns the runtime settings the configuration starts with,
// without the PDF overrides.
func (c *Config) Initial() settings.Initial {
	return settings.Initial{
		MaskMode:    settings.MaskMode(c.MaskMode),
		Mask:        c.Mask.Clone(),
		Calibration: c.Calibration == nil || *c.Calibration,
	}
}

// NewRuntime builds the runtime settings of c.
func (c *Config) NewRuntime() (*settings.Runtime, error) {
	rt, err := settings.New(c.Initial())
	if err != nil {
		return nil, err
	}
	if len(c.PDF) > 0 {
		if err := rt.UpdatePDF(c.PDF); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

// LoadConfig reads the service configuration from files and environment,
// applies defaults and validates it.
func LoadConfig(opts ...config.LoaderOption) (*Config, error) {
	var cfg Config
	if err := config.LoadConfig(ServiceName, &cfg, opts...); err != nil {
		return nil, errors.Configuration(err.Error()).WithCause(err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyRuntime copies the runtime-adjustable parts of c into rt. Unchanged
// mask options are left alone so a first-mode mask survives unrelated edits.
func (c *Config) ApplyRuntime(rt *settings.Runtime) error {
	mode, err := settings.ParseMaskMode(c.MaskMode)
	if err != nil {
		return err
	}
	current := rt.Snapshot()
	if mode != current.MaskMode {
		if err := rt.SetMaskMode(mode); err != nil {
			return err
		}
	}
	if !sameOptions(c.Mask, current.Mask) {
		if err := rt.SetMaskOptions(c.Mask); err != nil {
			return err
		}
	}
	calibration := c.Calibration == nil || *c.Calibration
	if calibration != current.Calibration {
		rt.SetCalibration(calibration)
	}

	patch := make(map[string]any, len(c.PDF)+len(current.PDF))
	for k := range current.PDF {
		patch[k] = nil
	}
	for k, v := range c.PDF {
		patch[k] = v
	}
	if len(patch) > 0 {
		return rt.UpdatePDF(patch)
	}
	return nil
}

// WatchRuntime loads the configuration file at path and pushes every later
// edit into rt. Edits that do not validate are logged and skipped.
func WatchRuntime(path string, rt *settings.Runtime) (*Config, error) {
	log := logger.Get("reduction")
	cfg, err := config.Watch(path, func(next *Config, e fsnotify.Event) {
		next.ApplyDefaults()
		if err := next.Validate(); err != nil {
			log.Warn("ignoring invalid settings change", logger.Fields("file", e.Name, logger.FieldError, err.Error()))
			return
		}
		if err := next.ApplyRuntime(rt); err != nil {
			log.Warn("settings change rejected", logger.Fields("file", e.Name, logger.FieldError, err.Error()))
		}
	})
	if err != nil {
		return nil, errors.Configuration(err.Error()).WithCause(err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyRuntime(rt); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sameOptions(a, b mask.Options) bool {
	return a.Edge == b.Edge && a.Alpha == b.Alpha && a.Method == b.Method &&
		sameFloat(a.LowerThreshold, b.LowerThreshold) && sameFloat(a.UpperThreshold, b.UpperThreshold)
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
