package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kbukum/xpdflow/logger"
)

// Watch decodes the file at path into a T, then re-decodes it on every
// filesystem change and passes the fresh value to onChange. Decode failures
// after the first load are logged and skipped.
func Watch[T any](path string, onChange func(cfg *T, event fsnotify.Event)) (*T, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var initial T
	if err := v.Unmarshal(&initial); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
	}

	log := logger.Get("config")
	v.OnConfigChange(func(e fsnotify.Event) {
		var next T
		if err := v.Unmarshal(&next); err != nil {
			log.Warn("ignoring invalid config change", logger.Fields("file", e.Name, logger.FieldError, err.Error()))
			return
		}
		log.Info("config changed", logger.Fields("file", e.Name, "op", e.Op.String()))
		onChange(&next, e)
	})
	v.WatchConfig()

	return &initial, nil
}
