package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LoadAndWatch behaves like Load and additionally re-reads the config file
// whenever it changes on disk. onChange receives only configurations that
// pass Validate. Without a config file nothing is watched.
func LoadAndWatch(onChange func(*Config)) (*Config, error) {
	cfg, v, err := load(viper.New())
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			slog.Warn("config reload failed", "file", e.Name, "error", err)
			return
		}
		next.finalize()
		if err := next.Validate(); err != nil {
			slog.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		slog.Info("config file changed", "file", e.Name)
		onChange(&next)
	})
	v.WatchConfig()
	return cfg, nil
}
