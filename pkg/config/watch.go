package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads the config file on change and hands the logger section to apply.
// Only settings that are safe to change at runtime should be acted upon by apply.
func Watch(v *viper.Viper, log *slog.Logger, apply func(LoggerConfig)) {
	if v == nil || apply == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		var lc LoggerConfig
		if err := v.UnmarshalKey("logger", &lc); err != nil {
			log.Error("config reload failed", slog.String("file", e.Name), slog.Any("error", err))
			return
		}

		log.Info("config file changed", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		apply(lc)
	})
	v.WatchConfig()
}
