package conf

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/scanline/dsnscan/internal/logger"
)

// Watch reloads the configuration file behind v into store whenever it
// changes. Invalid files are logged and the previous snapshot stays active.
// onChange, when not nil, receives each newly installed snapshot.
func Watch(v *viper.Viper, store *Store, onChange func(*Settings)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		reload(v, store, e, onChange)
	})
	v.WatchConfig()
}

func reload(v *viper.Viper, store *Store, e fsnotify.Event, onChange func(*Settings)) {
	log := GetLogger().With(logger.String("path", e.Name), logger.String("op", e.Op.String()))

	next, err := decode(v)
	if err != nil {
		log.Warn("configuration reload rejected, keeping previous settings", logger.Error(err))
		return
	}

	store.Swap(next)
	current := store.Load()
	log.Info("configuration reloaded",
		logger.String("sensitivity", string(current.OCR.SensitivityMode)),
		logger.Int64("version", int64(store.Version()))) //nolint:gosec // version never exceeds int64

	if onChange != nil {
		onChange(current)
	}
}
