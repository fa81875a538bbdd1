package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const DefaultDebounce = 200 * time.Millisecond

// Watch calls onChange after the config file changes and any of keys differs
// from its previous value. Bursts of writes within debounce collapse into one
// call. With no keys every setting is compared.
func Watch(v *viper.Viper, log *zap.Logger, debounce time.Duration, onChange func(*viper.Viper), keys ...string) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	var (
		mu    sync.Mutex
		last  = snapshot(v, keys)
		timer *time.Timer
	)
	fire := func() {
		log.Info("config changed", zap.Strings("keys", keys))
		onChange(v)
	}

	v.OnConfigChange(func(ev fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		next := snapshot(v, keys)
		if next == last {
			return
		}
		last = next
		log.Debug("config file event", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, fire)
	})
	v.WatchConfig()
}

func snapshot(v *viper.Viper, keys []string) string {
	if len(keys) == 0 {
		return fmt.Sprintf("%v", v.AllSettings())
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, fmt.Sprintf("%s=%v", key, v.Get(key)))
	}
	return strings.Join(out, "|")
}
