package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// WatchSettings calls onChange with freshly loaded settings each time the
// file at path is written. A reload that fails validation is passed on with
// its error so the caller can keep the previous settings. The file must
// exist. The watch lasts for the life of the process.
func WatchSettings(path string, onChange func(Settings, error)) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("watch settings: %w", err)
		}
		return err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	v.OnConfigChange(func(ev fsnotify.Event) {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v, path))
	})
	v.WatchConfig()
	return nil
}
