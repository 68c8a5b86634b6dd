package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads the settings file whenever it is written or replaced and
// hands the validated result to onChange. Invalid files are logged and
// skipped. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(Settings), log zerolog.Logger) error {
	return WatchFile(ctx, path, func() error {
		s, err := LoadSettings(path)
		if err != nil {
			return err
		}
		onChange(s)
		return nil
	}, log)
}

// WatchFile calls reload after path is written, created or renamed over.
// Bursts of events are debounced. A reload error is logged and the previous
// state kept. WatchFile blocks until ctx is cancelled.
func WatchFile(ctx context.Context, path string, reload func() error, log zerolog.Logger) error {
	if path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory so editors that rename-and-replace are still seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	target := filepath.Clean(path)
	log = log.With().Str("path", path).Logger()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				debounce = time.After(200 * time.Millisecond)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("file watcher error")
		case <-debounce:
			debounce = nil
			if err := reload(); err != nil {
				log.Warn().Err(err).Msg("reload rejected")
				continue
			}
			log.Info().Msg("file reloaded")
		}
	}
}
