package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/podvault/podvault/internal/syslog"
)

// Watch reloads the config file on write/create/rename and hands the
// result to onChange. It blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*AppConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				syslog.L.Error(err).WithMessage("config reload failed, keeping previous config").Write()
				continue
			}

			syslog.L.Info().WithMessage("configuration reloaded").WithField("path", path).Write()
			onChange(cfg)
		case err := <-watcher.Errors:
			syslog.L.Error(err).WithMessage("config watcher error").Write()
		}
	}
}
