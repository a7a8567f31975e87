package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor produces for one save.
const reloadDelay = 100 * time.Millisecond

// Watch monitors the agent config file and calls onChange with the newly
// loaded Config after each save. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so atomic
// saves (write to temp, rename over) are seen. A reload that fails to parse
// or validate is logged and skipped; onChange is not called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", abs)

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDelay)

		case <-timer.C:
			cfg, err := Load(abs)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", abs, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", abs)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// RestartRequired lists the settings that differ between old and updated and
// only take effect when the agent restarts: the snapshot source, its
// settings, the server endpoint and the threshold table.
func RestartRequired(old, updated *Config) []string {
	a, b := old.Agent, updated.Agent
	var changed []string
	if a.Source != b.Source {
		changed = append(changed, "source")
	}
	if a.ServerEndpoint != b.ServerEndpoint {
		changed = append(changed, "server_endpoint")
	}
	if a.BufferSize != b.BufferSize {
		changed = append(changed, "buffer_size")
	}
	if a.Interval != b.Interval {
		changed = append(changed, "interval")
	}
	if !reflect.DeepEqual(a.Synthetic, b.Synthetic) {
		changed = append(changed, "synthetic")
	}
	if !reflect.DeepEqual(a.Cabinets, b.Cabinets) {
		changed = append(changed, "cabinets")
	}
	if !reflect.DeepEqual(a.Thresholds, b.Thresholds) {
		changed = append(changed, "thresholds")
	}
	return changed
}
