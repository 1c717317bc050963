package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"streamBot/internal/app/events"
)

const debounceDelay = 200 * time.Millisecond

// Watcher observes the env file and commands.yaml and publishes
// settings:changed with the affected keys. Connection managers blocked in
// Disabled/AuthError/Error resume on that signal.
type Watcher struct {
	bus     *events.Bus
	envFile string
	files   []string

	mu   sync.Mutex
	last *Config
}

func NewWatcher(bus *events.Bus, current *Config) *Watcher {
	files := []string{}
	if current.EnvFile != "" {
		files = append(files, current.EnvFile)
	}
	if current.CommandsFile != "" {
		files = append(files, current.CommandsFile)
	}
	return &Watcher{
		bus:     bus,
		envFile: current.EnvFile,
		files:   files,
		last:    current,
	}
}

// Run watches until the context is done. Run it in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config watch: unavailable", slog.Any("err", err))
		return
	}
	defer fw.Close()

	// Watch parent directories; editors replace files instead of writing
	// them in place, which would silently detach a per-file watch.
	dirs := map[string]struct{}{}
	for _, f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			slog.Warn("config watch: cannot watch dir", slog.String("dir", dir), slog.Any("err", err))
		}
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(ev.Name) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() { w.reload(ev.Name) })
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watch: error", slog.Any("err", err))
		}
	}
}

// Notify publishes a settings-changed signal by hand. The API server uses
// it after an operator updates settings without touching the files.
func (w *Watcher) Notify(keys ...string) {
	w.bus.Publish(events.TopicSettingsChanged, events.SettingsChangedDTO{Keys: keys})
}

func (w *Watcher) relevant(name string) bool {
	clean := filepath.Clean(name)
	for _, f := range w.files {
		if clean == filepath.Clean(f) {
			return true
		}
	}
	return false
}

func (w *Watcher) reload(changed string) {
	if filepath.Clean(changed) != filepath.Clean(w.envFile) {
		// commands.yaml changed; the dispatcher rebuilds at restart, but
		// managers may still care (prefix, denylist are dispatch-only).
		slog.Info("config watch: command settings changed", slog.String("file", changed))
		w.Notify("COMMANDS_FILE")
		return
	}

	cfg, err := Reload(w.envFile)
	if err != nil {
		slog.Warn("config watch: reload failed", slog.Any("err", err))
		return
	}

	w.mu.Lock()
	keys := ChangedKeys(w.last, cfg)
	w.last = cfg
	w.mu.Unlock()

	if len(keys) == 0 {
		return
	}
	slog.Info("config watch: settings changed", slog.Any("keys", keys))
	w.Notify(keys...)
}

// Current returns the most recently loaded snapshot.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
