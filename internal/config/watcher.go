package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultPollInterval = 5 * time.Second

// fingerprint identifies one observed state of the config file. The mtime
// is a cheap pre-filter; the content sum decides whether a reload actually
// carries new settings.
type fingerprint struct {
	mtime time.Time
	sum   [sha256.Size]byte
}

// Watcher polls a config file and swaps in a freshly validated [Config]
// whenever the file content changes. Polling, not inotify, so that hot
// reload also works for configs mounted over NFS or into containers where
// change notifications do not propagate.
//
// An invalid edit never replaces a running config: the parse error is
// logged and the previous config stays current until the file is fixed.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu      sync.Mutex
	current *Config
	seen    fingerprint

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once, then keeps polling it in a background
// goroutine until [Watcher.Stop]. The initial load is strict: a missing or
// invalid file fails construction rather than starting a watcher with no
// config to fall back on.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, fp, err := w.reload()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.seen = fp

	go w.run()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop terminates the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if old, cur, changed := w.refresh(); changed && w.onChange != nil {
				w.onChange(old, cur)
			}
		}
	}
}

// refresh re-reads the file when its mtime moved and swaps the current
// config when the content sum differs. It returns the old and new configs
// when a swap happened. The callback is left to the caller so it runs
// outside the lock and may call Current.
func (w *Watcher) refresh() (old, cur *Config, changed bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config file unreadable, keeping current config", "path", w.path, "error", err)
		return nil, nil, false
	}

	w.mu.Lock()
	lastMtime := w.seen.mtime
	w.mu.Unlock()

	if info.ModTime().Equal(lastMtime) {
		return nil, nil, false
	}

	cfg, fp, err := w.reload()
	if err != nil {
		slog.Warn("config reload rejected, keeping current config", "path", w.path, "error", err)
		return nil, nil, false
	}

	w.mu.Lock()
	if fp.sum == w.seen.sum {
		// Touched but identical, remember the new mtime so the next poll
		// skips the read again.
		w.seen.mtime = fp.mtime
		w.mu.Unlock()
		return nil, nil, false
	}
	old = w.current
	w.current = cfg
	w.seen = fp
	w.mu.Unlock()

	slog.Info("correction config reloaded", "path", w.path)
	return old, cfg, true
}

// reload reads, parses, and validates the file in one pass and returns the
// config with the file state it was read from.
func (w *Watcher) reload() (*Config, fingerprint, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fingerprint{}, err
	}

	return cfg, fingerprint{mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
