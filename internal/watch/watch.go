// Package watch monitors a directory for new or updated transcript files and
// corrects them as they arrive. Editors and STT exporters tend to emit
// several write events per file, so events are debounced per path before the
// correction runs.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hokomura/kousei/internal/corrector"
)

// correctedSuffix mirrors the batch output naming so watch results are
// interchangeable with batch results.
const correctedSuffix = "_corrected"

// Watcher corrects transcripts dropped into a directory.
type Watcher struct {
	orchestrator *corrector.Orchestrator
	inputDir     string
	outputDir    string
	debounce     time.Duration

	fs *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// Option is a functional option for [New].
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before it is corrected.
// The default is 500ms.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over inputDir. Corrected files are written to
// outputDir (inputDir + "_corrected" when empty).
func New(o *corrector.Orchestrator, inputDir, outputDir string, opts ...Option) (*Watcher, error) {
	if outputDir == "" {
		outputDir = strings.TrimRight(inputDir, string(filepath.Separator)) + correctedSuffix
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("watch: create output dir %q: %w", outputDir, err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := fs.Add(inputDir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch: watch %q: %w", inputDir, err)
	}

	w := &Watcher{
		orchestrator: o,
		inputDir:     inputDir,
		outputDir:    outputDir,
		debounce:     500 * time.Millisecond,
		fs:           fs,
		timers:       map[string]*time.Timer{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	slog.Info("watching for transcripts",
		"input_dir", w.inputDir,
		"output_dir", w.outputDir)

	for {
		select {
		case <-ctx.Done():
			w.cancelTimers()
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !w.wantFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

// wantFile reports whether path is a transcript we should correct.
func (w *Watcher) wantFile(path string) bool {
	if filepath.Ext(path) != ".txt" {
		return false
	}
	base := strings.TrimSuffix(filepath.Base(path), ".txt")
	return !strings.HasSuffix(base, correctedSuffix)
}

// schedule (re)starts the debounce timer for path. Each new event pushes the
// correction further out until the file stays quiet.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.correctFile(ctx, path)
	})
}

// cancelTimers stops all pending debounce timers.
func (w *Watcher) cancelTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}

// correctFile corrects one transcript and writes the result. Failures are
// logged; the watcher keeps running.
func (w *Watcher) correctFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("cannot read transcript", "file", path, "error", err)
		return
	}

	rendered, segments, err := w.orchestrator.CorrectTranscript(ctx, string(data))
	if err != nil {
		slog.Error("correction failed", "file", path, "error", err)
		return
	}

	base := strings.TrimSuffix(filepath.Base(path), ".txt")
	outPath := filepath.Join(w.outputDir, base+correctedSuffix+".txt")
	if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
		slog.Error("cannot write corrected transcript", "file", outPath, "error", err)
		return
	}

	slog.Info("transcript corrected",
		"input", path,
		"output", outPath,
		"segments", len(segments))
}
