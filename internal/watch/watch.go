// Package watch triggers suite re-runs when prompt files change.
package watch

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/promptarena/promptarena/internal/promptdef"
)

const defaultDebounce = 500 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the diagnostic logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(w *Watcher) {
		if w == nil || log == nil {
			return
		}
		w.log = log
	}
}

// WithDebounce overrides the debounce period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if w == nil || d <= 0 {
			return
		}
		w.debounce = d
	}
}

// Watcher watches the directories containing a set of suite files and
// invokes a callback, debounced, whenever a suite file in one of them
// is written or created. Rapid editor save bursts collapse into a
// single callback.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func()
	log      *zap.SugaredLogger
	debounce time.Duration

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// New builds a Watcher over the parent directories of files. The
// callback runs on a timer goroutine; it must be safe to call from
// outside the caller's goroutine.
func New(files []string, onChange func(), opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("watch: nil callback")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		onChange: onChange,
		log:      zap.NewNop().Sugar(),
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	for _, dir := range uniqueDirs(files) {
		if err := w.fsw.Add(dir); err != nil {
			_ = w.fsw.Close()
			return nil, fmt.Errorf("watch: watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Start begins delivering change callbacks until Close is called.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Close stops watching. Pending debounce timers are cancelled.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !promptdef.IsSuiteFile(event.Name) {
				continue
			}
			w.log.Debugw("suite file changed",
				"file", event.Name,
				"op", event.Op.String())
			w.scheduleChange()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnw("watch error", "error", err)
		}
	}
}

// scheduleChange resets the debounce timer so change bursts fire once.
func (w *Watcher) scheduleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.onChange)
}

func uniqueDirs(files []string) []string {
	seen := make(map[string]bool, len(files))
	var dirs []string
	for _, f := range files {
		dir := filepath.Dir(f)
		if dir == "" {
			dir = "."
		}
		if seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}
