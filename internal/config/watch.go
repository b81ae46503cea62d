package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceWindow coalesces the write bursts editors and config mounts produce
// into a single reload.
const debounceWindow = 250 * time.Millisecond

// TuningHandler receives the research section after a successful reload.
type TuningHandler func(ResearchConfig)

// Watcher hot-reloads the research tuning section when the config file
// changes. Other sections require a restart; connection endpoints are not
// safe to swap under a running worker.
type Watcher struct {
	path     string
	logger   *zap.Logger
	fswatch  *fsnotify.Watcher
	handlers []TuningHandler

	mu      sync.Mutex
	current ResearchConfig
}

// NewWatcher creates a watcher over the config file the given Config was
// loaded from. Returns an error when the config came from defaults only.
func NewWatcher(cfg *Config, logger *zap.Logger) (*Watcher, error) {
	if cfg.SourcePath() == "" {
		return nil, fmt.Errorf("config has no backing file to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	// watch the directory: editors and k8s configmap mounts replace the
	// file, which drops a watch on the file itself
	if err := fw.Add(filepath.Dir(cfg.SourcePath())); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}
	return &Watcher{
		path:    cfg.SourcePath(),
		logger:  logger,
		fswatch: fw,
		current: cfg.Research,
	}, nil
}

// OnTuningChange registers a handler invoked after each successful reload.
// Must be called before Start.
func (w *Watcher) OnTuningChange(h TuningHandler) {
	w.handlers = append(w.handlers, h)
}

// Tuning returns the most recently loaded research section.
func (w *Watcher) Tuning() ResearchConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Start runs the watch loop until ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.fswatch.Close()

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fswatch.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}
		case err, ok := <-w.fswatch.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", zap.Error(err))
		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous tuning",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.mu.Lock()
	changed := cfg.Research != w.current
	w.current = cfg.Research
	w.mu.Unlock()
	if !changed {
		return
	}

	w.logger.Info("research tuning reloaded",
		zap.Int("max_rounds", cfg.Research.MaxRounds),
		zap.Float64("early_stop_threshold", cfg.Research.EarlyStopThreshold),
		zap.Float64("min_coverage_score", cfg.Research.MinCoverageScore),
	)
	for _, h := range w.handlers {
		h(cfg.Research)
	}
}
