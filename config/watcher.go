package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/ajkula/sendcoordinator/domain/port/outbound"
)

// ReloadFunc is invoked with the freshly loaded configuration whenever the
// watched file changes and reparses successfully.
type ReloadFunc func(*Config)

// HotReloader watches a single config file and re-runs LoadConfig on every
// write, handing the result to a caller-supplied ReloadFunc. Invalid
// rewrites (e.g. a partial editor save) are logged and ignored — the
// previous configuration stays in effect.
type HotReloader struct {
	path    string
	watcher outbound.FileWatcher
	onLoad  ReloadFunc
	logger  outbound.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewHotReloader wires a FileWatcher to the given config path.
func NewHotReloader(watcher outbound.FileWatcher, path string, onLoad ReloadFunc, logger outbound.Logger) *HotReloader {
	ctx, cancel := context.WithCancel(context.Background())
	return &HotReloader{
		path:   path,
		watcher: watcher,
		onLoad: onLoad,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins watching and processing events in the background.
func (r *HotReloader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	absPath, err := filepath.Abs(r.path)
	if err != nil {
		return err
	}

	if err := r.watcher.Watch(ctx, absPath); err != nil {
		return err
	}

	go r.processEvents(absPath)

	r.running = true
	return nil
}

// Stop cancels event processing and the underlying watcher.
func (r *HotReloader) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}

	r.cancel()
	r.running = false
	return r.watcher.Stop()
}

func (r *HotReloader) processEvents(watchedPath string) {
	var lastReload time.Time

	for {
		select {
		case <-r.ctx.Done():
			return

		case event := <-r.watcher.Events():
			if event.FilePath != watchedPath {
				continue
			}
			// fsnotify already debounces at the FileWatcher layer; this is a
			// belt-and-braces guard against a tight double-fire.
			if time.Since(lastReload) < 200*time.Millisecond {
				continue
			}
			lastReload = time.Now()
			r.reload()

		case err := <-r.watcher.Errors():
			r.logger.Error("config watcher error", "error", err)
		}
	}
}

func (r *HotReloader) reload() {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		r.logger.Warn("config reload failed, keeping previous configuration", "path", r.path, "error", err)
		return
	}
	r.logger.Info("configuration reloaded", "path", r.path)
	r.onLoad(cfg)
}
