package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the Manager's configuration whenever the active config
// file changes on disk, notifying subscribers afterward so callers (the
// pool, the route table) can rebuild themselves against the new document.
type Watcher struct {
	manager  *Manager
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onReload func(*Config)
	done     chan struct{}
}

// NewWatcher constructs a Watcher for manager's active config path.
// onReload is invoked with the freshly loaded config after every write
// event; it may be nil if the caller only wants Manager.Get to stay fresh.
func NewWatcher(manager *Manager, logger *slog.Logger, onReload func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(manager.GetPath()); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		manager:  manager,
		watcher:  fw,
		logger:   logger,
		onReload: onReload,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the watch loop in the background until Stop is called.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}

				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				cfg, err := w.manager.Load()
				if err != nil {
					w.logger.Error("config reload failed", "error", err)
					continue
				}

				w.logger.Info("config reloaded", "path", w.manager.GetPath())

				if w.onReload != nil {
					w.onReload(cfg)
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}

				w.logger.Error("config watch error", "error", err)

			case <-w.done:
				return
			}
		}
	}()
}

// Stop ends the watch loop and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}
