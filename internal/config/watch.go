package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher holds the current *Config behind an atomic pointer and reloads it
// whenever the backing file changes. A failed reload logs and keeps serving
// the last-known-good Config — a bad edit to the policy file on disk must
// never tear down a running gateway.
type Watcher struct {
	path string
	cur  atomic.Pointer[Config]
	log  *zap.SugaredLogger
	fsw  *fsnotify.Watcher
}

// NewWatcher performs the initial Load and starts watching path for
// changes. The initial load error is returned as-is (startup failure);
// once running, reload failures are logged rather than propagated.
func NewWatcher(path string, log *zap.SugaredLogger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close() //nolint:errcheck // best-effort close on init failure
		return nil, err
	}

	w := &Watcher{path: path, log: log, fsw: fsw}
	w.cur.Store(cfg)

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded, fully validated Config.
func (w *Watcher) Current() *Config {
	return w.cur.Load()
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warnw("policy config reload failed, keeping previous version", "path", w.path, "error", err)
				continue
			}
			w.cur.Store(cfg)
			w.log.Infow("policy config reloaded", "path", w.path, "project", cfg.ProjectName)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnw("policy config watch error", "error", err)
		}
	}
}
