//go:build linux || darwin

package prefork

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
	"vawter.tech/stopper"
)

// watchReload watches the configured reload path and fans out SIGHUP to the
// workers when it changes. Events are debounced to coalesce the burst a
// typical deploy produces (write + rename + chmod). The watch sits on the
// parent directory so the path can be replaced atomically and still be seen.
func (s *Supervisor) watchReload() error {
	target, err := filepath.Abs(s.reloadPath)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return err
	}

	var mu sync.Mutex
	var debouncer *time.Timer

	s.sctx.Defer(func() {
		_ = watcher.Close()
		mu.Lock()
		if debouncer != nil {
			debouncer.Stop()
		}
		mu.Unlock()
	})

	fire := func() {
		if s.sctx.IsStopping() {
			return
		}
		s.reloadHook()
	}

	s.sctx.Go(func(sctx *stopper.Context) error {
		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				if debouncer != nil {
					debouncer.Stop()
				}
				debouncer = time.AfterFunc(s.reloadDebounce, fire)
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil && !sctx.IsStopping() {
					s.Logger.WARN("reload watch error", "err", err)
				}
			}
		}
		return nil
	})

	s.Logger.INFO("reload watch active", "path", target)
	return nil
}

// reload is the default reload hook. It forwards SIGHUP and nothing more:
// workers that exit on it are not respawned.
func (s *Supervisor) reload() {
	n := s.signalWorkers(unix.SIGHUP)
	s.Logger.NOTICE("service changed, sent SIGHUP to workers", "count", n)
}
