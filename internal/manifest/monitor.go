package manifest

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xlog "transcode-session/internal/log"
)

// Monitor caches the manifest status between filesystem changes. Without a
// running watcher every Check reads the file.
type Monitor struct {
	path            string
	segmentDuration int
	logger          zerolog.Logger

	// dirty is set by the watcher goroutine; cached is only touched by the
	// goroutine calling Check.
	dirty  atomic.Bool
	cached Status

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewMonitor creates a monitor for the manifest at path.
func NewMonitor(path string, segmentDuration int, logger zerolog.Logger) *Monitor {
	m := &Monitor{path: path, segmentDuration: segmentDuration, logger: logger}
	m.dirty.Store(true)
	return m
}

// Path returns the monitored manifest path.
func (m *Monitor) Path() string { return m.path }

// SegmentDuration returns the expected target duration in seconds.
func (m *Monitor) SegmentDuration() int { return m.segmentDuration }

// Watch starts watching the manifest directory for changes. The directory
// must exist.
func (m *Monitor) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}
	m.watcher = w
	// Anything written before the watch was armed is unknown to the cache.
	m.dirty.Store(true)

	m.wg.Add(1)
	go m.loop(w)
	return nil
}

func (m *Monitor) loop(w *fsnotify.Watcher) {
	defer m.wg.Done()
	target := filepath.Base(m.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == target {
				m.dirty.Store(true)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.dirty.Store(true)
			m.logger.Warn().Err(err).Str(xlog.FieldEvent, "manifest.watch_error").Msg("fsnotify watcher error")
		}
	}
}

// Invalidate drops the cached status so the next Check reads the file.
func (m *Monitor) Invalidate() {
	m.dirty.Store(true)
}

// Check returns the manifest status, reading the file only when it may have
// changed since the previous call.
func (m *Monitor) Check() Status {
	if m.watcher != nil && !m.dirty.Load() {
		return m.cached
	}
	m.dirty.Store(false)
	m.cached = Inspect(m.path, m.segmentDuration)
	return m.cached
}

// Close stops the watcher, if any.
func (m *Monitor) Close() error {
	if m.watcher == nil {
		return nil
	}
	err := m.watcher.Close()
	m.wg.Wait()
	m.watcher = nil
	return err
}
