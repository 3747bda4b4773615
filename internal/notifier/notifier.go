// ============================================================================
// clusterqueue Change Notifier
// ============================================================================
//
// Package: internal/notifier
// File: notifier.go
// Purpose: Wait(path, timeout) blocks a caller until a file changes or the
// timeout elapses, backed by fsnotify with a lazy per-directory watch and a
// polling fallback when a watch cannot be established.
//
// Fan-out model:
//   One fsnotify.Watcher per watched directory. Each Wait call registers a
//   private channel keyed by the full path it cares about; the directory's
//   event-reading goroutine fans a Write/Create/Rename event for that path out to
//   every listener currently registered on it, then removes them.
//
// ============================================================================

package notifier

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Notifier multiplexes filesystem change events to many concurrent waiters.
type Notifier struct {
	mu       sync.Mutex
	watchers map[string]*dirWatch // directory -> watch state
}

type dirWatch struct {
	watcher   *fsnotify.Watcher
	mu        sync.Mutex
	listeners map[string][]chan struct{} // full path -> waiting channels
}

// New creates an empty Notifier. Watches are established lazily as Wait is
// called for paths in new directories.
func New() *Notifier {
	return &Notifier{watchers: make(map[string]*dirWatch)}
}

// Wait blocks until path is created/written, or until timeout elapses,
// whichever happens first. It returns true if a change was observed. A
// timeout of zero or less returns false at once without waiting; it does
// not check whether path exists.
func (n *Notifier) Wait(path string, timeout time.Duration) (bool, error) {
	dw, err := n.watchFor(path)
	if err != nil {
		return n.pollOnce(path, timeout)
	}

	listen := make(chan struct{}, 1)
	dw.mu.Lock()
	dw.listeners[path] = append(dw.listeners[path], listen)
	dw.mu.Unlock()

	defer func() {
		dw.mu.Lock()
		ls := dw.listeners[path]
		for i, c := range ls {
			if c == listen {
				dw.listeners[path] = append(ls[:i], ls[i+1:]...)
				break
			}
		}
		dw.mu.Unlock()
	}()

	if timeout <= 0 {
		select {
		case <-listen:
			return true, nil
		default:
			return false, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-listen:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

func (n *Notifier) watchFor(path string) (*dirWatch, error) {
	dir := filepath.Dir(path)

	n.mu.Lock()
	defer n.mu.Unlock()

	if dw, ok := n.watchers[dir]; ok {
		return dw, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	dw := &dirWatch{watcher: watcher, listeners: make(map[string][]chan struct{})}
	n.watchers[dir] = dw
	go dw.run()
	return dw, nil
}

func (dw *dirWatch) run() {
	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			dw.mu.Lock()
			for _, c := range dw.listeners[event.Name] {
				select {
				case c <- struct{}{}:
				default:
				}
			}
			delete(dw.listeners, event.Name)
			dw.mu.Unlock()
		case _, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// pollOnce is the fallback used when a watch cannot be established (e.g.
// inotify instance limit reached): it records the file's existence/mtime,
// then polls them every 50ms until the deadline. A timeout of zero or less
// returns false without polling.
func (n *Notifier) pollOnce(path string, timeout time.Duration) (bool, error) {
	before, errBefore := os.Stat(path)

	if timeout <= 0 {
		return false, nil
	}

	deadline := time.Now().Add(timeout)
	interval := 50 * time.Millisecond
	for time.Now().Before(deadline) {
		time.Sleep(interval)
		after, err := os.Stat(path)
		switch {
		case errBefore != nil && err == nil:
			return true, nil
		case err == nil && before != nil && after.ModTime().After(before.ModTime()):
			return true, nil
		}
	}
	return false, nil
}

// Close releases every directory watch.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var firstErr error
	for dir, dw := range n.watchers {
		if err := dw.watcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(n.watchers, dir)
	}
	return firstErr
}
