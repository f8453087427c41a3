// Package watcher turns a directory into an upload inbox.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long a file must stay unchanged before it is emitted.
const DefaultSettle = 500 * time.Millisecond

// Watcher emits the paths of files created or written in a directory. A file
// being copied in produces many events; it is emitted once, after it settled.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	settle     time.Duration
	log        *zap.Logger
}

// New creates a new file watcher. Extensions are matched case-insensitively.
func New(extensions []string, settle time.Duration, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".docx"}
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	return &Watcher{
		watcher:    w,
		extensions: extensions,
		settle:     settle,
		log:        logger.Named("watcher"),
	}, nil
}

// Watch starts monitoring dir. The returned channel is closed when ctx is
// done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	out := make(chan string, 16)
	settled := make(chan string, 16)

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
	)
	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Reset(w.settle)
			return
		}
		pending[path] = time.AfterFunc(w.settle, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			select {
			case settled <- path:
			case <-ctx.Done():
			}
		})
	}
	stopAll := func() {
		mu.Lock()
		defer mu.Unlock()
		for path, t := range pending {
			t.Stop()
			delete(pending, path)
		}
	}

	go func() {
		defer close(out)
		defer stopAll()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					schedule(event.Name)
				}
			case path := <-settled:
				select {
				case out <- path:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watch error", zap.Error(err))
			}
		}
	}()

	return out, nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) isWatchedExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
