package routes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/your-org/authgate/pkg/logger"
)

// fileDocument is the on-disk shape of a route table file.
type fileDocument struct {
	PublicExact    []string `yaml:"public_exact"`
	PublicPrefixes []string `yaml:"public_prefixes"`
}

// LoadFile reads a YAML route table file and applies it to the table,
// replacing any previous file-sourced contents.
func LoadFile(path string, table *Table) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read route file %s: %w", path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return fmt.Errorf("parse route file %s: %w", path, err)
	}

	table.Replace(doc.PublicExact, doc.PublicPrefixes)
	logger.Info("loaded route table from file",
		logger.String("path", path),
		logger.Int("exact", len(doc.PublicExact)),
		logger.Int("prefixes", len(doc.PublicPrefixes)))
	return nil
}

// Watcher reloads the route table when its backing file changes.
type Watcher struct {
	path    string
	table   *Table
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWatcher starts watching the directory containing path. Watching the
// directory instead of the file itself survives atomic replace-by-rename
// writes.
func NewWatcher(ctx context.Context, path string, table *Table) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create route file watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch route file directory: %w", err)
	}

	w := &Watcher{
		path:    path,
		table:   table,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.loop(ctx)

	logger.Info("watching route table file", logger.String("path", path))
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// Release the fsnotify descriptor when the owning context ends.
			w.Close()
			return
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Coalesce bursts of events for the same save.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("route file watcher error", logger.Err(err))
		}
	}
}

func (w *Watcher) matches(name string) bool {
	if name == w.path {
		return true
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	want, err := filepath.Abs(w.path)
	if err != nil {
		return false
	}
	return abs == want
}

func (w *Watcher) reload() {
	if err := LoadFile(w.path, w.table); err != nil {
		// Keep serving the previous table on a bad reload.
		logger.Error("route table reload failed, keeping previous table",
			logger.String("path", w.path),
			logger.Err(err))
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.watcher.Close()
}
