package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// FileLoader feeds a change listener from a directory of metadata files.
// Each file may hold a single descriptor or an aggregate. The loader keeps
// a file-to-identifiers map so a changed or deleted file first withdraws
// everything it previously contributed, then re-adds what it holds now.
//
// Change detection uses OS file notifications, backed by a periodic full
// rescan that catches missed events and validity rollover.
type FileLoader struct {
	dir      string
	listener ports.ChangeListener
	opts     options

	mu      sync.Mutex
	fileIDs map[string][]string

	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewFileLoader creates a loader over the given directory. Call Load for
// the initial population and Start to begin watching.
func NewFileLoader(dir string, listener ports.ChangeListener, opts ...Option) (*FileLoader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("metadata directory %q is not readable", dir), err)
	}
	if !info.IsDir() {
		return nil, domain.ConfigError(fmt.Sprintf("metadata path %q is not a directory", dir), nil)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &FileLoader{
		dir:      dir,
		listener: listener,
		opts:     o,
		fileIDs:  make(map[string][]string),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Load scans the whole directory and reconciles the listener with its
// current contents. Files that fail to parse are logged and skipped; the
// rest of the directory still loads.
func (l *FileLoader) Load() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		l.opts.metricsRecorder.RecordMetadataReload(false, 0)
		l.notifyReload(err)
		return domain.ConfigError(fmt.Sprintf("cannot list metadata directory %q", l.dir), err)
	}

	seen := make(map[string]bool, len(entries))
	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		seen[path] = true
		total += l.reloadFile(path)
	}

	// Withdraw descriptors from files that no longer exist.
	l.mu.Lock()
	for path, ids := range l.fileIDs {
		if seen[path] {
			continue
		}
		for _, id := range ids {
			l.listener.Remove(id)
		}
		delete(l.fileIDs, path)
	}
	l.mu.Unlock()

	l.opts.metricsRecorder.RecordMetadataReload(true, total)
	if l.opts.logger != nil {
		l.opts.logger.Info("metadata directory loaded",
			zap.String("dir", l.dir),
			zap.Int("descriptors", total),
		)
	}
	l.notifyReload(nil)
	return nil
}

// Start begins watching the directory and schedules the periodic rescan.
func (l *FileLoader) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %q: %w", l.dir, err)
	}
	l.watcher = watcher

	go l.run()
	return nil
}

// Close stops the watcher and the rescan ticker. Safe to call repeatedly.
func (l *FileLoader) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopCh)
		if l.watcher != nil {
			l.watcher.Close()
			<-l.doneCh
		}
	})
	return nil
}

func (l *FileLoader) run() {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.opts.rescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			if err := l.Load(); err != nil && l.opts.logger != nil {
				l.opts.logger.Warn("periodic metadata rescan failed", zap.Error(err))
			}
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.handleEvent(event)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			if l.opts.logger != nil {
				l.opts.logger.Warn("metadata watcher error", zap.Error(err))
			}
		}
	}
}

func (l *FileLoader) handleEvent(event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		l.reloadFile(event.Name)
		l.notifyReload(nil)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		l.dropFile(event.Name)
		l.notifyReload(nil)
	}
}

// reloadFile withdraws the file's previous descriptors, then parses and
// adds its current ones. Returns the number of descriptors added.
func (l *FileLoader) reloadFile(path string) int {
	l.dropFile(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if l.opts.logger != nil {
			l.opts.logger.Warn("cannot read metadata file",
				zap.String("file", path), zap.Error(err))
		}
		return 0
	}

	records, err := ParseDescriptors(data)
	if err != nil {
		if l.opts.logger != nil {
			l.opts.logger.Warn("skipping unparseable metadata file",
				zap.String("file", path), zap.Error(err))
		}
		return 0
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		l.listener.Add(rec)
		ids = append(ids, rec.EntityID)
	}

	l.mu.Lock()
	l.fileIDs[path] = ids
	l.mu.Unlock()

	if l.opts.logger != nil {
		l.opts.logger.Debug("metadata file loaded",
			zap.String("file", path),
			zap.Int("descriptors", len(ids)),
		)
	}
	return len(ids)
}

func (l *FileLoader) dropFile(path string) {
	l.mu.Lock()
	ids := l.fileIDs[path]
	delete(l.fileIDs, path)
	l.mu.Unlock()

	for _, id := range ids {
		l.listener.Remove(id)
	}
}

func (l *FileLoader) notifyReload(err error) {
	if l.opts.onReload != nil {
		l.opts.onReload(err)
	}
}
