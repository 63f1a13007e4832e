package metadata

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/testfixtures/trust"
)

// recordingListener collects Add and Remove calls for inspection.
type recordingListener struct {
	mu      sync.Mutex
	records map[string]*domain.DescriptorRecord
	removed []string
}

func newRecordingListener() *recordingListener {
	return &recordingListener{records: make(map[string]*domain.DescriptorRecord)}
}

func (l *recordingListener) Add(rec *domain.DescriptorRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.EntityID] = rec
}

func (l *recordingListener) Remove(entityID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, entityID)
	l.removed = append(l.removed, entityID)
}

func (l *recordingListener) has(entityID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[entityID]
	return ok
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func TestFileLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "sp.xml", trust.EntityDescriptorXML("https://sp.example.org", time.Time{}, ""))
	writeMetadata(t, dir, "aggregate.xml", trust.AggregateXML(
		trust.EntityDescriptorFragment("https://a.example.org", time.Time{}, ""),
		trust.EntityDescriptorFragment("https://b.example.org", time.Time{}, ""),
	))
	writeMetadata(t, dir, "broken.xml", []byte("not xml at all"))

	listener := newRecordingListener()
	loader, err := NewFileLoader(dir, listener)
	if err != nil {
		t.Fatalf("NewFileLoader: %v", err)
	}
	defer loader.Close()

	if err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, id := range []string{"https://sp.example.org", "https://a.example.org", "https://b.example.org"} {
		if !listener.has(id) {
			t.Errorf("descriptor %q not loaded", id)
		}
	}
	if listener.count() != 3 {
		t.Errorf("loaded %d descriptors, want 3", listener.count())
	}
}

func TestFileLoaderReconcilesRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeMetadata(t, dir, "sp.xml", trust.EntityDescriptorXML("https://sp.example.org", time.Time{}, ""))

	listener := newRecordingListener()
	loader, err := NewFileLoader(dir, listener)
	if err != nil {
		t.Fatalf("NewFileLoader: %v", err)
	}
	defer loader.Close()

	if err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !listener.has("https://sp.example.org") {
		t.Fatal("descriptor not loaded")
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if err := loader.Load(); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if listener.has("https://sp.example.org") {
		t.Error("descriptor still present after its file vanished")
	}
}

func TestFileLoaderFileChangeReplacesContents(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "sp.xml", trust.EntityDescriptorXML("https://old.example.org", time.Time{}, ""))

	listener := newRecordingListener()
	loader, err := NewFileLoader(dir, listener)
	if err != nil {
		t.Fatalf("NewFileLoader: %v", err)
	}
	defer loader.Close()

	if err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// The same file now names a different entity; the previous one must be
	// withdrawn by the reload.
	writeMetadata(t, dir, "sp.xml", trust.EntityDescriptorXML("https://new.example.org", time.Time{}, ""))
	if err := loader.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if listener.has("https://old.example.org") {
		t.Error("stale descriptor survived the file change")
	}
	if !listener.has("https://new.example.org") {
		t.Error("replacement descriptor not loaded")
	}
}

func TestFileLoaderWatchPicksUpNewFile(t *testing.T) {
	dir := t.TempDir()
	listener := newRecordingListener()

	reloaded := make(chan error, 16)
	loader, err := NewFileLoader(dir, listener, WithOnReload(func(err error) {
		reloaded <- err
	}))
	if err != nil {
		t.Fatalf("NewFileLoader: %v", err)
	}
	defer loader.Close()

	if err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	<-reloaded

	if err := loader.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeMetadata(t, dir, "late.xml", trust.EntityDescriptorXML("https://late.example.org", time.Time{}, ""))

	deadline := time.After(5 * time.Second)
	for !listener.has("https://late.example.org") {
		select {
		case <-reloaded:
		case <-deadline:
			t.Fatal("watcher did not pick up the new file")
		}
	}
}

func TestFileLoaderCloseIsIdempotent(t *testing.T) {
	loader, err := NewFileLoader(t.TempDir(), newRecordingListener())
	if err != nil {
		t.Fatalf("NewFileLoader: %v", err)
	}
	if err := loader.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := loader.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := loader.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNewFileLoaderRejectsBadPath(t *testing.T) {
	if _, err := NewFileLoader(filepath.Join(t.TempDir(), "absent"), newRecordingListener()); domain.CodeOf(err) != domain.ErrCodeConfiguration {
		t.Errorf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeConfiguration)
	}
}

func writeMetadata(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
