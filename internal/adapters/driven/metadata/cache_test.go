package metadata

import (
	"sort"
	"testing"
	"time"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestCachePutGetRemove(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCache(WithClock(clock))

	rec := &domain.DescriptorRecord{EntityID: "https://sp.example.org"}
	cache.Put(rec.EntityID, rec, domain.OriginStatic)

	entry, ok := cache.Get(rec.EntityID)
	if !ok {
		t.Fatal("entry not found after Put")
	}
	if entry.Record != rec {
		t.Error("Get returned a different record")
	}
	if !entry.InsertedAt.Equal(clock.now) {
		t.Errorf("InsertedAt = %v, want clock time", entry.InsertedAt)
	}

	origin, ok := cache.Origin(rec.EntityID)
	if !ok || origin != domain.OriginStatic {
		t.Errorf("Origin = %q/%v, want STATIC/true", origin, ok)
	}

	cache.Put(rec.EntityID, nil, domain.OriginStatic)
	if _, ok := cache.Get(rec.EntityID); ok {
		t.Error("entry survived nil Put")
	}

	// Removing an absent entry is a no-op, not a panic.
	cache.Put(rec.EntityID, nil, domain.OriginStatic)
}

func TestCacheOriginOverwrite(t *testing.T) {
	cache := NewCache()
	rec := &domain.DescriptorRecord{EntityID: "https://idp.example.org"}

	cache.Put(rec.EntityID, rec, domain.OriginStatic)
	cache.Put(rec.EntityID, rec, domain.OriginDynamic)

	origin, _ := cache.Origin(rec.EntityID)
	if origin != domain.OriginDynamic {
		t.Errorf("Origin after overwrite = %q, want DYNAMIC", origin)
	}
}

func TestCacheIDs(t *testing.T) {
	cache := NewCache()
	for _, id := range []string{"https://a.example.org", "https://b.example.org"} {
		cache.Put(id, &domain.DescriptorRecord{EntityID: id}, domain.OriginStatic)
	}

	ids := cache.IDs()
	sort.Strings(ids)
	want := []string{"https://a.example.org", "https://b.example.org"}
	if len(ids) != len(want) {
		t.Fatalf("IDs = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("IDs[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
