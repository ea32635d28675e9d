package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := newTestCache(t)

	if _, ok, err := c.GetSnapshot("lighting"); err != nil || ok {
		t.Fatalf("GetSnapshot on empty cache = ok %v, err %v", ok, err)
	}

	if err := c.PutSnapshot("lighting", []byte(`{"state":"on"}`)); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}

	value, ok, err := c.GetSnapshot("lighting")
	if err != nil || !ok {
		t.Fatalf("GetSnapshot = ok %v, err %v", ok, err)
	}
	if string(value) != `{"state":"on"}` {
		t.Errorf("value = %s", value)
	}
}

// A second put for the same path replaces the stored snapshot
func TestSnapshotUpsert(t *testing.T) {
	c := newTestCache(t)

	if err := c.PutSnapshot("bells/normal", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}
	if err := c.PutSnapshot("bells/normal", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}

	value, ok, err := c.GetSnapshot("bells/normal")
	if err != nil || !ok {
		t.Fatalf("GetSnapshot = ok %v, err %v", ok, err)
	}
	if string(value) != `{"a":2}` {
		t.Errorf("value = %s", value)
	}
}

func TestAuditEntries(t *testing.T) {
	c := newTestCache(t)

	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i, event := range []string{"first", "second", "third"} {
		if err := c.InsertAuditEntry(base.Add(time.Duration(i)*time.Minute), event); err != nil {
			t.Fatalf("InsertAuditEntry failed: %v", err)
		}
	}

	entries, err := c.RecentAuditEntries(2)
	if err != nil {
		t.Fatalf("RecentAuditEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first
	if entries[0].Event != "third" || entries[1].Event != "second" {
		t.Errorf("entries = %q, %q", entries[0].Event, entries[1].Event)
	}
}
