package cache

import (
	"bytes"
	"testing"
)

func TestManagerMemoryOnly(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close() //nolint:errcheck

	_ = m.Put("k", []byte("v"))
	got, ok := m.Get("k")
	if !ok || string(got) != "v" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
	if _, disk, _ := m.Stats(); disk.Capacity != 0 {
		t.Errorf("disk tier should be absent, got capacity %d", disk.Capacity)
	}
}

func TestManagerPromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DiskPath = dir

	first, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	data := bytes.Repeat([]byte("audio"), 1000)
	_ = first.Put("chunk", data)
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	// A fresh manager has an empty memory tier.
	second, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close() //nolint:errcheck

	got, ok := second.Get("chunk")
	if !ok || !bytes.Equal(got, data) {
		t.Fatalf("Get() from disk = %d bytes, %v", len(got), ok)
	}
	if _, _, promotions := second.Stats(); promotions != 1 {
		t.Errorf("promotions = %d, want 1", promotions)
	}

	if _, ok := second.Get("chunk"); !ok {
		t.Fatal("second Get() missed")
	}
	mem, _, promotions := second.Stats()
	if promotions != 1 {
		t.Errorf("memory hit should not promote again, promotions = %d", promotions)
	}
	if mem.Hits != 1 {
		t.Errorf("memory hits = %d, want 1", mem.Hits)
	}
}

func TestManagerKeepsOversizedItemsInMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiskPath = t.TempDir()
	cfg.DiskCapacity = 16
	cfg.CompressionLevel = 0

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close() //nolint:errcheck

	if err := m.Put("big", make([]byte, 64)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := m.Get("big"); !ok {
		t.Error("oversized item should be served from memory")
	}
}

func TestManagerClear(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiskPath = t.TempDir()
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close() //nolint:errcheck

	_ = m.Put("k", []byte("v"))
	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get("k"); ok {
		t.Error("Get() after Clear should miss")
	}
}
