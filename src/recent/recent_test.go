package recent

import (
	"fmt"
	"testing"
)

func TestCacheEviction(t *testing.T) {
	cache, err := NewCache(2)
	if err != nil {
		t.Fatal(err)
	}

	if err := cache.Put("alice", "bob", 1); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put("bob", "carol", 2); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put("carol", "alice", 3); err != nil {
		t.Fatal(err)
	}

	if l := cache.Len(); l != 2 {
		t.Fatalf("cache should retain 2 entries, not %d", l)
	}

	entries := cache.GetAll()
	if len(entries) != 2 {
		t.Fatalf("GetAll should return 2 entries, not %d", len(entries))
	}

	// Oldest first; the very first entry was evicted.
	if entries[0].Sender != "bob" || entries[0].Amount != 2 {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Sender != "carol" || entries[1].Amount != 3 {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}

	if entries[0].Timestamp.After(entries[1].Timestamp) {
		t.Fatal("entries should be ordered by insertion time")
	}
}

func TestCacheOrder(t *testing.T) {
	cache, err := NewCache(10)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		if err := cache.Put(fmt.Sprintf("sender%d", i), "recipient", uint64(i)); err != nil {
			t.Fatal(err)
		}
	}

	entries := cache.GetAll()
	if len(entries) != 10 {
		t.Fatalf("GetAll should return 10 entries, not %d", len(entries))
	}

	for i, entry := range entries {
		if entry.Amount != uint64(i) {
			t.Fatalf("entry %d should have amount %d, not %d", i, i, entry.Amount)
		}
	}
}

func TestCacheBadCapacity(t *testing.T) {
	if _, err := NewCache(0); err == nil {
		t.Fatal("NewCache(0) should return an error")
	}
}
