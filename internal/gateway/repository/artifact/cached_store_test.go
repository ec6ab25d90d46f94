package artifact

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "sess-1", "regen/1/annotated.png", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(ctx, "sess-1", "regen/1/annotated.png")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 3 || got[0] != 1 {
		t.Fatalf("Get() = %v, want [1 2 3]", got)
	}

	if _, err := s.Get(ctx, "sess-1", "missing.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	paths, err := s.List(ctx, "sess-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(paths) != 1 || paths[0] != "regen/1/annotated.png" {
		t.Fatalf("List() = %v", paths)
	}
}

func TestMemoryStoreRejectsEmptyKeys(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(context.Background(), "", "p", nil); err == nil {
		t.Fatalf("Put(empty session) error = nil, want error")
	}
	if err := s.Put(context.Background(), "sess", "", nil); err == nil {
		t.Fatalf("Put(empty path) error = nil, want error")
	}
}

type countingStore struct {
	*MemoryStore
	gets int
}

func (c *countingStore) Get(ctx context.Context, sessionID, path string) ([]byte, error) {
	c.gets++
	return c.MemoryStore.Get(ctx, sessionID, path)
}

func TestCachedStoreServesSecondReadFromCache(t *testing.T) {
	origin := &countingStore{MemoryStore: NewMemoryStore()}
	cached := NewCachedStore(origin, DefaultCacheConfig())
	ctx := context.Background()

	if err := cached.Put(ctx, "sess-1", "corrected.png", []byte{9}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := cached.Get(ctx, "sess-1", "corrected.png"); err != nil {
			t.Fatalf("Get() #%d error = %v", i, err)
		}
	}
	if origin.gets != 0 {
		t.Fatalf("origin reads = %d, want 0 (put primes the cache)", origin.gets)
	}
	m := cached.Metrics()
	if m.BlobHits != 3 {
		t.Fatalf("BlobHits = %d, want 3", m.BlobHits)
	}
}

func TestCachedStorePutInvalidatesList(t *testing.T) {
	origin := NewMemoryStore()
	cached := NewCachedStore(origin, DefaultCacheConfig())
	ctx := context.Background()

	if err := cached.Put(ctx, "sess-1", "a.png", []byte{1}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := cached.List(ctx, "sess-1"); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if err := cached.Put(ctx, "sess-1", "b.png", []byte{2}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	paths, err := cached.List(ctx, "sess-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("List() after second put = %v, want 2 paths", paths)
	}
}
