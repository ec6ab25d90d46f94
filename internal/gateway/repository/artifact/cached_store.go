package artifact

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int

	ListTTL        time.Duration
	ListMaxEntries int

	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 256,
		ListTTL:        30 * time.Second,
		ListMaxEntries: 512,
		URLTTL:         5 * time.Minute,
		URLMaxEntries:  1024,
	}
}

type MetricsSnapshot struct {
	BlobHits     uint64
	BlobMisses   uint64
	OriginReads  uint64
	OriginWrites uint64
}

// CachedStore wraps an origin Store with expiring LRU caches for blobs,
// listings, and presigned URLs. Generated drawings are re-fetched often by
// the browser; the cache keeps those reads off the origin.
type CachedStore struct {
	origin Store

	blobCache *expirable.LRU[string, []byte]
	listCache *expirable.LRU[string, []string]
	urlCache  *expirable.LRU[string, string]

	blobHits     atomic.Uint64
	blobMisses   atomic.Uint64
	originReads  atomic.Uint64
	originWrites atomic.Uint64
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = def.BlobTTL
	}
	if cfg.BlobMaxEntries <= 0 {
		cfg.BlobMaxEntries = def.BlobMaxEntries
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	if cfg.URLMaxEntries <= 0 {
		cfg.URLMaxEntries = def.URLMaxEntries
	}

	return &CachedStore{
		origin:    origin,
		blobCache: expirable.NewLRU[string, []byte](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		listCache: expirable.NewLRU[string, []string](cfg.ListMaxEntries, nil, cfg.ListTTL),
		urlCache:  expirable.NewLRU[string, string](cfg.URLMaxEntries, nil, cfg.URLTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, sessionID, path string, content []byte) error {
	s.originWrites.Add(1)
	if err := s.origin.Put(ctx, sessionID, path, content); err != nil {
		return err
	}
	key, _ := objectKey(sessionID, path)
	s.blobCache.Add(key, append([]byte(nil), content...))
	s.listCache.Remove(strings.TrimSpace(sessionID))
	s.urlCache.Remove(key)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, sessionID, path string) ([]byte, error) {
	key, err := objectKey(sessionID, path)
	if err != nil {
		return nil, err
	}
	if raw, ok := s.blobCache.Get(key); ok {
		s.blobHits.Add(1)
		return append([]byte(nil), raw...), nil
	}
	s.blobMisses.Add(1)
	s.originReads.Add(1)

	raw, err := s.origin.Get(ctx, sessionID, path)
	if err != nil {
		return nil, err
	}
	copied := append([]byte(nil), raw...)
	s.blobCache.Add(key, copied)
	return append([]byte(nil), copied...), nil
}

func (s *CachedStore) GetURL(ctx context.Context, sessionID, path string) (string, error) {
	key, err := objectKey(sessionID, path)
	if err != nil {
		return "", err
	}
	if cached, ok := s.urlCache.Get(key); ok {
		return cached, nil
	}
	s.originReads.Add(1)

	url, err := s.origin.GetURL(ctx, sessionID, path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(url) != "" {
		s.urlCache.Add(key, url)
	}
	return url, nil
}

func (s *CachedStore) List(ctx context.Context, sessionID string) ([]string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if list, ok := s.listCache.Get(sessionID); ok {
		return append([]string(nil), list...), nil
	}
	s.originReads.Add(1)

	list, err := s.origin.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	copied := append([]string(nil), list...)
	s.listCache.Add(sessionID, copied)
	return append([]string(nil), copied...), nil
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		BlobHits:     s.blobHits.Load(),
		BlobMisses:   s.blobMisses.Load(),
		OriginReads:  s.originReads.Load(),
		OriginWrites: s.originWrites.Load(),
	}
}
