package services

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrijs2005/skybox/internal/server/models"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skybox_public_cache_hits_total",
		Help: "Public file metadata cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skybox_public_cache_misses_total",
		Help: "Public file metadata cache misses.",
	})
)

// PublicCache holds metadata of public files keyed by file id.
// Entries expire after ttl; visibility changes and deletes evict them.
//
// Every eviction advances the epoch. A reader takes the epoch before loading
// the record and Set drops the entry when an eviction happened in between, so
// a record loaded before a toggle or delete is never cached after it.
type PublicCache struct {
	mu    sync.Mutex
	epoch uint64
	cache *expirable.LRU[string, *models.FileRecord]
}

func NewPublicCache(maxSize int, ttl time.Duration) *PublicCache {
	return &PublicCache{cache: expirable.NewLRU[string, *models.FileRecord](maxSize, nil, ttl)}
}

func (c *PublicCache) Get(fileID string) (*models.FileRecord, bool) {
	val, ok := c.cache.Get(fileID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Epoch returns the current eviction epoch.
func (c *PublicCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Set caches record unless an eviction happened since epoch was read.
func (c *PublicCache) Set(fileID string, record *models.FileRecord, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	c.cache.Add(fileID, record)
	return true
}

func (c *PublicCache) Delete(fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.cache.Remove(fileID)
}
