package cache

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"funcreg/internal/models"
)

const DefaultCleanupInterval = 5 * time.Minute

// FunctionCache holds resolved function views keyed by owner, id, version and type.
//
// A nil *FunctionCache is valid and caches nothing.
type FunctionCache struct {
	cache  *gocache.Cache
	logger *slog.Logger

	// generations counts invalidations per owner and function. A view read
	// from the store before an invalidation must not be stored after it.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewFunctionCache returns a cache with the given TTL, or nil when ttl <= 0.
func NewFunctionCache(ttl time.Duration, logger *slog.Logger) *FunctionCache {
	if ttl <= 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FunctionCache{
		cache:       gocache.New(ttl, DefaultCleanupInterval),
		logger:      logger.With("component", "function_cache"),
		generations: make(map[string]uint64),
	}
}

// Get returns a cached view.
func (c *FunctionCache) Get(owner, functionID, version, typ string) (models.Function, bool) {
	var zero models.Function
	if c == nil {
		return zero, false
	}
	key := cacheKey(owner, functionID, version, typ)
	value, found := c.cache.Get(key)
	if !found {
		return zero, false
	}
	fn, ok := value.(models.Function)
	if !ok {
		c.logger.Error("wrong type in function cache", "key", key)
		return zero, false
	}
	c.logger.Debug("cache hit", "function_id", functionID, "version", version, "type", typ)
	return cloneFunction(fn), true
}

// Set stores a view with the default TTL.
func (c *FunctionCache) Set(owner, functionID, version, typ string, fn models.Function) {
	if c == nil {
		return
	}
	c.cache.SetDefault(cacheKey(owner, functionID, version, typ), cloneFunction(fn))
}

// Generation returns the invalidation count of one function for one owner.
// Read it before loading a view from the store and pass it to SetIfCurrent.
func (c *FunctionCache) Generation(owner, functionID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[functionPrefix(owner, functionID)]
}

// SetIfCurrent stores a view only if the function was not invalidated since
// gen was read. It reports whether the view was stored.
func (c *FunctionCache) SetIfCurrent(owner, functionID, version, typ string, gen uint64, fn models.Function) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[functionPrefix(owner, functionID)] != gen {
		c.logger.Debug("discarding stale view", "function_id", functionID, "version", version, "type", typ)
		return false
	}
	c.cache.SetDefault(cacheKey(owner, functionID, version, typ), cloneFunction(fn))
	return true
}

// InvalidateFunction drops every cached view of one function for one owner.
func (c *FunctionCache) InvalidateFunction(owner, functionID string) {
	if c == nil {
		return
	}
	prefix := functionPrefix(owner, functionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[prefix]++
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

// Flush drops everything.
func (c *FunctionCache) Flush() {
	if c == nil {
		return
	}
	c.cache.Flush()
}

func functionPrefix(owner, functionID string) string {
	return owner + "\x00" + functionID + "\x00"
}

func cacheKey(owner, functionID, version, typ string) string {
	return functionPrefix(owner, functionID) + version + "\x00" + typ
}

// cloneFunction copies the slices so callers never share backing arrays
// with a cached view.
func cloneFunction(fn models.Function) models.Function {
	fn.Types = slices.Clone(fn.Types)
	fn.Outputs = slices.Clone(fn.Outputs)
	return fn
}
