package plugins

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/okrause/seriesdash/internal/logger"
	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/store"
)

// cacheEntry is the stored shape of one cached plugin execution.
type cacheEntry struct {
	Results  map[string]map[string]float64 `json:"results"`
	CachedAt time.Time                     `json:"cachedAt"`
}

// cacheHash addresses an execution by its full input: the plugin code, the
// category, the file set and the time window. Any edit to the code yields a
// new hash, so stale results for old code are never served.
func cacheHash(code, category string, files []string, window models.Window) string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, part := range []string{code, category, strings.Join(sorted, "\x1f"), window.Start, window.End} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// cacheGet returns a cached result when present and younger than ttl.
// Expired entries are removed on the way out.
func (s *Service) cacheGet(hash string) (map[string]map[string]float64, bool) {
	if s.store == nil {
		return nil, false
	}

	var entry cacheEntry
	ok, err := s.store.Load(store.PluginCacheKey(hash), &entry)
	if err != nil {
		logger.Warn("failed to read plugin cache", "hash", hash, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	if time.Since(entry.CachedAt) > s.config.CacheTTL {
		logger.Debug("plugin cache entry expired", "hash", hash)
		if err := s.store.Remove(store.PluginCacheKey(hash)); err != nil {
			logger.Warn("failed to evict expired cache entry", "hash", hash, "error", err)
		}
		return nil, false
	}
	return entry.Results, true
}

// cachePut stores an execution result under its hash.
func (s *Service) cachePut(hash string, results map[string]map[string]float64) {
	if s.store == nil {
		return
	}
	entry := cacheEntry{Results: results, CachedAt: time.Now()}
	if err := s.store.Save(store.PluginCacheKey(hash), entry); err != nil {
		logger.Warn("failed to write plugin cache", "hash", hash, "error", err)
	}
}
