package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SearchEntry is a cached upstream search response. Records are kept raw so a
// hit goes through the same normalization as a live fetch.
type SearchEntry struct {
	Keyword  string          `json:"keyword"`
	SortType int             `json:"sortType"`
	Limit    int             `json:"limit"`
	Records  json.RawMessage `json:"records"`
	CachedAt time.Time       `json:"cachedAt"`
}

// SearchCache caches upstream catalog searches on top of a ResultCache.
type SearchCache struct {
	store ResultCache
	now   func() time.Time
}

// NewSearchCache creates a SearchCache. A nil store disables caching.
func NewSearchCache(store ResultCache) *SearchCache {
	return &SearchCache{store: store, now: time.Now}
}

// SearchKey builds the cache key for one upstream request: search:{hash}.
// Keywords are compared case-insensitively and without surrounding space.
func SearchKey(keyword string, sortType, limit int) string {
	norm := strings.ToLower(strings.TrimSpace(keyword))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", norm, sortType, limit)))
	return "search:" + hex.EncodeToString(sum[:12])
}

// Get returns the cached records for a search, or ok=false on a miss.
func (c *SearchCache) Get(ctx context.Context, keyword string, sortType, limit int) ([]map[string]interface{}, bool, error) {
	if c == nil || c.store == nil {
		return nil, false, nil
	}
	var entry SearchEntry
	ok, err := c.store.Get(ctx, SearchKey(keyword, sortType, limit), &entry)
	if err != nil || !ok {
		return nil, false, err
	}
	// numbers stay json.Number so large item ids keep every digit
	dec := json.NewDecoder(bytes.NewReader(entry.Records))
	dec.UseNumber()
	var records []map[string]interface{}
	if err := dec.Decode(&records); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached records: %w", err)
	}
	return records, true, nil
}

// Set stores the raw records of a search.
func (c *SearchCache) Set(ctx context.Context, keyword string, sortType, limit int, records []map[string]interface{}) error {
	if c == nil || c.store == nil {
		return nil
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return c.store.Set(ctx, SearchKey(keyword, sortType, limit), &SearchEntry{
		Keyword:  keyword,
		SortType: sortType,
		Limit:    limit,
		Records:  raw,
		CachedAt: c.now().UTC(),
	})
}
