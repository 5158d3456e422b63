package toolserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

const defaultCacheMaxEntries = 256

type cacheEntry struct {
	value     string
	createdAt time.Time
	expiresAt time.Time
}

// ResultCache memoises deterministic tool results (calculate, verify) for a
// fixed TTL. A nil *ResultCache is valid and caches nothing.
type ResultCache struct {
	mu         sync.Mutex
	items      map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewResultCache returns nil when ttl is not positive. A hit skips the
// evaluation only; the server still displays the outcome, marked "(cached)".
func NewResultCache(ttl time.Duration, maxEntries int) *ResultCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	return &ResultCache{
		items:      make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *ResultCache) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return "", false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.items, key)
		return "", false
	}
	return entry.value, true
}

func (c *ResultCache) Set(key, value string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.items[key] = cacheEntry{value: value, createdAt: now, expiresAt: now.Add(c.ttl)}
	if len(c.items) > c.maxEntries {
		c.evictOldest(len(c.items) - c.maxEntries)
	}
}

func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *ResultCache) evictOldest(count int) {
	type kv struct {
		key       string
		createdAt time.Time
	}
	items := make([]kv, 0, len(c.items))
	for k, v := range c.items {
		items = append(items, kv{key: k, createdAt: v.createdAt})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].createdAt.Before(items[j].createdAt)
	})
	for i := 0; i < count && i < len(items); i++ {
		delete(c.items, items[i].key)
	}
}

// cacheKey hashes the operation name with a canonical rendering of its
// arguments so that key order in the request does not matter.
func cacheKey(op string, args map[string]any) string {
	var buf bytes.Buffer
	buf.WriteString(op)
	buf.WriteByte('|')
	writeCanonical(&buf, args)
	sum := sha256.Sum256(buf.Bytes())
	return fmt.Sprintf("%x", sum)
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		data, _ := json.Marshal(t)
		buf.Write(data)
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case float64:
		buf.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case int:
		buf.WriteString(strconv.Itoa(t))
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			writeCanonical(buf, t[k])
		}
		buf.WriteByte('}')
	default:
		fmt.Fprintf(buf, "%q", fmt.Sprintf("%v", t))
	}
}
