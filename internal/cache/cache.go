// Package cache stores decoded fuzzer artifacts on disk, keyed by the
// BLAKE3 digest of the raw artifact bytes.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// schemaVersion is mixed into every key so that entries written by an
// incompatible decoder are never read back.
const schemaVersion = "fuzzlens-cache-v1"

const entrySuffix = ".json"

// Cache is a content-addressed artifact cache. A disabled cache never
// stores anything and every lookup misses.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

type entry struct {
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New creates a cache rooted at dir. A ttl of zero keeps entries forever.
func New(dir string, ttl time.Duration, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl, enabled: true}, nil
}

// Enabled reports whether the cache stores entries.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Key derives the cache key of an artifact of the given kind.
func Key(kind string, content []byte) string {
	h := blake3.New()
	_, _ = h.Write([]byte(schemaVersion))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key[:2], key+entrySuffix)
}

func (c *Cache) expired(ts time.Time) bool {
	return c.ttl > 0 && time.Since(ts) > c.ttl
}

// Get decodes the cached value for key into v. It reports false on a miss,
// an expired entry or an entry that does not decode.
func (c *Cache) Get(key string, v any) bool {
	if !c.enabled || len(key) < 2 {
		return false
	}
	p := c.path(key)
	data, err := os.ReadFile(p)
	if err != nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	if c.expired(e.Timestamp) {
		_ = os.Remove(p)
		return false
	}
	return json.Unmarshal(e.Data, v) == nil
}

// Put stores v under key.
func (c *Cache) Put(key, kind string, v any) error {
	if !c.enabled || len(key) < 2 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data, err := json.Marshal(entry{Kind: kind, Timestamp: time.Now(), Data: raw})
	if err != nil {
		return err
	}
	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	// Workers decoding identical lists may store the same key at once, so
	// every writer gets its own temp file.
	tmp, err := os.CreateTemp(filepath.Dir(p), "*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Clear removes every cache entry.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries   int           `json:"entries" toon:"entries"`
	Expired   int           `json:"expired" toon:"expired"`
	TotalSize int64         `json:"total_size" toon:"total_size"`
	OldestAge time.Duration `json:"oldest_age" toon:"oldest_age"`
}

// Sweep removes expired entries and returns statistics about the ones
// that remain.
func (c *Cache) Sweep() (*Stats, error) {
	stats := &Stats{}
	if !c.enabled {
		return stats, nil
	}
	var oldest time.Time
	err := filepath.WalkDir(c.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(p) != entrySuffix {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if c.expired(info.ModTime()) {
			stats.Expired++
			return os.Remove(p)
		}
		stats.Entries++
		stats.TotalSize += info.Size()
		if oldest.IsZero() || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	return stats, nil
}
