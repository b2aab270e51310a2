package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPreviewTTL     = 10 * time.Minute
	DefaultPreviewEntries = 256
)

type previewEntry struct {
	png     []byte
	expires time.Time
}

// PreviewCache 保存上传图片的 PNG，供前端读取一次预览。
type PreviewCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	entries map[string]previewEntry
}

func NewPreviewCache(ttl time.Duration, max int) *PreviewCache {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	if max <= 0 {
		max = DefaultPreviewEntries
	}
	return &PreviewCache{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		entries: make(map[string]previewEntry),
	}
}

// Put stores png and returns its handle.
func (c *PreviewCache) Put(png []byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.evictLocked(now)

	id := uuid.NewString()
	c.entries[id] = previewEntry{png: png, expires: now.Add(c.ttl)}
	return id
}

// Take returns the preview and forgets it.
func (c *PreviewCache) Take(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	delete(c.entries, id)
	if !c.now().Before(entry.expires) {
		return nil, false
	}
	return entry.png, true
}

func (c *PreviewCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked 清除过期项；仍然满员时淘汰最早过期的一项。
func (c *PreviewCache) evictLocked(now time.Time) {
	for id, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, id)
		}
	}
	for len(c.entries) >= c.max {
		var oldestID string
		var oldest time.Time
		for id, entry := range c.entries {
			if oldestID == "" || entry.expires.Before(oldest) {
				oldestID, oldest = id, entry.expires
			}
		}
		delete(c.entries, oldestID)
	}
}
