package users

import (
	"encoding/json"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	usersListCacheKey  = "users::list"
	usersCacheSizeByte = 10 * 1024 * 1024
)

// ListCache holds the serialized users list for a short while, so repeated
// list requests don't hit the store. Any user creation invalidates it.
type ListCache struct {
	cache *freecache.Cache
	ttl   time.Duration
}

// NewListCache returns a cache keeping the list for ttl. A non-positive ttl disables caching.
func NewListCache(ttl time.Duration) *ListCache {
	return &ListCache{
		cache: freecache.NewCache(usersCacheSizeByte),
		ttl:   ttl,
	}
}

func (c *ListCache) Get() ([]Summary, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	cached, err := c.cache.Get([]byte(usersListCacheKey))
	if err != nil {
		return nil, false
	}
	var summaries []Summary
	if err := json.Unmarshal(cached, &summaries); err != nil {
		log.Errorf("unmarshal cached users list: %s", err)
		return nil, false
	}
	return summaries, true
}

func (c *ListCache) Set(summaries []Summary) {
	if c == nil || c.ttl <= 0 {
		return
	}
	summariesJson, err := json.Marshal(summaries)
	if err != nil {
		log.Errorf("marshal users list for cache: %s", err)
		return
	}
	expireSeconds := int(c.ttl.Seconds())
	if expireSeconds < 1 {
		expireSeconds = 1
	}
	if err := c.cache.Set([]byte(usersListCacheKey), summariesJson, expireSeconds); err != nil {
		log.Errorf("set users list cache: %s", err)
	}
}

func (c *ListCache) Invalidate() {
	if c == nil {
		return
	}
	c.cache.Del([]byte(usersListCacheKey))
}
