// Copyright 2025 The email-checker authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Cache memoizes prediction results under a TTL with LRU eviction
// once the entry limit is reached. An expired entry is never
// returned, not even one nanosecond past its TTL.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	ll         *list.List
	maxEntries int
	ttl        time.Duration
}

type cacheEntry struct {
	key     string
	value   Prediction
	created time.Time
}

func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		entries:    make(map[string]*list.Element),
		ll:         list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *Cache) Get(key string) (Prediction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		return Prediction{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Since(entry.created) > c.ttl {
		c.ll.Remove(elem)
		delete(c.entries, key)
		return Prediction{}, false
	}
	c.ll.MoveToFront(elem)
	return entry.value, true
}

func (c *Cache) Set(key string, value Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.ll.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.created = time.Now()
		return
	}
	elem := c.ll.PushFront(&cacheEntry{key: key, value: value, created: time.Now()})
	c.entries[key] = elem
	if c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// PurgePrefix removes all entries whose key starts with the prefix.
// It backs the stale-cache guarantee on version switches.
func (c *Cache) PurgePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed int
	for key, elem := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.ll.Remove(elem)
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
