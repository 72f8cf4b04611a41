package merget

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// GranuleCache 读路径上解码后granule的LRU缓存
// 以xxhash(partDir + granule下标)作为桶键，容量按granule个数计
// part不可变，所以缓存里的granule永远不会失效，part删除后靠LRU自然淘汰
type GranuleCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[uint64]*list.Element
}

type cacheEntry struct {
	hash    uint64
	key     string
	granule *Granule
}

// NewGranuleCache 创建容量为capacity个granule的缓存，capacity<=0表示禁用
func NewGranuleCache(capacity int) *GranuleCache {
	if capacity <= 0 {
		return nil
	}
	return &GranuleCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element),
	}
}

// 缓存键：part目录 + granule下标
func granuleCacheKey(partDir string, granuleIdx int) string {
	return fmt.Sprintf("%s/%d", partDir, granuleIdx)
}

// Get 命中时把元素提到队首
func (c *GranuleCache) Get(key string) (*Granule, bool) {
	if c == nil {
		return nil, false
	}
	hash := xxhash.Sum64String(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[hash]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	// hash冲突时按miss处理
	if entry.key != key {
		return nil, false
	}
	c.ll.MoveToFront(elem)
	return entry.granule, true
}

// Set 插入或更新，超容量时从队尾淘汰
func (c *GranuleCache) Set(key string, g *Granule) {
	if c == nil {
		return
	}
	hash := xxhash.Sum64String(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[hash]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.key = key
		entry.granule = g
		c.ll.MoveToFront(elem)
		return
	}

	elem := c.ll.PushFront(&cacheEntry{hash: hash, key: key, granule: g})
	c.items[hash] = elem

	for c.ll.Len() > c.capacity {
		tail := c.ll.Back()
		if tail == nil {
			break
		}
		evicted := tail.Value.(*cacheEntry)
		delete(c.items, evicted.hash)
		c.ll.Remove(tail)
	}
}

// Len 当前缓存的granule个数
func (c *GranuleCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
