package cache

import (
	"sync"
	"time"
)

// ============================================================
// L1 精确匹配缓存（使用双向链表实现 O(1) 操作）
// ============================================================

// ExactCache L1 精确匹配缓存
// 固定容量 LRU + 滑动过期：每次 Get 命中都会重置过期时间并移动到头部。
type ExactCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*lruNode
	head     *lruNode // 最近使用
	tail     *lruNode // 最久未使用
}

type lruNode struct {
	key       string
	response  string
	createdAt time.Time
	expiresAt time.Time
	prev      *lruNode
	next      *lruNode
}

const (
	defaultExactCapacity = 100
	defaultExactTTL      = 5 * time.Minute
)

// NewExactCache 创建 L1 缓存
func NewExactCache(capacity int, ttl time.Duration) *ExactCache {
	if capacity <= 0 {
		capacity = defaultExactCapacity
	}
	if ttl <= 0 {
		ttl = defaultExactTTL
	}
	return &ExactCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruNode),
	}
}

// Get 获取缓存值
// 命中时重置滑动过期时间并移动到头部；已过期的条目视为未命中并被移除。
func (c *ExactCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		return "", false
	}

	// 检查过期
	if time.Now().After(node.expiresAt) {
		c.removeNode(node)
		delete(c.items, key)
		return "", false
	}

	// 滑动过期：每次访问都重置截止时间
	node.expiresAt = time.Now().Add(c.ttl)
	c.moveToHead(node)

	return node.response, true
}

// Set 插入或覆盖缓存值
// 超出容量时先淘汰最久未使用的条目。
func (c *ExactCache) Set(key, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 如果已存在，更新并移动到头部
	if node, ok := c.items[key]; ok {
		node.response = response
		node.expiresAt = time.Now().Add(c.ttl)
		c.moveToHead(node)
		return
	}

	// 检查容量，淘汰最久未使用的
	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	now := time.Now()
	node := &lruNode{
		key:       key,
		response:  response,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.items[key] = node
	c.addToHead(node)
}

// Delete 删除指定键
func (c *ExactCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		c.removeNode(node)
		delete(c.items, key)
	}
}

// Clear 清空缓存
func (c *ExactCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruNode)
	c.head = nil
	c.tail = nil
}

// Len 返回当前条目数
func (c *ExactCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// addToHead 添加节点到头部 O(1)
func (c *ExactCache) addToHead(node *lruNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

// removeNode 从链表中移除节点 O(1)
func (c *ExactCache) removeNode(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

// moveToHead 移动节点到头部 O(1)
func (c *ExactCache) moveToHead(node *lruNode) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

// evictTail 淘汰尾部节点 O(1)
func (c *ExactCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.key)
	c.removeNode(c.tail)
}
