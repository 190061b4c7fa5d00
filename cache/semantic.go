package cache

import (
	"math"
	"sync"
	"time"
)

// ============================================================
// L2 语义缓存（余弦相似度匹配）
// ============================================================

// semanticEntry L2 缓存条目，按插入顺序保存在切片中
type semanticEntry struct {
	key       string
	embedding []float64
	response  string
	createdAt time.Time
}

// Match 语义匹配结果
type Match struct {
	Key        string
	Response   string
	Similarity float64
}

const (
	defaultSemanticCapacity  = 500
	defaultSemanticThreshold = 0.92
)

// SemanticCache L2 语义缓存
//
// 条目没有 TTL，也不提供单条删除：只会因容量淘汰（插入最早的条目先被淘汰，
// 与访问模式无关）或 Clear 而消失。容量较小（默认 500），查找采用线性扫描。
type SemanticCache struct {
	mu        sync.Mutex
	capacity  int
	threshold float64
	entries   []*semanticEntry // 按插入时间从旧到新
}

// NewSemanticCache 创建 L2 缓存
func NewSemanticCache(capacity int, threshold float64) *SemanticCache {
	if capacity <= 0 {
		capacity = defaultSemanticCapacity
	}
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSemanticThreshold
	}
	return &SemanticCache{
		capacity:  capacity,
		threshold: threshold,
		entries:   make([]*semanticEntry, 0, capacity),
	}
}

// Set 插入条目
// 已满时先淘汰插入最早的条目；相同键重新插入视为最新条目。
func (c *SemanticCache) Set(key string, embedding []float64, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 相同键覆盖：移除旧条目后按最新位置重新插入
	for i, e := range c.entries {
		if e.key == key {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}

	if len(c.entries) >= c.capacity {
		// 淘汰全局最旧的条目
		c.entries = c.entries[1:]
	}

	c.entries = append(c.entries, &semanticEntry{
		key:       key,
		embedding: embedding,
		response:  response,
		createdAt: time.Now(),
	})
}

// FindSimilar 查找与给定嵌入向量最相似的条目
// 只有余弦相似度达到阈值的条目才有资格；相似度相同的条目取最近插入的。
// 没有合格条目时返回 nil。
func (c *SemanticCache) FindSimilar(embedding []float64) *Match {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *semanticEntry
	var bestSim float64

	// 按插入顺序从旧到新扫描，>= 使相似度持平时最近插入的条目胜出
	for _, e := range c.entries {
		sim := cosineSimilarity(embedding, e.embedding)
		if sim < c.threshold {
			continue
		}
		if best == nil || sim >= bestSim {
			best = e
			bestSim = sim
		}
	}

	if best == nil {
		return nil
	}
	return &Match{
		Key:        best.key,
		Response:   best.response,
		Similarity: bestSim,
	}
}

// Len 返回当前条目数
func (c *SemanticCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear 清空缓存
func (c *SemanticCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = c.entries[:0]
}

// cosineSimilarity 计算余弦相似度 dot(a,b) / (‖a‖·‖b‖)
// 零向量或维度不一致的向量相似度为 0，因此永远不会匹配。
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
