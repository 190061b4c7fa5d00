package cache

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/BaSui01/ollamaflow/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss 缓存未命中（正常结果，不是故障）
var ErrCacheMiss = errors.New("cache miss")

// Tier 缓存层级
type Tier string

const (
	// TierL1 精确匹配层
	TierL1 Tier = "l1"
	// TierL2 语义匹配层
	TierL2 Tier = "l2"
)

// Config 缓存协调器配置
type Config struct {
	// L1MaxItems L1 最大条目数
	L1MaxItems int `yaml:"l1_max_items"`
	// L1TTL L1 滑动过期时间
	L1TTL time.Duration `yaml:"l1_ttl"`
	// L2MaxItems L2 最大条目数
	L2MaxItems int `yaml:"l2_max_items"`
	// L2Threshold L2 余弦相似度阈值
	L2Threshold float64 `yaml:"l2_threshold"`
	// EnableSemantic 是否启用 L2 语义层
	EnableSemantic bool `yaml:"enable_semantic"`
	// Coalesce GetOrCompute 是否合并并发的同键计算。
	// 默认关闭：并发的相同查询可能都未命中并各自计算，最后一次写入胜出。
	// 开启后可减少执行器调用次数，但会改变可观察行为。
	Coalesce bool `yaml:"coalesce"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		L1MaxItems:     100,
		L1TTL:          5 * time.Minute,
		L2MaxItems:     500,
		L2Threshold:    0.92,
		EnableSemantic: true,
		Coalesce:       false,
	}
}

// Result 缓存查询结果
type Result struct {
	Tier       Tier
	Response   string
	Similarity float64 // 仅 L2 命中时有效
}

// Stats 缓存统计快照
type Stats struct {
	TotalQueries int64   `json:"total_queries"`
	L1Hits       int64   `json:"l1_hits"`
	L2Hits       int64   `json:"l2_hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"` // 百分比，保留一位小数
}

// Coordinator 缓存协调器
// 组合 L1/L2 两级缓存：先查 L1，未命中且提供了嵌入向量时查 L2，
// L2 命中后回填 L1，使下一次相同查询直接命中 L1。
type Coordinator struct {
	config *Config
	l1     *ExactCache
	l2     *SemanticCache
	group  singleflight.Group
	mc     *metrics.Collector
	logger *zap.Logger

	// 统计计数
	totalQueries atomic.Int64
	l1Hits       atomic.Int64
	l2Hits       atomic.Int64
	misses       atomic.Int64
}

// NewCoordinator 创建缓存协调器
func NewCoordinator(config *Config, mc *metrics.Collector, logger *zap.Logger) *Coordinator {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Coordinator{
		config: config,
		l1:     NewExactCache(config.L1MaxItems, config.L1TTL),
		mc:     mc,
		logger: logger,
	}
	if config.EnableSemantic {
		c.l2 = NewSemanticCache(config.L2MaxItems, config.L2Threshold)
	}
	return c
}

// Get 查询缓存
// 先查 L1；未命中且提供了嵌入向量时查 L2，L2 命中会回填 L1。
func (c *Coordinator) Get(query string, embedding []float64) (*Result, bool) {
	key := HashKey(query)
	c.totalQueries.Add(1)

	// 1. 查 L1
	if response, ok := c.l1.Get(key); ok {
		c.l1Hits.Add(1)
		c.mc.CacheHit(string(TierL1))
		c.logger.Debug("l1 cache hit", zap.String("key", key))
		return &Result{Tier: TierL1, Response: response}, true
	}

	// 2. 查 L2
	if c.l2 != nil && len(embedding) > 0 {
		if m := c.l2.FindSimilar(embedding); m != nil {
			// 回填 L1，下一次相同查询直接命中 L1
			c.l1.Set(key, m.Response)
			c.l2Hits.Add(1)
			c.mc.CacheHit(string(TierL2))
			c.logger.Debug("l2 cache hit",
				zap.String("key", key),
				zap.Float64("similarity", m.Similarity),
			)
			return &Result{Tier: TierL2, Response: m.Response, Similarity: m.Similarity}, true
		}
	}

	c.misses.Add(1)
	c.mc.CacheMiss()
	return nil, false
}

// Set 写入缓存
// 总是写 L1；提供了嵌入向量时同时写 L2。
func (c *Coordinator) Set(query, response string, embedding []float64) {
	key := HashKey(query)
	c.l1.Set(key, response)
	if c.l2 != nil && len(embedding) > 0 {
		c.l2.Set(key, embedding, response)
	}
	c.logger.Debug("cache set", zap.String("key", key), zap.Bool("semantic", len(embedding) > 0))
}

// Invalidate 使指定查询的缓存失效
// 只清除 L1。L2 刻意不动：单条查询失效不应波及相近但不同的未来查询。
func (c *Coordinator) Invalidate(query string) {
	c.l1.Delete(HashKey(query))
}

// ComputeFunc 缓存未命中时的计算函数
type ComputeFunc func(ctx context.Context) (string, error)

// GetOrCompute 查询缓存，未命中时调用 compute 并写入结果。
//
// 默认没有 single-flight 去重：读与写之间存在异步间隙，并发的相同查询
// 可能都未命中并各自调用 compute，最后一次 Set 胜出。配置 Coalesce
// 后使用 singleflight 按键合并并发计算。
func (c *Coordinator) GetOrCompute(ctx context.Context, query string, embedding []float64, compute ComputeFunc) (string, error) {
	if r, ok := c.Get(query, embedding); ok {
		return r.Response, nil
	}

	if c.config.Coalesce {
		v, err, _ := c.group.Do(HashKey(query), func() (any, error) {
			response, err := compute(ctx)
			if err != nil {
				return "", err
			}
			c.Set(query, response, embedding)
			return response, nil
		})
		if err != nil {
			return "", err
		}
		return v.(string), nil
	}

	response, err := compute(ctx)
	if err != nil {
		return "", err
	}
	c.Set(query, response, embedding)
	return response, nil
}

// Stats 返回统计快照
// 命中率 = (L1+L2 命中)/总查询×100，保留一位小数；无查询时为 0。
func (c *Coordinator) Stats() Stats {
	total := c.totalQueries.Load()
	l1 := c.l1Hits.Load()
	l2 := c.l2Hits.Load()

	var rate float64
	if total > 0 {
		rate = math.Round(float64(l1+l2)/float64(total)*1000) / 10
	}

	return Stats{
		TotalQueries: total,
		L1Hits:       l1,
		L2Hits:       l2,
		Misses:       c.misses.Load(),
		HitRate:      rate,
	}
}

// Clear 清空两级缓存（统计计数保留）
func (c *Coordinator) Clear() {
	c.l1.Clear()
	if c.l2 != nil {
		c.l2.Clear()
	}
}
