// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 指标收集器
//
// 收集弹性层的核心指标：缓存命中/未命中、熔断器状态与状态转换、
// 队列深度与超时。所有方法对 nil 接收者安全，未接入指标的组件
// 可以直接传 nil。
type Collector struct {
	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses prometheus.Counter

	// 熔断器指标
	breakerState       prometheus.Gauge
	breakerTransitions *prometheus.CounterVec

	// 队列指标
	queueDepth      prometheus.Gauge
	queueTimeouts   prometheus.Counter
	queueRejections prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器
//
// reg 为 nil 时使用 prometheus.DefaultRegisterer。测试中传入独立的
// prometheus.NewRegistry() 避免重复注册冲突。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits by tier",
		},
		[]string{"tier"},
	)

	c.cacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
	)

	// 熔断器指标
	c.breakerState = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	c.breakerTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	// 队列指标
	c.queueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of queued requests",
		},
	)

	c.queueTimeouts = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_timeouts_total",
			Help:      "Total number of queued requests that timed out",
		},
	)

	c.queueRejections = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_rejections_total",
			Help:      "Total number of requests rejected because the queue was full",
		},
	)

	return c
}

// CacheHit 记录一次缓存命中
func (c *Collector) CacheHit(tier string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(tier).Inc()
}

// CacheMiss 记录一次缓存未命中
func (c *Collector) CacheMiss() {
	if c == nil {
		return
	}
	c.cacheMisses.Inc()
}

// BreakerState 更新熔断器状态
func (c *Collector) BreakerState(state int) {
	if c == nil {
		return
	}
	c.breakerState.Set(float64(state))
}

// BreakerTransition 记录一次熔断器状态转换
func (c *Collector) BreakerTransition(from, to string) {
	if c == nil {
		return
	}
	c.breakerTransitions.WithLabelValues(from, to).Inc()
}

// QueueDepth 更新队列深度
func (c *Collector) QueueDepth(depth int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

// QueueTimeout 记录一次队列条目超时
func (c *Collector) QueueTimeout() {
	if c == nil {
		return
	}
	c.queueTimeouts.Inc()
}

// QueueRejection 记录一次因队列已满的拒绝
func (c *Collector) QueueRejection() {
	if c == nil {
		return
	}
	c.queueRejections.Inc()
}
