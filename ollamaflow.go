// Package ollamaflow provides an adaptive request-resilience layer for
// Ollama-backed chat: tiered response caching, failure-aware request gating
// and deferred-request queuing behind a single Execute entry point.
//
// Usage:
//
//	cfg, _ := config.Load("config.yaml")
//	layer, err := ollamaflow.New(cfg, logger)
//	defer layer.Close()
//
//	outcome := layer.Execute(ctx, request, executor, nil)
//
// The layer is built once at application start-up and passed to every
// consumer; there is no process-wide singleton. Its lifecycle, including
// teardown for tests, is owned by the composing application.
package ollamaflow

import (
	"context"
	"fmt"

	"github.com/BaSui01/ollamaflow/cache"
	"github.com/BaSui01/ollamaflow/circuitbreaker"
	"github.com/BaSui01/ollamaflow/config"
	"github.com/BaSui01/ollamaflow/fallback"
	"github.com/BaSui01/ollamaflow/internal/metrics"
	"github.com/BaSui01/ollamaflow/queue"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Layer 弹性层：组合缓存、熔断器、队列与降级协调器
type Layer struct {
	cache       *cache.Coordinator
	breaker     *circuitbreaker.Breaker
	queue       *queue.RequestQueue
	coordinator *fallback.Coordinator
	logger      *zap.Logger
	ownedLogger bool
}

// New 按配置构造弹性层
// cfg 为 nil 时使用默认配置；logger 为 nil 时按 cfg.Log 构建。
func New(cfg *config.Config, logger *zap.Logger) (*Layer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	ownedLogger := false
	if logger == nil {
		var err error
		logger, err = buildLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("构建日志器失败: %w", err)
		}
		ownedLogger = true
	}

	var mc *metrics.Collector
	if cfg.Metrics.Enabled {
		mc = metrics.NewCollector(cfg.Metrics.Namespace, prometheus.DefaultRegisterer, logger)
	}

	cc := cache.NewCoordinator(&cache.Config{
		L1MaxItems:     cfg.Cache.L1MaxItems,
		L1TTL:          cfg.Cache.L1TTL,
		L2MaxItems:     cfg.Cache.L2MaxItems,
		L2Threshold:    cfg.Cache.L2Threshold,
		EnableSemantic: cfg.Cache.EnableSemantic,
		Coalesce:       cfg.Cache.Coalesce,
	}, mc, logger)

	br := circuitbreaker.NewBreaker(cfg.Breaker.Name, &circuitbreaker.Config{
		Threshold:        cfg.Breaker.Threshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		HalfOpenRequests: cfg.Breaker.HalfOpenRequests,
	}, logger)
	br.OnStateChange(func(from, to circuitbreaker.State) {
		mc.BreakerState(int(to))
		mc.BreakerTransition(from.String(), to.String())
	})

	q := queue.New(&queue.Config{
		MaxSize: cfg.Queue.MaxSize,
		Timeout: cfg.Queue.Timeout,
	}, mc, logger)

	templates := &fallback.Templates{
		Unavailable: cfg.Templates.Unavailable,
		Overloaded:  cfg.Templates.Overloaded,
		Cached:      cfg.Templates.Cached,
		Queued:      cfg.Templates.Queued,
		NoFallback:  cfg.Templates.NoFallback,
	}

	coordinator := fallback.NewCoordinator(cc, br, q, templates, logger)

	return &Layer{
		cache:       cc,
		breaker:     br,
		queue:       q,
		coordinator: coordinator,
		logger:      logger,
		ownedLogger: ownedLogger,
	}, nil
}

// Execute 执行请求，失败时逐级降级，见 fallback.Coordinator.Execute
func (l *Layer) Execute(ctx context.Context, request string, executor fallback.Executor, opts *fallback.Options) *fallback.Outcome {
	return l.coordinator.Execute(ctx, request, executor, opts)
}

// Cache 返回缓存协调器
func (l *Layer) Cache() *cache.Coordinator { return l.cache }

// Breaker 返回熔断器
func (l *Layer) Breaker() *circuitbreaker.Breaker { return l.breaker }

// Queue 返回请求队列
func (l *Layer) Queue() *queue.RequestQueue { return l.queue }

// Coordinator 返回降级协调器
func (l *Layer) Coordinator() *fallback.Coordinator { return l.coordinator }

// Status 返回聚合状态快照
func (l *Layer) Status() fallback.Status { return l.coordinator.Status() }

// Close 关闭弹性层
// 清空队列（拒绝所有待处理条目）并清空缓存，用于测试与优雅关闭。
func (l *Layer) Close() error {
	l.queue.Clear(queue.ErrQueueCleared)
	l.cache.Clear()
	if l.ownedLogger {
		_ = l.logger.Sync()
	}
	return nil
}

// buildLogger 按日志配置构建 zap 日志器
func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
