package fallback

import (
	"context"
	"errors"
	"sync"

	"github.com/BaSui01/ollamaflow/cache"
	"github.com/BaSui01/ollamaflow/circuitbreaker"
	"github.com/BaSui01/ollamaflow/queue"

	"go.uber.org/zap"
)

// ErrServiceUnavailable 没有降级方案时向调用方报告的兜底错误
var ErrServiceUnavailable = errors.New("service unavailable")

// Executor 由调用方提供的实际执行函数
// 返回错误表示本次后端调用失败。
type Executor func(ctx context.Context, request string) (string, error)

// Source 结果来源
type Source string

const (
	// SourceLive 实时调用执行器获得
	SourceLive Source = "live"
	// SourceCache 来自缓存
	SourceCache Source = "cache"
)

// Options Execute 的可选参数
// Query 为空时跳过所有缓存读写；Embedding 为空时只使用 L1。
type Options struct {
	Query      string
	Embedding  []float64
	AllowCache bool
	AllowQueue bool
}

// DefaultOptions 返回默认参数（允许缓存与排队）
func DefaultOptions() *Options {
	return &Options{AllowCache: true, AllowQueue: true}
}

// Outcome Execute 的带标签结果
// Execute 从不向调用方抛出原始错误，每种出路都是一个 Outcome。
type Outcome struct {
	Success bool
	Result  string
	Source  Source

	// 排队结果：调用方需另行等待 Handle 获知最终结果
	Queued   bool
	QueueID  string
	Position int
	Handle   *queue.Deferred

	// Message 面向最终用户的通知文本（降级路径时设置）
	Message string
	// Err 原始错误（仅供日志/诊断，不面向最终用户）
	Err error
}

// Status 弹性层聚合状态快照
type Status struct {
	Breaker circuitbreaker.Snapshot `json:"breaker"`
	Cache   cache.Stats             `json:"cache"`
	Queue   queue.Status            `json:"queue"`
}

// Coordinator 降级协调器
//
// 把熔断器、两级缓存与请求队列编排为单一入口：实时调用被熔断器把关，
// 失败或被拒后依次降级到缓存、队列，最后是模板化的拒绝通知。成功的
// 实时调用会异步触发队列排空。
//
// 协调器只通过各组件的公开操作使用它们，从不直接修改其内部状态。
type Coordinator struct {
	cache     *cache.Coordinator
	breaker   *circuitbreaker.Breaker
	queue     *queue.RequestQueue
	templates *Templates
	logger    *zap.Logger

	obsMu             sync.Mutex
	recoveryObservers []func()
}

// NewCoordinator 创建降级协调器
// 所有依赖由组合方显式构造并注入，协调器不持有任何全局单例。
func NewCoordinator(
	cc *cache.Coordinator,
	br *circuitbreaker.Breaker,
	q *queue.RequestQueue,
	templates *Templates,
	logger *zap.Logger,
) *Coordinator {
	if templates == nil {
		templates = DefaultTemplates()
	} else {
		templates.merge(DefaultTemplates())
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		cache:     cc,
		breaker:   br,
		queue:     q,
		templates: templates,
		logger:    logger,
	}
}

// OnRecovery 注册恢复观察者
// 每次成功的队列排空完成后，零个或多个观察者被通知。
func (c *Coordinator) OnRecovery(fn func()) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.recoveryObservers = append(c.recoveryObservers, fn)
}

// Execute 执行请求，失败时按 缓存 -> 队列 -> 模板化拒绝 依次降级
//
// 熔断器拒绝时完全跳过执行器。执行器成功时记录成功、写缓存（提供了
// Query 时）、并在队列非空时异步触发排空，当前调用不被阻塞。opts 为
// nil 时使用 DefaultOptions。
func (c *Coordinator) Execute(ctx context.Context, request string, executor Executor, opts *Options) *Outcome {
	if opts == nil {
		opts = DefaultOptions()
	}

	var execErr error
	if c.breaker.CanRequest() {
		result, err := executor(ctx, request)
		if err == nil {
			c.breaker.RecordSuccess()
			if opts.Query != "" {
				c.cache.Set(opts.Query, result, opts.Embedding)
			}
			if c.queue.Len() > 0 {
				go c.drain(executor)
			}
			return &Outcome{Success: true, Result: result, Source: SourceLive}
		}

		c.breaker.RecordFailure()
		execErr = err
		c.logger.Warn("执行器调用失败，进入降级流程", zap.Error(err))
	} else {
		c.logger.Debug("熔断器拒绝请求，跳过执行器")
	}

	return c.unavailable(request, execErr, opts)
}

// unavailable 后端不可用时的降级处理，依次尝试缓存、队列、拒绝通知
func (c *Coordinator) unavailable(request string, execErr error, opts *Options) *Outcome {
	// a. 缓存降级
	if opts.AllowCache && opts.Query != "" {
		if r, ok := c.cache.Get(opts.Query, opts.Embedding); ok {
			c.logger.Info("降级命中缓存",
				zap.String("tier", string(r.Tier)),
				zap.Float64("similarity", r.Similarity),
			)
			return &Outcome{
				Success: true,
				Result:  r.Response,
				Source:  SourceCache,
				Message: c.templates.RenderCached(r.Response),
			}
		}
	}

	// b. 排队降级
	if opts.AllowQueue {
		ticket, err := c.queue.Enqueue(request)
		if err == nil {
			return &Outcome{
				Success:  false,
				Queued:   true,
				QueueID:  ticket.ID,
				Position: ticket.Position,
				Handle:   ticket.Handle,
				Message:  c.templates.RenderQueued(ticket.Position),
			}
		}
		if errors.Is(err, queue.ErrQueueFull) {
			return &Outcome{
				Success: false,
				Message: c.templates.Overloaded,
				Err:     execErr,
			}
		}
	}

	// c. 无可用降级
	if execErr == nil {
		execErr = ErrServiceUnavailable
	}
	return &Outcome{
		Success: false,
		Message: c.templates.NoFallback,
		Err:     execErr,
	}
}

// drain 排空队列并通知恢复观察者
func (c *Coordinator) drain(executor Executor) {
	c.queue.Process(context.Background(), func(ctx context.Context, payload string) (string, error) {
		return executor(ctx, payload)
	})

	c.obsMu.Lock()
	observers := make([]func(), len(c.recoveryObservers))
	copy(observers, c.recoveryObservers)
	c.obsMu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// Status 返回聚合状态快照
func (c *Coordinator) Status() Status {
	return Status{
		Breaker: c.breaker.Snapshot(),
		Cache:   c.cache.Stats(),
		Queue:   c.queue.Status(),
	}
}

// Reset 手动重置弹性层：熔断器回到关闭状态、队列清空、缓存清空
func (c *Coordinator) Reset() {
	c.breaker.Reset()
	c.queue.Clear(queue.ErrQueueCleared)
	c.cache.Clear()
	c.logger.Info("弹性层已手动重置")
}
