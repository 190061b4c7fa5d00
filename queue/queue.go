// Package queue 提供带背压的有界 FIFO 请求队列。
//
// 后端不可用时无法即时处理的请求进入队列等待恢复后排空。队列容量是
// 唯一的背压机制：队列满后新请求被直接拒绝，内存占用有界。每个条目
// 携带独立的超时定时器与延迟结果句柄；排队条目没有单独的取消路径，
// 只能因自身超时或整体 Clear 而出队。
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/ollamaflow/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull 队列已满，请求被拒绝
	ErrQueueFull = errors.New("request queue full")
	// ErrQueueTimeout 条目在排空前超时
	ErrQueueTimeout = errors.New("queued request timed out")
	// ErrQueueCleared 队列被整体清空
	ErrQueueCleared = errors.New("request queue cleared")
)

// Config 队列配置
type Config struct {
	// MaxSize 队列最大长度
	MaxSize int `yaml:"max_size"`
	// Timeout 单个条目的等待超时
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxSize: 50,
		Timeout: 5 * time.Minute,
	}
}

// entry 队列条目
type entry struct {
	id         string
	payload    string
	enqueuedAt time.Time
	deferred   *Deferred
	timer      *time.Timer
}

// Ticket 入队凭据
type Ticket struct {
	ID       string
	Position int // 1 起始的队列位置
	Handle   *Deferred
}

// Handler 排空队列时处理单个条目的函数
type Handler func(ctx context.Context, payload string) (string, error)

// Status 队列状态快照
type Status struct {
	Size     int   `json:"size"`
	MaxSize  int   `json:"max_size"`
	Draining bool  `json:"draining"`
	Timeouts int64 `json:"timeouts"`
}

// RequestQueue 有界 FIFO 请求队列
type RequestQueue struct {
	config *Config
	mc     *metrics.Collector
	logger *zap.Logger

	mu       sync.Mutex
	entries  []*entry
	draining atomic.Bool
	timeouts atomic.Int64
}

// New 创建请求队列
func New(config *Config, mc *metrics.Collector, logger *zap.Logger) *RequestQueue {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 50
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RequestQueue{
		config: config,
		mc:     mc,
		logger: logger,
	}
}

// Enqueue 请求入队
// 队列已满时返回 ErrQueueFull。接受的条目立即启动超时定时器：
// 在被排空前超时的条目会出队，并以 ErrQueueTimeout 拒绝其结果句柄。
func (q *RequestQueue) Enqueue(payload string) (*Ticket, error) {
	q.mu.Lock()

	if len(q.entries) >= q.config.MaxSize {
		q.mu.Unlock()
		q.mc.QueueRejection()
		q.logger.Warn("队列已满，拒绝请求", zap.Int("max_size", q.config.MaxSize))
		return nil, ErrQueueFull
	}

	e := &entry{
		id:         uuid.NewString(),
		payload:    payload,
		enqueuedAt: time.Now(),
		deferred:   newDeferred(),
	}
	e.timer = time.AfterFunc(q.config.Timeout, func() {
		q.expire(e)
	})

	q.entries = append(q.entries, e)
	position := len(q.entries)
	q.mu.Unlock()

	q.mc.QueueDepth(position)
	q.logger.Debug("请求已入队",
		zap.String("id", e.id),
		zap.Int("position", position),
	)

	return &Ticket{ID: e.id, Position: position, Handle: e.deferred}, nil
}

// expire 条目超时：从队列移除并拒绝其结果句柄
// 独立于同步调用流触发，不影响剩余条目的 FIFO 顺序。
func (q *RequestQueue) expire(e *entry) {
	q.mu.Lock()
	removed := false
	for i, cur := range q.entries {
		if cur == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			removed = true
			break
		}
	}
	depth := len(q.entries)
	q.mu.Unlock()

	if !removed {
		// 已被排空或清空
		return
	}

	q.timeouts.Add(1)
	q.mc.QueueTimeout()
	q.mc.QueueDepth(depth)
	e.deferred.reject(ErrQueueTimeout)
	q.logger.Warn("排队请求超时",
		zap.String("id", e.id),
		zap.Duration("waited", time.Since(e.enqueuedAt)),
	)
}

// Process 按 FIFO 顺序排空队列
//
// 逐条处理：等待 handler 完成后才取下一条。handler 成功则 resolve
// 条目的结果句柄，失败则 reject。可重入：排空已在进行时再次调用是
// no-op。ctx 取消时停止排空，剩余条目留在队列中。
func (q *RequestQueue) Process(ctx context.Context, handler Handler) {
	if !q.draining.CompareAndSwap(false, true) {
		return
	}
	defer q.draining.Store(false)

	for {
		if ctx.Err() != nil {
			return
		}

		q.mu.Lock()
		if len(q.entries) == 0 {
			q.mu.Unlock()
			return
		}
		e := q.entries[0]
		q.entries = q.entries[1:]
		depth := len(q.entries)
		q.mu.Unlock()

		e.timer.Stop()
		q.mc.QueueDepth(depth)

		result, err := handler(ctx, e.payload)
		if err != nil {
			e.deferred.reject(err)
			q.logger.Warn("排队请求处理失败",
				zap.String("id", e.id),
				zap.Error(err),
			)
			continue
		}

		e.deferred.resolve(result)
		q.logger.Debug("排队请求已处理",
			zap.String("id", e.id),
			zap.Duration("waited", time.Since(e.enqueuedAt)),
		)
	}
}

// Clear 清空队列
// 每个待处理条目的结果句柄都以 reason 被拒绝；reason 为 nil 时使用
// ErrQueueCleared。
func (q *RequestQueue) Clear(reason error) {
	if reason == nil {
		reason = ErrQueueCleared
	}

	q.mu.Lock()
	cleared := q.entries
	q.entries = nil
	q.mu.Unlock()

	for _, e := range cleared {
		e.timer.Stop()
		e.deferred.reject(reason)
	}

	q.mc.QueueDepth(0)
	if len(cleared) > 0 {
		q.logger.Info("队列已清空", zap.Int("cleared", len(cleared)), zap.Error(reason))
	}
}

// Len 返回当前队列长度
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Status 返回队列状态快照
func (q *RequestQueue) Status() Status {
	q.mu.Lock()
	size := len(q.entries)
	q.mu.Unlock()

	return Status{
		Size:     size,
		MaxSize:  q.config.MaxSize,
		Draining: q.draining.Load(),
		Timeouts: q.timeouts.Load(),
	}
}
