// Package circuitbreaker 提供失败驱动的三态熔断器（Closed/Open/HalfOpen），
// 用于在后端持续失败时跳过调用，冷却期过后试探性恢复。
package circuitbreaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// Threshold 连续失败次数阈值（触发熔断）
	Threshold int `yaml:"threshold"`

	// ResetTimeout 熔断恢复等待时间（从 Open -> HalfOpen）
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenRequests 半开状态下允许的试探请求数
	HalfOpenRequests int `yaml:"half_open_requests"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Threshold:        3,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// StateChange 状态变更回调
type StateChange func(from, to State)

// Snapshot 熔断器状态快照（只读）
type Snapshot struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	HalfOpenUsed    int       `json:"half_open_used"`
}

// Breaker 熔断器
//
// 调用方必须在执行被保护操作前调用 CanRequest，并在操作完成后调用
// RecordSuccess/RecordFailure。Breaker 本身从不返回错误：CanRequest
// 为 false 仅表示此刻应跳过调用。
//
// Open -> HalfOpen 的转换只在 CanRequest 中惰性发生；除此之外
// CanRequest 是纯读取。进程启动时总是从 Closed、零失败开始，状态不持久化。
type Breaker struct {
	name   string
	config *Config
	logger *zap.Logger

	mu              sync.Mutex
	state           State
	failureCount    int       // 连续失败次数
	lastFailureTime time.Time // 最后失败时间
	halfOpenUsed    int       // 半开状态下已用的试探次数
	observers       []StateChange
}

// NewBreaker 创建熔断器
// name 标识被保护的逻辑后端，每个后端在进程启动时创建一次。
func NewBreaker(name string, config *Config, logger *zap.Logger) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// 参数校验
	if config.Threshold <= 0 {
		config.Threshold = 3
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenRequests <= 0 {
		config.HalfOpenRequests = 1
	}

	return &Breaker{
		name:   name,
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// OnStateChange 注册状态变更观察者
// 零个或多个观察者在每次状态转换后被通知。
func (b *Breaker) OnStateChange(fn StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

// CanRequest 报告此刻是否允许调用被保护的操作
//
// Closed 总是允许；Open 在冷却期过后转入 HalfOpen 并发放试探名额，
// 否则拒绝；HalfOpen 在试探名额用尽前允许，每次调用消耗一个名额。
func (b *Breaker) CanRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(b.lastFailureTime) >= b.config.ResetTimeout {
			b.setState(StateHalfOpen)
			b.halfOpenUsed = 0
			b.logger.Info("熔断器进入半开状态", zap.String("breaker", b.name))
			// 转入半开后立即发放一个试探名额
			b.halfOpenUsed++
			return true
		}
		return false

	case StateHalfOpen:
		if b.halfOpenUsed < b.config.HalfOpenRequests {
			b.halfOpenUsed++
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess 记录一次成功调用
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount = 0

	case StateHalfOpen:
		// 试探成功，恢复到关闭状态
		b.logger.Info("熔断器恢复正常",
			zap.String("breaker", b.name),
			zap.Int("half_open_used", b.halfOpenUsed),
		)
		b.setState(StateClosed)
		b.failureCount = 0
		b.halfOpenUsed = 0

	case StateOpen:
		// 打开状态不应该有调用
		b.logger.Warn("熔断器打开状态收到成功响应", zap.String("breaker", b.name))
	}
}

// RecordFailure 记录一次失败调用
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.Threshold {
			b.logger.Warn("熔断器打开",
				zap.String("breaker", b.name),
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.Threshold),
			)
			b.setState(StateOpen)
		}

	case StateHalfOpen:
		// 试探失败，重新打开
		b.logger.Warn("熔断器半开状态失败，重新打开", zap.String("breaker", b.name))
		b.setState(StateOpen)
		b.halfOpenUsed = 0

	case StateOpen:
		// 打开状态不应该有调用
		b.logger.Warn("熔断器打开状态收到失败响应", zap.String("breaker", b.name))
	}
}

// State 返回当前状态
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot 返回状态快照
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:            b.name,
		State:           b.state,
		FailureCount:    b.failureCount,
		LastFailureTime: b.lastFailureTime,
		HalfOpenUsed:    b.halfOpenUsed,
	}
}

// Reset 手动重置熔断器到关闭状态
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldState := b.state
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenUsed = 0

	b.logger.Info("熔断器已重置",
		zap.String("breaker", b.name),
		zap.String("from_state", oldState.String()),
	)

	if oldState != StateClosed {
		b.notify(oldState, StateClosed)
	}
}

// setState 设置状态并通知观察者，调用方必须持有锁
func (b *Breaker) setState(newState State) {
	oldState := b.state
	b.state = newState
	b.notify(oldState, newState)
}

// notify 通知观察者，调用方必须持有锁
func (b *Breaker) notify(from, to State) {
	for _, fn := range b.observers {
		go fn(from, to)
	}
}
