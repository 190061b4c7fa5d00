package queue

import (
	"context"
	"sync"
)

// Deferred 延迟结果句柄
//
// 恰好被 resolve 或 reject 一次：要么由队列排空的处理结果，要么由条目
// 自身的超时。排队请求的原始调用方通过 Await 获知最终结果。
type Deferred struct {
	once   sync.Once
	done   chan struct{}
	result string
	err    error
}

func newDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Await 阻塞直到结果就绪或 ctx 结束
func (d *Deferred) Await(ctx context.Context) (string, error) {
	select {
	case <-d.done:
		return d.result, d.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Done 返回结果就绪时关闭的通道
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

func (d *Deferred) resolve(result string) {
	d.once.Do(func() {
		d.result = result
		close(d.done)
	})
}

func (d *Deferred) reject(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}
