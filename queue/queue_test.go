package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue(cfg *Config) *RequestQueue {
	return New(cfg, nil, zap.NewNop())
}

// ---------------------------------------------------------------------------
// Enqueue / 容量
// ---------------------------------------------------------------------------

func TestQueue_Enqueue(t *testing.T) {
	q := newTestQueue(&Config{MaxSize: 10, Timeout: time.Minute})

	t1, err := q.Enqueue("req1")
	require.NoError(t, err)
	assert.NotEmpty(t, t1.ID)
	assert.Equal(t, 1, t1.Position)
	require.NotNil(t, t1.Handle)

	t2, err := q.Enqueue("req2")
	require.NoError(t, err)
	assert.Equal(t, 2, t2.Position)
	assert.NotEqual(t, t1.ID, t2.ID)

	assert.Equal(t, 2, q.Len())
}

func TestQueue_Full(t *testing.T) {
	q := newTestQueue(&Config{MaxSize: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(fmt.Sprintf("req%d", i))
		require.NoError(t, err)
	}

	// 第 MaxSize+1 个请求被拒绝
	_, err := q.Enqueue("overflow")
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 3, q.Len())
}

// ---------------------------------------------------------------------------
// Process（FIFO 排空）
// ---------------------------------------------------------------------------

func TestQueue_ProcessFIFO(t *testing.T) {
	q := newTestQueue(&Config{MaxSize: 10, Timeout: time.Minute})

	tickets := make([]*Ticket, 0, 3)
	for i := 0; i < 3; i++ {
		tk, err := q.Enqueue(fmt.Sprintf("req%d", i))
		require.NoError(t, err)
		tickets = append(tickets, tk)
	}

	var mu sync.Mutex
	var order []string
	q.Process(context.Background(), func(ctx context.Context, payload string) (string, error) {
		mu.Lock()
		order = append(order, payload)
		mu.Unlock()
		return "resp:" + payload, nil
	})

	assert.Equal(t, []string{"req0", "req1", "req2"}, order, "strict FIFO order")
	assert.Equal(t, 0, q.Len())

	// 每个句柄收到对应结果
	for i, tk := range tickets {
		result, err := tk.Handle.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("resp:req%d", i), result)
	}
}

func TestQueue_ProcessHandlerFailure(t *testing.T) {
	q := newTestQueue(&Config{MaxSize: 10, Timeout: time.Minute})

	tk1, _ := q.Enqueue("bad")
	tk2, _ := q.Enqueue("good")

	wantErr := errors.New("handler failed")
	q.Process(context.Background(), func(ctx context.Context, payload string) (string, error) {
		if payload == "bad" {
			return "", wantErr
		}
		return "ok", nil
	})

	// 失败的条目被 reject，后续条目继续处理
	_, err := tk1.Handle.Await(context.Background())
	assert.ErrorIs(t, err, wantErr)

	result, err := tk2.Handle.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestQueue_ProcessReentrant(t *testing.T) {
	q := newTestQueue(&Config{MaxSize: 10, Timeout: time.Minute})

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(fmt.Sprintf("req%d", i))
		require.NoError(t, err)
	}

	var handled atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	go q.Process(context.Background(), func(ctx context.Context, payload string) (string, error) {
		handled.Add(1)
		if handled.Load() == 1 {
			close(started)
			<-release
		}
		return "ok", nil
	})

	<-started
	// 排空进行中，第二次调用是 no-op
	q.Process(context.Background(), func(ctx context.Context, payload string) (string, error) {
		t.Error("re-entrant Process must not run the handler")
		return "", nil
	})
	close(release)

	assert.Eventually(t, func() bool {
		return handled.Load() == 5
	}, time.Second, 10*time.Millisecond)
}

// ---------------------------------------------------------------------------
// 超时
// ---------------------------------------------------------------------------

func TestQueue_EntryTimeout(t *testing.T) {
	q := newTestQueue(&Config{MaxSize: 10, Timeout: 50 * time.Millisecond})

	tk, err := q.Enqueue("req")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = tk.Handle.Await(ctx)
	assert.ErrorIs(t, err, ErrQueueTimeout)
	assert.Equal(t, 0, q.Len(), "timed-out entry removed from queue")
	assert.Equal(t, int64(1), q.Status().Timeouts)
}

func TestQueue_TimeoutPreservesFIFO(t *testing.T) {
	q := newTestQueue(&Config{MaxSize: 10, Timeout: time.Minute})

	// 手工触发中间条目的超时，验证剩余条目的 FIFO 顺序不受影响
	first, _ := q.Enqueue("first")
	second, _ := q.Enqueue("second")
	third, _ := q.Enqueue("third")

	// 直接触发 second 的超时回调
	q.mu.Lock()
	var target *entry
	for _, e := range q.entries {
		if e.payload == "second" {
			target = e
		}
	}
	q.mu.Unlock()
	require.NotNil(t, target)
	target.timer.Stop()
	q.expire(target)

	_, err := second.Handle.Await(context.Background())
	assert.ErrorIs(t, err, ErrQueueTimeout)

	// 剩余条目保持原有顺序
	var order []string
	q.Process(context.Background(), func(ctx context.Context, payload string) (string, error) {
		order = append(order, payload)
		return "ok", nil
	})
	assert.Equal(t, []string{"first", "third"}, order)

	_, err = first.Handle.Await(context.Background())
	assert.NoError(t, err)
	_, err = third.Handle.Await(context.Background())
	assert.NoError(t, err)
}

// ---------------------------------------------------------------------------
// Clear / Status
// ---------------------------------------------------------------------------

func TestQueue_Clear(t *testing.T) {
	q := newTestQueue(&Config{MaxSize: 10, Timeout: time.Minute})

	tk1, _ := q.Enqueue("req1")
	tk2, _ := q.Enqueue("req2")

	reason := errors.New("manual reset")
	q.Clear(reason)

	assert.Equal(t, 0, q.Len())
	_, err := tk1.Handle.Await(context.Background())
	assert.ErrorIs(t, err, reason)
	_, err = tk2.Handle.Await(context.Background())
	assert.ErrorIs(t, err, reason)
}

func TestQueue_ClearNilReason(t *testing.T) {
	q := newTestQueue(nil)

	tk, _ := q.Enqueue("req")
	q.Clear(nil)

	_, err := tk.Handle.Await(context.Background())
	assert.ErrorIs(t, err, ErrQueueCleared)
}

func TestQueue_Status(t *testing.T) {
	q := newTestQueue(&Config{MaxSize: 7, Timeout: time.Minute})

	q.Enqueue("req1")
	q.Enqueue("req2")

	s := q.Status()
	assert.Equal(t, 2, s.Size)
	assert.Equal(t, 7, s.MaxSize)
	assert.False(t, s.Draining)
	assert.Equal(t, int64(0), s.Timeouts)
}

// ---------------------------------------------------------------------------
// Deferred
// ---------------------------------------------------------------------------

func TestDeferred_ResolveOnce(t *testing.T) {
	d := newDeferred()

	d.resolve("first")
	d.reject(errors.New("late")) // no-op

	result, err := d.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", result)
}

func TestDeferred_AwaitContextCancel(t *testing.T) {
	d := newDeferred()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeferred_Done(t *testing.T) {
	d := newDeferred()

	select {
	case <-d.Done():
		t.Fatal("done channel closed before resolve")
	default:
	}

	d.resolve("v")
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed after resolve")
	}
}
