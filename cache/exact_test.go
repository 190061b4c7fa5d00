package cache

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestExactCache_Basic(t *testing.T) {
	c := NewExactCache(3, time.Minute)

	c.Set("key1", "v1")

	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "v1" {
		t.Errorf("expected v1, got %s", got)
	}
}

func TestExactCache_Eviction(t *testing.T) {
	c := NewExactCache(2, time.Minute)

	c.Set("key1", "v1")
	c.Set("key2", "v2")
	c.Set("key3", "v3") // 应该驱逐 key1

	if _, ok := c.Get("key1"); ok {
		t.Error("key1 should have been evicted")
	}
	if _, ok := c.Get("key2"); !ok {
		t.Error("key2 should exist")
	}
	if _, ok := c.Get("key3"); !ok {
		t.Error("key3 should exist")
	}
}

func TestExactCache_AccessProtectsFromEviction(t *testing.T) {
	c := NewExactCache(2, time.Minute)

	c.Set("key1", "v1")
	c.Set("key2", "v2")

	// 访问 key1 使其成为最近使用，下次插入应驱逐 key2
	if _, ok := c.Get("key1"); !ok {
		t.Fatal("expected cache hit")
	}
	c.Set("key3", "v3")

	if _, ok := c.Get("key1"); !ok {
		t.Error("recently accessed key1 should survive")
	}
	if _, ok := c.Get("key2"); ok {
		t.Error("key2 should have been evicted")
	}
}

func TestExactCache_SlidingTTL(t *testing.T) {
	c := NewExactCache(10, 40*time.Millisecond)

	c.Set("key1", "v1")

	// 在过期前持续访问，截止时间不断后移
	for i := 0; i < 3; i++ {
		time.Sleep(25 * time.Millisecond)
		if _, ok := c.Get("key1"); !ok {
			t.Fatalf("access %d: entry should still be alive (sliding TTL)", i)
		}
	}

	// 停止访问后超过 TTL，条目过期
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("key1"); ok {
		t.Error("expected cache miss after TTL")
	}
}

func TestExactCache_Overwrite(t *testing.T) {
	c := NewExactCache(2, time.Minute)

	c.Set("key1", "v1")
	c.Set("key1", "v2")

	got, _ := c.Get("key1")
	if got != "v2" {
		t.Errorf("expected overwrite to win, got %s", got)
	}
	if c.Len() != 1 {
		t.Errorf("overwrite should not grow cache, len=%d", c.Len())
	}
}

// 属性测试：任意 Set/Get/Delete 序列下条目数永远不超过容量
func TestExactCache_CapacityInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 16).Draw(t, "capacity")
		c := NewExactCache(capacity, time.Minute)

		ops := rapid.IntRange(0, 200).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			key := fmt.Sprintf("key%d", rapid.IntRange(0, 31).Draw(t, "key"))
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				c.Set(key, "v")
			case 1:
				c.Get(key)
			case 2:
				c.Delete(key)
			}

			if c.Len() > capacity {
				t.Fatalf("cache size %d exceeds capacity %d", c.Len(), capacity)
			}
		}
	})
}
