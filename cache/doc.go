// 版权所有 2024 OllamaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供 LLM 回复的两级内存缓存：精确匹配层（L1）与语义匹配层（L2），
通过缓存协调器组合为统一的 get/set/invalidate 契约。

# 概述

相同或语义相近的查询在聊天场景中频繁出现。当后端不可用或响应缓慢时，
缓存层可以继续提供此前的回答。本包不做任何持久化：进程重启后缓存为空。

# 核心类型

  - ExactCache：L1 精确匹配缓存。固定容量的 LRU（双向链表，O(1) 操作），
    每次命中都会重置条目的滑动过期时间与最近使用位置。
  - SemanticCache：L2 语义缓存。按插入顺序保存（嵌入向量, 回复）条目，
    通过余弦相似度查找超过阈值的最佳匹配；容量溢出时淘汰插入最早的条目。
  - Coordinator：缓存协调器。先查 L1，未命中且提供了嵌入向量时查 L2，
    L2 命中会回填 L1；维护命中/未命中统计。

# 不变式

  - HashKey 对归一化（小写、去首尾空白）后相同的文本总是生成相同的键。
  - L1 条目只要持续被访问就不会过期（滑动 TTL）。
  - L2 没有 TTL，也没有单条删除：条目只会因容量淘汰或整体清空而消失。
  - Invalidate 只清除 L1。语义条目可能仍服务于其他相近查询，刻意保留。

# 使用方式

	cc := cache.NewCoordinator(cache.DefaultConfig(), nil, logger)
	cc.Set("你好", "你好！有什么可以帮你？", embedding)
	if r, ok := cc.Get("你好", nil); ok {
		fmt.Println(r.Tier, r.Response)
	}
*/
package cache
