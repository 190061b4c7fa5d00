package fallback

import (
	"strconv"
	"strings"
)

// Templates 降级场景的用户可见通知模板
//
// 五种场景：服务不可用、过载（队列已满）、命中缓存（{response} 占位符）、
// 已入队（{position} 占位符）、无可用降级。原始错误文本永远不会出现在
// 通知中，占位符替换契约必须保持。
type Templates struct {
	Unavailable string `yaml:"unavailable"`
	Overloaded  string `yaml:"overloaded"`
	Cached      string `yaml:"cached"`      // {response}
	Queued      string `yaml:"queued"`      // {position}
	NoFallback  string `yaml:"no_fallback"`
}

// DefaultTemplates 返回默认通知模板
func DefaultTemplates() *Templates {
	return &Templates{
		Unavailable: "⚠️ Ollama 服务暂时不可用，请稍后再试。",
		Overloaded:  "⚠️ 当前请求过多，等待队列已满，请稍后再试。",
		Cached:      "📦 服务暂时不可用，以下是此前的缓存回答：\n\n{response}",
		Queued:      "⏳ 服务暂时不可用，你的请求已加入队列（第 {position} 位），服务恢复后会自动处理。",
		NoFallback:  "❌ 服务暂时不可用，且没有可用的降级方案。",
	}
}

// RenderCached 渲染缓存命中通知
func (t *Templates) RenderCached(response string) string {
	return strings.ReplaceAll(t.Cached, "{response}", response)
}

// RenderQueued 渲染入队通知
func (t *Templates) RenderQueued(position int) string {
	return strings.ReplaceAll(t.Queued, "{position}", strconv.Itoa(position))
}

// merge 用默认值填充缺失字段
func (t *Templates) merge(defaults *Templates) {
	if t.Unavailable == "" {
		t.Unavailable = defaults.Unavailable
	}
	if t.Overloaded == "" {
		t.Overloaded = defaults.Overloaded
	}
	if t.Cached == "" {
		t.Cached = defaults.Cached
	}
	if t.Queued == "" {
		t.Queued = defaults.Queued
	}
	if t.NoFallback == "" {
		t.NoFallback = defaults.NoFallback
	}
}
