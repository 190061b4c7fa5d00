// =============================================================================
// 📦 OllamaFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Cache:     DefaultCacheConfig(),
		Breaker:   DefaultBreakerConfig(),
		Queue:     DefaultQueueConfig(),
		Templates: TemplatesConfig{}, // 留空字段使用 fallback.DefaultTemplates 的文案
		Log:       DefaultLogConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		L1MaxItems:     100,
		L1TTL:          5 * time.Minute,
		L2MaxItems:     500,
		L2Threshold:    0.92,
		EnableSemantic: true,
		Coalesce:       false,
	}
}

// DefaultBreakerConfig 返回默认熔断器配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "ollama",
		Threshold:        3,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// DefaultQueueConfig 返回默认队列配置
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxSize: 50,
		Timeout: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "console",
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "ollamaflow",
	}
}
