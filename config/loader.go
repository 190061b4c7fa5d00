// =============================================================================
// 📦 OllamaFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.Load("config.yaml")
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是弹性层的完整配置结构
type Config struct {
	// Cache 缓存配置
	Cache CacheConfig `yaml:"cache"`

	// Breaker 熔断器配置
	Breaker BreakerConfig `yaml:"breaker"`

	// Queue 请求队列配置
	Queue QueueConfig `yaml:"queue"`

	// Templates 降级通知模板（留空的字段使用默认文案）
	Templates TemplatesConfig `yaml:"templates"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	// L1 最大条目数
	L1MaxItems int `yaml:"l1_max_items"`
	// L1 滑动过期时间
	L1TTL time.Duration `yaml:"l1_ttl"`
	// L2 最大条目数
	L2MaxItems int `yaml:"l2_max_items"`
	// L2 余弦相似度阈值
	L2Threshold float64 `yaml:"l2_threshold"`
	// 是否启用 L2 语义层
	EnableSemantic bool `yaml:"enable_semantic"`
	// 是否合并并发的同键计算
	Coalesce bool `yaml:"coalesce"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	// 被保护的逻辑后端名
	Name string `yaml:"name"`
	// 连续失败次数阈值
	Threshold int `yaml:"threshold"`
	// 熔断恢复等待时间
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	// 半开状态下允许的试探请求数
	HalfOpenRequests int `yaml:"half_open_requests"`
}

// QueueConfig 请求队列配置
type QueueConfig struct {
	// 队列最大长度
	MaxSize int `yaml:"max_size"`
	// 单个条目的等待超时
	Timeout time.Duration `yaml:"timeout"`
}

// TemplatesConfig 降级通知模板配置
type TemplatesConfig struct {
	Unavailable string `yaml:"unavailable"`
	Overloaded  string `yaml:"overloaded"`
	Cached      string `yaml:"cached"`
	Queued      string `yaml:"queued"`
	NoFallback  string `yaml:"no_fallback"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level"`
	// 输出格式: json, console
	Format string `yaml:"format"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用 Prometheus 指标
	Enabled bool `yaml:"enabled"`
	// 指标命名空间
	Namespace string `yaml:"namespace"`
}

// Load 加载配置
// path 为空或文件不存在时返回默认配置；YAML 中省略的字段保留默认值，
// 最后应用环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv 应用环境变量覆盖（OLLAMAFLOW_ 前缀）
func applyEnv(cfg *Config) {
	if v := os.Getenv("OLLAMAFLOW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("OLLAMAFLOW_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("OLLAMAFLOW_BREAKER_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Breaker.Threshold = n
		}
	}
	if v := os.Getenv("OLLAMAFLOW_BREAKER_RESET_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Breaker.ResetTimeout = d
		}
	}
	if v := os.Getenv("OLLAMAFLOW_QUEUE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Queue.MaxSize = n
		}
	}
	if v := os.Getenv("OLLAMAFLOW_QUEUE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Queue.Timeout = d
		}
	}
	if v := os.Getenv("OLLAMAFLOW_CACHE_L2_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.Cache.L2Threshold = f
		}
	}
}
