package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashKey 根据归一化后的查询文本生成缓存键。
// 归一化规则：小写 + 去除首尾空白，因此 "Hello" 与 "hello " 生成相同的键。
// 非加密用途，取 SHA256 前 16 字节已足够避免缓存键碰撞。
func HashKey(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}
