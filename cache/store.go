package cache

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/askall/types"
)

// ErrNotFound 后端中不存在该键
var ErrNotFound = errors.New("cache entry not found")

// Entry 缓存条目
type Entry struct {
	Key       string         `json:"key"`
	Platform  types.Platform `json:"platform"`
	Question  string         `json:"question"`
	Response  string         `json:"response"`
	CreatedAt time.Time      `json:"created_at"`
}

// Expired 判断条目在 now 时刻是否已超出有效期
func (e *Entry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) >= ttl
}

// Store 持久化后端
type Store interface {
	// Load 读取条目；不存在时返回 ErrNotFound
	Load(ctx context.Context, key string) (*Entry, error)
	// Save 写入条目，同键覆盖
	Save(ctx context.Context, entry *Entry) error
	// Ping 检查后端可用性
	Ping(ctx context.Context) error
	// Close 释放后端资源
	Close() error
}
