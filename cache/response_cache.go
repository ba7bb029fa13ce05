package cache

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/BaSui01/askall/types"
)

// DefaultTTL 答案有效期
const DefaultTTL = 24 * time.Hour

// Observer 接收缓存事件（由 metrics.Collector 实现）
type Observer interface {
	RecordCacheHit(tier string)
	RecordCacheMiss()
	RecordCacheError(op string)
}

// ResponseCache 答案缓存
type ResponseCache struct {
	store    Store
	local    *lru.Cache[string, *Entry]
	ttl      time.Duration
	now      func() time.Time
	observer Observer
	logger   *zap.Logger
}

// Option 配置 ResponseCache
type Option func(*ResponseCache)

// WithTTL 设置有效期
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocalSize 启用进程内 LRU 前置层，size <= 0 表示关闭
func WithLocalSize(size int) Option {
	return func(c *ResponseCache) {
		if size <= 0 {
			c.local = nil
			return
		}
		local, err := lru.New[string, *Entry](size)
		if err == nil {
			c.local = local
		}
	}
}

// WithObserver 设置事件观察者
func WithObserver(o Observer) Option {
	return func(c *ResponseCache) {
		c.observer = o
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(c *ResponseCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 创建答案缓存；store 为 nil 时仅使用本地层（若启用）
func New(store Store, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "response_cache"))
	return c
}

// TTL 返回有效期
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}

// Get 读取答案；不存在、已过期或后端出错时返回 false
func (c *ResponseCache) Get(ctx context.Context, platform types.Platform, question string) (string, bool) {
	key := Key(platform, question)
	now := c.now()

	if c.local != nil {
		if entry, ok := c.local.Get(key); ok {
			if c.valid(entry, question, now) {
				c.hit("local")
				return entry.Response, true
			}
			c.local.Remove(key)
		}
	}

	if c.store == nil {
		c.miss()
		return "", false
	}

	entry, err := c.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache read failed, treating as miss",
				zap.String("platform", string(platform)),
				zap.String("key", key),
				zap.Error(err))
			c.recordError("get")
		}
		c.miss()
		return "", false
	}

	if !c.valid(entry, question, now) {
		c.logger.Debug("cache entry stale",
			zap.String("key", key),
			zap.Time("created_at", entry.CreatedAt))
		c.miss()
		return "", false
	}

	if c.local != nil {
		c.local.Add(key, entry)
	}
	c.hit("store")
	return entry.Response, true
}

// Put 写入答案；后端出错时仅记录日志
func (c *ResponseCache) Put(ctx context.Context, platform types.Platform, question, response string) {
	entry := &Entry{
		Key:       Key(platform, question),
		Platform:  platform,
		Question:  question,
		Response:  response,
		CreatedAt: c.now(),
	}

	if c.local != nil {
		c.local.Add(entry.Key, entry)
	}
	if c.store == nil {
		return
	}

	if err := c.store.Save(ctx, entry); err != nil {
		c.logger.Warn("cache write failed, ignoring",
			zap.String("platform", string(platform)),
			zap.String("key", entry.Key),
			zap.Error(err))
		c.recordError("put")
		return
	}
	c.logger.Debug("cache set", zap.String("key", entry.Key))
}

// Ping 检查后端，供 /ready 使用
func (c *ResponseCache) Ping(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Ping(ctx)
}

// Close 关闭后端
func (c *ResponseCache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// valid 同时校验有效期与问题原文，哈希碰撞时按未命中处理
func (c *ResponseCache) valid(entry *Entry, question string, now time.Time) bool {
	if entry == nil || entry.Expired(now, c.ttl) {
		return false
	}
	return entry.Question == "" || entry.Question == question
}

func (c *ResponseCache) hit(tier string) {
	if c.observer != nil {
		c.observer.RecordCacheHit(tier)
	}
}

func (c *ResponseCache) miss() {
	if c.observer != nil {
		c.observer.RecordCacheMiss()
	}
}

func (c *ResponseCache) recordError(op string) {
	if c.observer != nil {
		c.observer.RecordCacheError(op)
	}
}
