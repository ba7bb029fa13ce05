package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPoolClosed 连接池已关闭
var ErrPoolClosed = errors.New("database pool is closed")

// sweepTimeout 单次清理的时限
const sweepTimeout = 30 * time.Second

// PoolConfig 连接池配置
type PoolConfig struct {
	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 最大打开连接数；sqlite 固定为 1
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 连接最大空闲时间
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
	// 清理过期回答的间隔，0 表示关闭
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// DefaultPoolConfig 缓存读写量很小，连接数保持克制
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    2,
		MaxOpenConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		SweepInterval:   10 * time.Minute,
	}
}

// Validate 检查连接数配置
func (c PoolConfig) Validate() error {
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max_open_conns must be positive, got %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns <= 0 {
		return fmt.Errorf("max_idle_conns must be positive, got %d", c.MaxIdleConns)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must not be negative, got %s", c.SweepInterval)
	}
	return nil
}

// Sweeper 删除过期的缓存行，返回删除行数
type Sweeper func(ctx context.Context, db *gorm.DB) (int64, error)

// Pool 回答缓存表的连接池。
// sweep 不为 nil 且 SweepInterval > 0 时后台定期清理过期行。
type Pool struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	config PoolConfig
	sweep  Sweeper
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

// Open 对 db 应用连接池参数。
// sqlite 只有一个写者：后台清理与回答写入共用一条连接，避免 database is locked。
func Open(db *gorm.DB, config PoolConfig, sweep Sweeper, logger *zap.Logger) (*Pool, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		config.MaxOpenConns, config.MaxIdleConns = 1, 1
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	p := &Pool{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		sweep:  sweep,
		logger: logger.With(zap.String("component", "db_pool"), zap.String("dialect", db.Dialector.Name())),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	if sweep != nil && config.SweepInterval > 0 {
		go p.sweepLoop()
	} else {
		close(p.done)
	}

	p.logger.Debug("database pool initialized",
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Duration("sweep_interval", config.SweepInterval),
	)
	return p, nil
}

// DB 返回 GORM 实例
func (p *Pool) DB() *gorm.DB {
	return p.db
}

// Ping 检查数据库连接
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	return p.sqlDB.PingContext(ctx)
}

// Sweep 立即清理一次过期行
func (p *Pool) Sweep(ctx context.Context) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPoolClosed
	}
	if p.sweep == nil {
		return 0, nil
	}
	return p.sweep(ctx, p.db)
}

// Close 停止后台清理并关闭连接池，可重复调用
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	<-p.done
	p.logger.Debug("closing database pool")
	return p.sqlDB.Close()
}

func (p *Pool) sweepLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		removed, err := p.Sweep(ctx)
		cancel()
		switch {
		case errors.Is(err, ErrPoolClosed):
			return
		case err != nil:
			p.logger.Warn("sweep expired responses failed", zap.Error(err))
		case removed > 0:
			p.logger.Info("swept expired responses",
				zap.Int64("removed", removed),
				zap.Int("open_connections", p.sqlDB.Stats().OpenConnections),
			)
		}
	}
}
