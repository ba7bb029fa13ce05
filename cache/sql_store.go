package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/askall/internal/database"
	"github.com/BaSui01/askall/types"
)

// SQLConfig SQL 后端配置
type SQLConfig struct {
	// 驱动类型: sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// 连接串；sqlite 下为文件路径
	DSN string `yaml:"dsn" env:"DSN"`
	// 连接池
	Pool database.PoolConfig `yaml:"pool" env:"POOL"`
}

// entryRow 数据库行
type entryRow struct {
	Key       string `gorm:"column:cache_key;primaryKey;size:96"`
	Platform  string `gorm:"size:32;index"`
	Question  string `gorm:"type:text"`
	Response  string `gorm:"type:text"`
	CreatedAt time.Time
}

func (entryRow) TableName() string {
	return "response_cache_entries"
}

// SQLStore 基于 gorm 的后端
type SQLStore struct {
	db   *gorm.DB
	pool *database.Pool
}

// sweepBefore 删除 CreatedAt 早于 now-ttl 的行
func sweepBefore(ttl time.Duration) database.Sweeper {
	return func(ctx context.Context, db *gorm.DB) (int64, error) {
		cutoff := time.Now().Add(-ttl).UTC()
		res := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&entryRow{})
		return res.RowsAffected, res.Error
	}
}

// NewSQLStore 按驱动打开数据库并迁移表结构。
// ttl > 0 时连接池按 Pool.SweepInterval 清理过期行。
func NewSQLStore(cfg SQLConfig, ttl time.Duration, logger *zap.Logger) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported cache sql driver: %s (supported: sqlite, postgres, mysql)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if cfg.Pool.MaxOpenConns == 0 {
		cfg.Pool = database.DefaultPoolConfig()
	}
	if err := cfg.Pool.Validate(); err != nil {
		return nil, fmt.Errorf("cache database pool: %w", err)
	}
	var sweep database.Sweeper
	if ttl > 0 {
		sweep = sweepBefore(ttl)
	}
	pool, err := database.Open(db, cfg.Pool, sweep, logger)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&entryRow{}); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate cache table: %w", err)
	}
	return &SQLStore{db: db, pool: pool}, nil
}

// Load 实现 Store.Load
func (s *SQLStore) Load(ctx context.Context, key string) (*Entry, error) {
	var row entryRow
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cache entry: %w", err)
	}
	return &Entry{
		Key:       row.Key,
		Platform:  types.Platform(row.Platform),
		Question:  row.Question,
		Response:  row.Response,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Save 实现 Store.Save（按主键 upsert）
func (s *SQLStore) Save(ctx context.Context, entry *Entry) error {
	row := entryRow{
		Key:       entry.Key,
		Platform:  string(entry.Platform),
		Question:  entry.Question,
		Response:  entry.Response,
		CreatedAt: entry.CreatedAt.UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// Ping 实现 Store.Ping
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Sweep 立即删除过期行，返回删除数
func (s *SQLStore) Sweep(ctx context.Context) (int64, error) {
	return s.pool.Sweep(ctx)
}

// Close 关闭连接池
func (s *SQLStore) Close() error {
	return s.pool.Close()
}
