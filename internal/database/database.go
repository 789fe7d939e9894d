// Package database 提供数据库连接和管理
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx 驱动，驱动名 "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL 驱动，驱动名 "postgres"

	"github.com/paiban/shiftopt/internal/config"
	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/logger"
)

// DB 数据库连接封装
type DB struct {
	*sqlx.DB
	slowQuery time.Duration
}

// New 按配置的驱动创建连接并测试连通性
func New(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "打开数据库连接失败")
	}

	// 配置连接池
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "数据库连接测试失败")
	}

	logger.Info().
		Str("driver", cfg.Driver).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("数据库连接成功")

	return Wrap(db, cfg.SlowQuery), nil
}

// Wrap 包装已有连接，测试中配合 sqlmock 使用
func Wrap(db *sqlx.DB, slowQuery time.Duration) *DB {
	if slowQuery <= 0 {
		slowQuery = 100 * time.Millisecond
	}
	return &DB{DB: db, slowQuery: slowQuery}
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB != nil {
		logger.Info().Msg("关闭数据库连接")
		return db.DB.Close()
	}
	return nil
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 执行事务，fn 返回错误或 panic 时回滚
func (db *DB) Transaction(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "开始事务失败")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, fmt.Sprintf("事务回滚失败: %v", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "事务提交失败")
	}
	return nil
}

// SelectContext 查询多行，超过阈值记录慢SQL
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := db.DB.SelectContext(ctx, dest, query, args...)
	db.observe(ctx, query, time.Since(start))
	return err
}

// GetContext 查询单行
func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := db.DB.GetContext(ctx, dest, query, args...)
	db.observe(ctx, query, time.Since(start))
	return err
}

func (db *DB) observe(ctx context.Context, query string, duration time.Duration) {
	if duration > db.slowQuery {
		logger.WithContext(ctx).Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", duration).
			Msg("慢SQL查询")
	}
}

// truncateQuery 截断长查询
func truncateQuery(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}
