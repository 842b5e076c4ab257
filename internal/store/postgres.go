// Package store 实现商品记录的PostgreSQL持久化
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/chubarkul/kaspi-parser/internal/models"
	"github.com/chubarkul/kaspi-parser/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// createTableSQL 商品表结构
// url带UNIQUE约束作为去重主键,重复入库时冲突跳过。
const createTableSQL = `
	CREATE TABLE IF NOT EXISTS kaspi_products (
		id SERIAL PRIMARY KEY,
		title TEXT,
		url TEXT UNIQUE,
		price BIGINT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

// insertProductSQL 按url冲突跳过的插入语句
const insertProductSQL = `
	INSERT INTO kaspi_products (title, url, price)
	VALUES ($1, $2, $3)
	ON CONFLICT (url) DO NOTHING`

// Sink 商品持久化接口
type Sink interface {
	// EnsureSchema 确保商品表存在(幂等)
	EnsureSchema(ctx context.Context) error

	// SaveProducts 在单个事务中保存一页商品
	// 返回实际插入数和因URL重复跳过数。事务内任何失败都回滚整页。
	SaveProducts(ctx context.Context, products []*models.ProductRecord) (inserted, skipped int, err error)

	// Close 释放连接池
	Close()
}

// PostgresSink 基于pgx连接池的持久化实现
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink 连接数据库并创建持久化器
// DSN缺少sslmode参数时自动追加sslmode=require(托管数据库普遍要求)。
// 连接后立即Ping验证,失败即为致命错误。
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("数据库连接串(DATABASE_URL)未设置")
	}

	dsn = NormalizeDSN(dsn)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("创建数据库连接池失败: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("数据库连接失败 [%s]: %w", utils.RedactDSN(dsn), err)
	}

	utils.Infof("✅ 数据库连接已建立: %s", utils.RedactDSN(dsn))
	return &PostgresSink{pool: pool}, nil
}

// NormalizeDSN 规范化数据库连接串
// 未指定sslmode时追加sslmode=require。
func NormalizeDSN(dsn string) string {
	if strings.Contains(dsn, "sslmode") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&sslmode=require"
	}
	return dsn + "?sslmode=require"
}

// EnsureSchema 确保商品表存在
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("创建商品表失败: %w", err)
	}
	utils.Infof("✅ 商品表已检查/创建")
	return nil
}

// SaveProducts 在单个事务中批量保存一页商品
// 页是持久化的原子单位: 事务内任何插入失败都回滚整页,已提交的页不受影响。
func (s *PostgresSink) SaveProducts(ctx context.Context, products []*models.ProductRecord) (int, int, error) {
	if len(products) == 0 {
		return 0, 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(insertProductSQL, p.Title, p.URL, p.Price)
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range products {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, 0, fmt.Errorf("插入商品失败: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, 0, fmt.Errorf("关闭批量结果失败: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("提交事务失败: %w", err)
	}

	skipped := len(products) - inserted
	utils.Infof("💾 已保存商品: 插入 %d, 重复跳过 %d", inserted, skipped)
	return inserted, skipped, nil
}

// Close 释放连接池
func (s *PostgresSink) Close() {
	if s.pool != nil {
		s.pool.Close()
		utils.Debugf("数据库连接池已关闭")
	}
}
