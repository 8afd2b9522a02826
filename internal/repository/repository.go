package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

func (r *Repository) txCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
}

// wrapRead 把读路径的错误映射为领域错误：
// 查不到记录返回 ErrNotFound，其余一律视为存储层失败
func wrapRead(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return &domain.PersistenceError{Op: op, Cause: err}
}

// wrapWrite 把带版本检查的写路径的错误映射为领域错误：
// 版本不匹配时 RETURNING 扫不到行，表现为 ErrNoRows，映射为 ErrStaleState
func wrapWrite(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrStaleState
	}
	return &domain.PersistenceError{Op: op, Cause: err}
}
