package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

// Store 过期扫描所需的最小持久化契约，由 repository.Repository 实现
type Store interface {
	ListExpiredOpenCoverageRequests(now time.Time) ([]*domain.CoverageRequest, error)
	UpdateCoverageRequest(req *domain.CoverageRequest) error
	GetEmployeeByID(id int64) (*domain.Employee, error)
}

type Notifier interface {
	Notify(msg domain.NotificationMessage)
}

type Board interface {
	RemoveOpenRequest(branchID int64, kind string, requestID int64)
}

// Sweeper 周期性地把截止时间已过、仍处于开放状态的求援请求
// 转移到过期终态。只处理求援请求：换班请求总有人工对手方，
// 不存在自动过期路径
type Sweeper struct {
	cfg      *config.Config
	store    Store
	notifier Notifier
	board    Board

	done chan struct{}
}

func New(cfg *config.Config, store Store, notifier Notifier, board Board) *Sweeper {
	return &Sweeper{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		board:    board,
		done:     make(chan struct{}),
	}
}

// Start 启动后台扫描循环，直到 ctx 取消或 Stop 被调用
func (s *Sweeper) Start(ctx context.Context) {
	interval := time.Duration(s.cfg.Sweeper.Interval) * time.Second
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				transitioned, err := s.Sweep(time.Now())
				if err != nil {
					slog.Error("过期扫描失败", "error", err)
					continue
				}
				if len(transitioned) > 0 {
					slog.Info("求援请求已过期", "count", len(transitioned))
				}
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.done)
}

// Sweep 把所有截止时间不晚于 now 的开放求援请求转移到过期态，
// 返回本次成功转移的请求。幂等：已过期的请求不会再次命中查询，
// 与人工操作竞争时版本检查保证只有一个转移能提交，输掉的一方
// 观察到 ErrStaleState 后跳过即可
func (s *Sweeper) Sweep(now time.Time) ([]*domain.CoverageRequest, error) {
	expired, err := s.store.ListExpiredOpenCoverageRequests(now)
	if err != nil {
		return nil, err
	}

	transitioned := make([]*domain.CoverageRequest, 0, len(expired))
	for _, req := range expired {
		if !req.Status.CanTransitionTo(domain.CoverageStatusExpired) {
			continue
		}

		req.Status = domain.CoverageStatusExpired
		if err := s.store.UpdateCoverageRequest(req); err != nil {
			if errors.Is(err, domain.ErrStaleState) {
				// 人工操作抢先提交了转移，放弃这条
				continue
			}
			return transitioned, err
		}

		transitioned = append(transitioned, req)

		requester, err := s.store.GetEmployeeByID(req.RequesterID)
		if err != nil {
			continue
		}

		s.board.RemoveOpenRequest(requester.BranchID, "coverage", req.ID)
		s.notifier.Notify(domain.NotificationMessage{
			Type: domain.NotifyExpired,
			To:   requester.Email,
			Data: domain.RequestEventData{
				RequestKind:   "coverage",
				RequestID:     req.ID,
				RequesterName: requester.FullName,
				Detail:        "求援请求已过期，无人接班",
			},
		})
	}

	return transitioned, nil
}
