package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

type mockStore struct {
	requests  map[int64]*domain.CoverageRequest
	employees map[int64]*domain.Employee

	updateErr error
}

func (m *mockStore) ListExpiredOpenCoverageRequests(now time.Time) ([]*domain.CoverageRequest, error) {
	result := make([]*domain.CoverageRequest, 0)
	for _, req := range m.requests {
		if req.Status == domain.CoverageStatusOpen && !req.ExpiresAt.After(now) {
			clone := *req
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *mockStore) UpdateCoverageRequest(req *domain.CoverageRequest) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.requests[req.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != req.Version {
		return domain.ErrStaleState
	}
	req.Version++
	clone := *req
	m.requests[req.ID] = &clone
	return nil
}

func (m *mockStore) GetEmployeeByID(id int64) (*domain.Employee, error) {
	e, ok := m.employees[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

type mockNotifier struct {
	messages []domain.NotificationMessage
}

func (m *mockNotifier) Notify(msg domain.NotificationMessage) {
	m.messages = append(m.messages, msg)
}

type mockBoard struct {
	removed []int64
}

func (m *mockBoard) RemoveOpenRequest(branchID int64, kind string, requestID int64) {
	m.removed = append(m.removed, requestID)
}

func newSweeper() (*Sweeper, *mockStore, *mockNotifier, *mockBoard) {
	store := &mockStore{
		requests:  make(map[int64]*domain.CoverageRequest),
		employees: make(map[int64]*domain.Employee),
	}
	notifier := &mockNotifier{}
	board := &mockBoard{}

	cfg := &config.Config{}
	cfg.Sweeper.Interval = 120

	return New(cfg, store, notifier, board), store, notifier, board
}

func TestSweepExpiresOpenRequests(t *testing.T) {
	s, store, notifier, board := newSweeper()
	now := time.Now()

	store.employees[1] = &domain.Employee{ID: 1, FullName: "李爱丽", Email: "alice@example.com", BranchID: 1}
	store.requests[10] = &domain.CoverageRequest{
		ID: 10, RequesterID: 1, Status: domain.CoverageStatusOpen,
		ExpiresAt: now.Add(-time.Hour), Version: 1,
	}
	store.requests[11] = &domain.CoverageRequest{
		ID: 11, RequesterID: 1, Status: domain.CoverageStatusOpen,
		ExpiresAt: now.Add(time.Hour), Version: 1,
	}

	transitioned, err := s.Sweep(now)
	require.NoError(t, err)
	require.Len(t, transitioned, 1)
	require.Equal(t, int64(10), transitioned[0].ID)

	// 过期的转移到终态，未到期的保持开放
	require.Equal(t, domain.CoverageStatusExpired, store.requests[10].Status)
	require.Equal(t, domain.CoverageStatusOpen, store.requests[11].Status)

	// 从看板撤下并通知请求者
	require.Equal(t, []int64{10}, board.removed)
	require.Len(t, notifier.messages, 1)
	require.Equal(t, domain.NotifyExpired, notifier.messages[0].Type)
	require.Equal(t, "alice@example.com", notifier.messages[0].To)
}

func TestSweepIsIdempotent(t *testing.T) {
	s, store, notifier, _ := newSweeper()
	now := time.Now()

	store.employees[1] = &domain.Employee{ID: 1, Email: "alice@example.com", BranchID: 1}
	store.requests[10] = &domain.CoverageRequest{
		ID: 10, RequesterID: 1, Status: domain.CoverageStatusOpen,
		ExpiresAt: now.Add(-time.Hour), Version: 1,
	}

	first, err := s.Sweep(now)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// 已过期的请求不会再次命中，重复扫描没有副作用
	second, err := s.Sweep(now)
	require.NoError(t, err)
	require.Empty(t, second)
	require.Len(t, notifier.messages, 1)
}

func TestSweepLosesRaceToManualTransition(t *testing.T) {
	s, store, notifier, board := newSweeper()
	now := time.Now()

	store.employees[1] = &domain.Employee{ID: 1, Email: "alice@example.com", BranchID: 1}
	store.requests[10] = &domain.CoverageRequest{
		ID: 10, RequesterID: 1, Status: domain.CoverageStatusOpen,
		ExpiresAt: now.Add(-time.Hour), Version: 1,
	}

	// 人工操作抢先提交了转移，版本检查让扫描输掉竞争
	store.updateErr = domain.ErrStaleState

	transitioned, err := s.Sweep(now)
	require.NoError(t, err)
	require.Empty(t, transitioned)
	require.Empty(t, notifier.messages)
	require.Empty(t, board.removed)
}

func TestSweepStartStop(t *testing.T) {
	s, _, _, _ := newSweeper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Stop()
}
