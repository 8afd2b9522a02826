package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

func TestCreateSwap(t *testing.T) {
	t.Run("定向请求通知目标员工", func(t *testing.T) {
		f := newFixture()

		req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.bob.ID, tomorrow(), "家里有事", false)
		require.NoError(t, err)
		require.Equal(t, domain.SwapStatusPending, req.Status)
		require.False(t, req.IsOpen())

		created := f.notifier.byType(domain.NotifyRequestCreated)
		require.Len(t, created, 1)
		require.Equal(t, f.bob.Email, created[0].To)
		require.False(t, f.board.has(1, "swap", req.ID))
	})

	t.Run("开放请求挂到分店看板", func(t *testing.T) {
		f := newFixture()

		req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, nil, tomorrow(), "临时安排", false)
		require.NoError(t, err)
		require.True(t, req.IsOpen())
		require.True(t, f.board.has(1, "swap", req.ID))
		require.Empty(t, f.notifier.messages)
	})

	t.Run("输入校验", func(t *testing.T) {
		f := newFixture()
		var validationErr *domain.ValidationError

		// 日期早于今天
		_, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, nil, time.Now().AddDate(0, 0, -1), "x", false)
		require.ErrorAs(t, err, &validationErr)

		// 不能和自己换
		_, err = f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.alice.ID, tomorrow(), "x", false)
		require.ErrorAs(t, err, &validationErr)

		// 绑定不属于请求者
		_, err = f.engine.CreateSwap(f.alice.ID, f.bobEvening.ID, nil, tomorrow(), "x", false)
		require.ErrorAs(t, err, &validationErr)

		// 目标员工在另一个分店
		other := f.store.addEmployee(domain.Employee{
			Username: "dave", FullName: "刘大伟", Email: "dave@example.com",
			Role: domain.RoleEmployee, BranchID: 2, IsActive: true,
		})
		_, err = f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &other.ID, tomorrow(), "x", false)
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestRespondSwap(t *testing.T) {
	t.Run("定向请求的接受响应自动选定", func(t *testing.T) {
		f := newFixture()
		req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.bob.ID, tomorrow(), "家里有事", false)
		require.NoError(t, err)

		_, err = f.engine.RespondSwap(req.ID, f.bob.ID, f.bobEvening.ID, true)
		require.NoError(t, err)

		stored, err := f.store.GetSwapRequestByID(req.ID)
		require.NoError(t, err)
		require.Equal(t, domain.SwapStatusManagerApprovalRequired, stored.Status)
		require.NotNil(t, stored.TargetAssignmentID)
		require.Equal(t, f.bobEvening.ID, *stored.TargetAssignmentID)

		approvals := f.notifier.byType(domain.NotifyApprovalRequired)
		require.Len(t, approvals, 1)
		require.Equal(t, f.manager.Email, approvals[0].To)
	})

	t.Run("非点名目标不能响应定向请求", func(t *testing.T) {
		f := newFixture()
		req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.bob.ID, tomorrow(), "家里有事", false)
		require.NoError(t, err)

		carolNight := f.store.addAssignment(domain.ShiftAssignment{
			EmployeeID: f.carol.ID, ShiftID: f.night.ID, StartDate: time.Now().AddDate(0, 0, -7),
		})

		var validationErr *domain.ValidationError
		_, err = f.engine.RespondSwap(req.ID, f.carol.ID, carolNight.ID, true)
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("不能响应自己的请求", func(t *testing.T) {
		f := newFixture()
		req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, nil, tomorrow(), "x", false)
		require.NoError(t, err)

		var validationErr *domain.ValidationError
		_, err = f.engine.RespondSwap(req.ID, f.alice.ID, f.aliceMorning.ID, true)
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestSelectSwapResponse(t *testing.T) {
	f := newFixture()
	req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, nil, tomorrow(), "x", false)
	require.NoError(t, err)

	carolNight := f.store.addAssignment(domain.ShiftAssignment{
		EmployeeID: f.carol.ID, ShiftID: f.night.ID, StartDate: time.Now().AddDate(0, 0, -7),
	})

	// 开放请求积累多个响应，不会自动选定
	bobResp, err := f.engine.RespondSwap(req.ID, f.bob.ID, f.bobEvening.ID, true)
	require.NoError(t, err)
	carolResp, err := f.engine.RespondSwap(req.ID, f.carol.ID, carolNight.ID, false)
	require.NoError(t, err)

	stored, err := f.store.GetSwapRequestByID(req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusPending, stored.Status)

	// 只有请求者可以选定
	var validationErr *domain.ValidationError
	_, err = f.engine.SelectSwapResponse(req.ID, f.bob.ID, bobResp.ID)
	require.ErrorAs(t, err, &validationErr)

	// 拒绝性响应不能被选定
	_, err = f.engine.SelectSwapResponse(req.ID, f.alice.ID, carolResp.ID)
	require.ErrorAs(t, err, &validationErr)

	updated, err := f.engine.SelectSwapResponse(req.ID, f.alice.ID, bobResp.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusManagerApprovalRequired, updated.Status)

	// 选定后开放请求从看板撤下
	require.False(t, f.board.has(1, "swap", req.ID))
}

func TestApproveSwapCompletes(t *testing.T) {
	f := newFixture()
	req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.bob.ID, tomorrow(), "家里有事", false)
	require.NoError(t, err)
	_, err = f.engine.RespondSwap(req.ID, f.bob.ID, f.bobEvening.ID, true)
	require.NoError(t, err)

	updated, err := f.engine.ApproveSwap(req.ID, f.manager.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusCompleted, updated.Status)
	require.NotNil(t, updated.ApproverID)
	require.Equal(t, f.manager.ID, *updated.ApproverID)

	// 双方的绑定互换了班次
	aliceAssign, err := f.store.GetAssignmentByID(f.aliceMorning.ID)
	require.NoError(t, err)
	bobAssign, err := f.store.GetAssignmentByID(f.bobEvening.ID)
	require.NoError(t, err)
	require.Equal(t, f.evening.ID, aliceAssign.ShiftID)
	require.Equal(t, f.morning.ID, bobAssign.ShiftID)
	require.True(t, aliceAssign.IsActive)
	require.True(t, bobAssign.IsActive)

	require.Len(t, f.notifier.byType(domain.NotifyCompleted), 2)
	require.Len(t, f.notifier.byType(domain.NotifyAssignmentChanged), 2)

	// 已完成的请求不能再次审批
	var transitionErr *domain.InvalidTransitionError
	_, err = f.engine.ApproveSwap(req.ID, f.manager.ID)
	require.ErrorAs(t, err, &transitionErr)
}

func TestApproveSwapStaleAssignment(t *testing.T) {
	f := newFixture()
	req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.bob.ID, tomorrow(), "家里有事", false)
	require.NoError(t, err)
	_, err = f.engine.RespondSwap(req.ID, f.bob.ID, f.bobEvening.ID, true)
	require.NoError(t, err)

	// 等待审批期间 bob 的绑定被独立退役
	f.store.assignments[f.bobEvening.ID].IsActive = false

	var staleErr *domain.StaleConflictError
	_, err = f.engine.ApproveSwap(req.ID, f.manager.ID)
	require.ErrorAs(t, err, &staleErr)
	require.Equal(t, req.ID, staleErr.RequestID)

	// 请求回到待响应状态重新选择，而不是直接完成或拒绝
	stored, err := f.store.GetSwapRequestByID(req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusPending, stored.Status)
	require.Nil(t, stored.TargetAssignmentID)

	// 班次没有发生任何变更
	aliceAssign, err := f.store.GetAssignmentByID(f.aliceMorning.ID)
	require.NoError(t, err)
	require.Equal(t, f.morning.ID, aliceAssign.ShiftID)
}

func TestApproveSwapConflict(t *testing.T) {
	f := newFixture()
	req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.bob.ID, tomorrow(), "家里有事", false)
	require.NoError(t, err)
	_, err = f.engine.RespondSwap(req.ID, f.bob.ID, f.bobEvening.ID, true)
	require.NoError(t, err)

	// 等待审批期间 bob 又拿到了一条早班绑定，
	// 互换后 bob 会同时持有两个早班，违反无重叠不变式
	f.store.addAssignment(domain.ShiftAssignment{
		EmployeeID: f.bob.ID, ShiftID: f.morning.ID, StartDate: time.Now().AddDate(0, 0, -7),
	})

	var conflictErr *domain.ConflictError
	_, err = f.engine.ApproveSwap(req.ID, f.manager.ID)
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, f.bob.ID, conflictErr.EmployeeID)

	stored, err := f.store.GetSwapRequestByID(req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusRejected, stored.Status)

	// 双方的绑定保持原样
	aliceAssign, err := f.store.GetAssignmentByID(f.aliceMorning.ID)
	require.NoError(t, err)
	bobAssign, err := f.store.GetAssignmentByID(f.bobEvening.ID)
	require.NoError(t, err)
	require.Equal(t, f.morning.ID, aliceAssign.ShiftID)
	require.Equal(t, f.evening.ID, bobAssign.ShiftID)

	require.Len(t, f.notifier.byType(domain.NotifyRejected), 2)
}

func TestApproveSwapAuthority(t *testing.T) {
	f := newFixture()
	req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.bob.ID, tomorrow(), "家里有事", false)
	require.NoError(t, err)
	_, err = f.engine.RespondSwap(req.ID, f.bob.ID, f.bobEvening.ID, true)
	require.NoError(t, err)

	// 与双方都没有汇报关系的经理无权审批
	outsider := f.store.addEmployee(domain.Employee{
		Username: "outsider", FullName: "赵经理", Email: "outsider@example.com",
		Role: domain.RoleManager, BranchID: 1, IsActive: true,
	})
	var validationErr *domain.ValidationError
	_, err = f.engine.ApproveSwap(req.ID, outsider.ID)
	require.ErrorAs(t, err, &validationErr)

	// 管理员始终有权
	admin := f.store.addEmployee(domain.Employee{
		Username: "admin", FullName: "管理员", Email: "admin@example.com",
		Role: domain.RoleAdmin, BranchID: 1, IsActive: true,
	})
	updated, err := f.engine.ApproveSwap(req.ID, admin.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusCompleted, updated.Status)
}

func TestApproveSwapStoreFailureReverts(t *testing.T) {
	f := newFixture()
	req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.bob.ID, tomorrow(), "家里有事", false)
	require.NoError(t, err)
	_, err = f.engine.RespondSwap(req.ID, f.bob.ID, f.bobEvening.ID, true)
	require.NoError(t, err)

	// 存储层提交换班时发现并发修改
	f.store.applySwapErr = domain.ErrStaleState

	var staleErr *domain.StaleConflictError
	_, err = f.engine.ApproveSwap(req.ID, f.manager.ID)
	require.ErrorAs(t, err, &staleErr)

	stored, err := f.store.GetSwapRequestByID(req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusPending, stored.Status)

	// 失败是瞬时的：恢复后重新选定并审批可以成功
	f.store.applySwapErr = nil
	_, err = f.engine.RespondSwap(req.ID, f.bob.ID, f.bobEvening.ID, true)
	require.NoError(t, err)
	updated, err := f.engine.ApproveSwap(req.ID, f.manager.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusCompleted, updated.Status)
}

func TestRejectSwap(t *testing.T) {
	f := newFixture()
	req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, &f.bob.ID, tomorrow(), "家里有事", false)
	require.NoError(t, err)
	_, err = f.engine.RespondSwap(req.ID, f.bob.ID, f.bobEvening.ID, true)
	require.NoError(t, err)

	updated, err := f.engine.RejectSwap(req.ID, f.manager.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusRejected, updated.Status)
	require.Len(t, f.notifier.byType(domain.NotifyRejected), 2)

	// 班次保持原样
	aliceAssign, err := f.store.GetAssignmentByID(f.aliceMorning.ID)
	require.NoError(t, err)
	require.Equal(t, f.morning.ID, aliceAssign.ShiftID)
}

func TestCancelSwap(t *testing.T) {
	f := newFixture()
	req, err := f.engine.CreateSwap(f.alice.ID, f.aliceMorning.ID, nil, tomorrow(), "x", false)
	require.NoError(t, err)
	require.True(t, f.board.has(1, "swap", req.ID))

	// 只有请求者可以撤回
	var validationErr *domain.ValidationError
	_, err = f.engine.CancelSwap(req.ID, f.bob.ID)
	require.ErrorAs(t, err, &validationErr)

	updated, err := f.engine.CancelSwap(req.ID, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusCancelled, updated.Status)
	require.False(t, f.board.has(1, "swap", req.ID))

	// 终态不允许再次撤回
	var transitionErr *domain.InvalidTransitionError
	_, err = f.engine.CancelSwap(req.ID, f.alice.ID)
	require.ErrorAs(t, err, &transitionErr)
}
