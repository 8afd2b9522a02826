package workflow

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

// CreateSwap 创建换班请求。targetEmployeeID 为空表示开放请求。
// 创建阶段只做输入校验，不做冲突检查：在审批之前不会发生任何
// 班次变更，冲突检查留到审批时针对当时的最新状态进行
func (e *Engine) CreateSwap(requesterID, assignmentID int64, targetEmployeeID *int64, date time.Time, reason string, emergency bool) (*domain.SwapRequest, error) {
	requester, err := e.getActiveEmployee(requesterID)
	if err != nil {
		return nil, err
	}

	assignment, err := e.getOwnedActiveAssignment(assignmentID, requesterID)
	if err != nil {
		return nil, err
	}

	today := time.Now().Truncate(24 * time.Hour)
	if date.Before(today) {
		return nil, domain.NewValidationError("换班日期不能早于今天")
	}
	if !assignment.CoversDate(date) {
		return nil, domain.NewValidationError("班次绑定在 %s 并不生效", date.Format("2006-01-02"))
	}

	var target *domain.Employee
	if targetEmployeeID != nil {
		if *targetEmployeeID == requesterID {
			return nil, domain.NewValidationError("不能和自己换班")
		}
		target, err = e.getActiveEmployee(*targetEmployeeID)
		if err != nil {
			return nil, err
		}
		if target.BranchID != requester.BranchID {
			return nil, domain.NewValidationError("只能和同分店的员工换班")
		}
	}

	req := &domain.SwapRequest{
		RequesterID:       requesterID,
		RequesterAssignID: assignmentID,
		TargetEmployeeID:  targetEmployeeID,
		Status:            domain.SwapStatusPending,
		IsEmergency:       emergency,
		RequestedDate:     date,
		Reason:            reason,
	}
	if err := e.store.CreateSwapRequest(req); err != nil {
		return nil, err
	}

	shift, err := e.store.GetShiftByID(assignment.ShiftID)
	if err != nil {
		return nil, err
	}

	data := domain.RequestEventData{
		RequestKind:   "swap",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		ShiftName:     shift.Name,
		Date:          req.RequestedDate,
		IsEmergency:   req.IsEmergency,
		Detail:        req.Reason,
	}

	if target != nil {
		e.notifyEmployee(target, domain.NotifyRequestCreated, data)
	} else {
		// 开放请求挂到分店广播看板，由同分店员工自行浏览响应
		e.board.PublishOpenRequest(requester.BranchID, domain.BoardEntry{
			Kind:        "swap",
			RequestID:   req.ID,
			ShiftName:   shift.Name,
			Date:        req.RequestedDate,
			IsEmergency: req.IsEmergency,
		})
	}

	return req, nil
}

// RespondSwap 提交对换班请求的响应。响应者以自己的一条班次绑定
// 作为交换提议。定向请求中被点名目标的接受响应会直接触发选定，
// 请求进入待审批状态
func (e *Engine) RespondSwap(requestID, responderID, assignmentID int64, accepted bool) (*domain.SwapResponse, error) {
	req, err := e.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.SwapStatusPending {
		return nil, domain.NewValidationError("请求已不在待响应状态")
	}
	if responderID == req.RequesterID {
		return nil, domain.NewValidationError("不能响应自己的请求")
	}
	if !req.IsOpen() && *req.TargetEmployeeID != responderID {
		return nil, domain.NewValidationError("该请求指定了其他员工")
	}

	responder, err := e.getActiveEmployee(responderID)
	if err != nil {
		return nil, err
	}
	requester, err := e.store.GetEmployeeByID(req.RequesterID)
	if err != nil {
		return nil, err
	}
	if responder.BranchID != requester.BranchID {
		return nil, domain.NewValidationError("只能响应同分店的请求")
	}

	assignment, err := e.getOwnedActiveAssignment(assignmentID, responderID)
	if err != nil {
		return nil, err
	}
	if !assignment.CoversDate(req.RequestedDate) {
		return nil, domain.NewValidationError("提议的班次绑定在 %s 并不生效", req.RequestedDate.Format("2006-01-02"))
	}

	resp := &domain.SwapResponse{
		RequestID:    requestID,
		ResponderID:  responderID,
		AssignmentID: assignmentID,
		Accepted:     accepted,
	}
	if err := e.store.UpsertSwapResponse(resp); err != nil {
		return nil, err
	}

	data := domain.RequestEventData{
		RequestKind:   "swap",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		Date:          req.RequestedDate,
		IsEmergency:   req.IsEmergency,
		Detail:        responder.FullName + " 响应了你的换班请求",
	}
	e.notifyEmployee(requester, domain.NotifyResponseReceived, data)

	// 定向请求只有唯一的点名目标，其接受响应自动被选定
	if !req.IsOpen() && accepted {
		if err := e.selectResponse(req, resp, requester, responder); err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// SelectSwapResponse 请求者在开放请求积累的响应中选定一个接受响应，
// 请求随之进入待审批状态
func (e *Engine) SelectSwapResponse(requestID, selectorID, responseID int64) (*domain.SwapRequest, error) {
	req, err := e.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.SwapStatusPending {
		return nil, domain.NewValidationError("请求已不在待响应状态")
	}
	if selectorID != req.RequesterID {
		return nil, domain.NewValidationError("只有请求者可以选定响应")
	}

	resp, err := e.store.GetSwapResponseByID(responseID)
	if err != nil {
		return nil, err
	}
	if resp.RequestID != requestID {
		return nil, domain.NewValidationError("响应不属于该请求")
	}
	if !resp.Accepted {
		return nil, domain.NewValidationError("不能选定拒绝性响应")
	}

	requester, err := e.store.GetEmployeeByID(req.RequesterID)
	if err != nil {
		return nil, err
	}
	responder, err := e.store.GetEmployeeByID(resp.ResponderID)
	if err != nil {
		return nil, err
	}

	if err := e.selectResponse(req, resp, requester, responder); err != nil {
		return nil, err
	}

	return req, nil
}

// selectResponse 把选定的响应写入请求并转移到待审批状态。
// 版本检查保证并发的两次选定只有一次能提交
func (e *Engine) selectResponse(req *domain.SwapRequest, resp *domain.SwapResponse, requester, responder *domain.Employee) error {
	if !req.Status.CanTransitionTo(domain.SwapStatusManagerApprovalRequired) {
		return &domain.InvalidTransitionError{From: string(req.Status), To: string(domain.SwapStatusManagerApprovalRequired)}
	}

	req.Status = domain.SwapStatusManagerApprovalRequired
	req.TargetAssignmentID = &resp.AssignmentID
	if err := e.store.UpdateSwapRequest(req); err != nil {
		return err
	}

	if req.IsOpen() {
		e.board.RemoveOpenRequest(requester.BranchID, "swap", req.ID)
	}

	data := domain.RequestEventData{
		RequestKind:   "swap",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		Date:          req.RequestedDate,
		IsEmergency:   req.IsEmergency,
		Detail:        requester.FullName + " 与 " + responder.FullName + " 的换班等待审批",
	}
	e.notifyManagers(domain.NotifyApprovalRequired, data, requester, responder)

	return nil
}

// ApproveSwap 经理批准换班。请求者或响应者的汇报经理都可以审批，
// 先提交决定者生效。批准前必须针对 Assignment Store 的当前状态
// 重新做冲突检查，而不能信任请求创建时的结论
func (e *Engine) ApproveSwap(requestID, managerID int64) (*domain.SwapRequest, error) {
	req, err := e.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.SwapStatusManagerApprovalRequired {
		return nil, &domain.InvalidTransitionError{From: string(req.Status), To: string(domain.SwapStatusApproved)}
	}
	if req.TargetAssignmentID == nil {
		return nil, domain.NewValidationError("请求还没有选定交换的班次绑定")
	}

	manager, err := e.getActiveEmployee(managerID)
	if err != nil {
		return nil, err
	}
	requester, err := e.store.GetEmployeeByID(req.RequesterID)
	if err != nil {
		return nil, err
	}

	// 重新读取双方的绑定：请求创建之后世界可能已经变化
	reqAssign, err := e.store.GetAssignmentByID(req.RequesterAssignID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, e.revertToPending(req, err)
		}
		return nil, err
	}
	targetAssign, err := e.store.GetAssignmentByID(*req.TargetAssignmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, e.revertToPending(req, err)
		}
		return nil, err
	}

	responder, err := e.store.GetEmployeeByID(targetAssign.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !canDecide(manager, requester, responder) {
		return nil, domain.NewValidationError("只有双方的汇报经理可以审批该请求")
	}

	if !reqAssign.IsActive || !targetAssign.IsActive {
		// 某一方的绑定在等待审批期间被独立退役了
		return nil, e.revertToPending(req, domain.ErrStaleState)
	}

	// 双方互换后的状态都必须重新满足无重叠不变式
	if err := e.checkEmployeeConflict(reqAssign.EmployeeID, targetAssign.ShiftID, reqAssign.StartDate, reqAssign.EndDate, reqAssign.ID); err != nil {
		return nil, e.rejectOnConflict(req, requester, responder, err)
	}
	if err := e.checkEmployeeConflict(targetAssign.EmployeeID, reqAssign.ShiftID, targetAssign.StartDate, targetAssign.EndDate, targetAssign.ID); err != nil {
		return nil, e.rejectOnConflict(req, requester, responder, err)
	}

	// 版本检查在这里仲裁：两个经理同时批准，只有先提交者生效
	now := time.Now()
	req.Status = domain.SwapStatusApproved
	req.ApproverID = &managerID
	req.ApprovedAt = &now
	if err := e.store.UpdateSwapRequest(req); err != nil {
		return nil, err
	}

	if err := e.store.ApplySwap(reqAssign, targetAssign); err != nil {
		var conflictErr *domain.ConflictError
		switch {
		case errors.As(err, &conflictErr):
			// 存储层在事务内复核出冲突，按审批时发现冲突处理
			return nil, e.rejectOnConflict(req, requester, responder, err)
		case errors.Is(err, domain.ErrStaleState):
			return nil, e.revertToPending(req, err)
		default:
			// 存储层瞬时失败：回退转移，调用方可以整体重试
			if revertErr := e.revertToPending(req, nil); revertErr != nil {
				slog.Error("换班请求回退失败", "requestID", req.ID, "error", revertErr)
			}
			return nil, err
		}
	}

	req.Status = domain.SwapStatusCompleted
	if err := e.store.UpdateSwapRequest(req); err != nil {
		return nil, err
	}

	e.notifySwapCompleted(req, requester, responder, reqAssign, targetAssign)
	return req, nil
}

// revertToPending 审批失败时把请求回退到待响应状态重新选择，
// 并把原因包装为 StaleConflictError 交给调用方
func (e *Engine) revertToPending(req *domain.SwapRequest, cause error) error {
	req.Status = domain.SwapStatusPending
	req.TargetAssignmentID = nil
	req.ApproverID = nil
	req.ApprovedAt = nil
	if err := e.store.UpdateSwapRequest(req); err != nil {
		return err
	}

	// 开放请求回到待响应状态后重新挂回分店广播看板
	if req.IsOpen() {
		if requester, err := e.store.GetEmployeeByID(req.RequesterID); err == nil {
			e.board.PublishOpenRequest(requester.BranchID, domain.BoardEntry{
				Kind:        "swap",
				RequestID:   req.ID,
				Date:        req.RequestedDate,
				IsEmergency: req.IsEmergency,
			})
		}
	}

	if cause == nil {
		return nil
	}
	return &domain.StaleConflictError{RequestID: req.ID, Cause: cause}
}

// rejectOnConflict 审批时发现冲突，请求直接转为拒绝
func (e *Engine) rejectOnConflict(req *domain.SwapRequest, requester, responder *domain.Employee, cause error) error {
	req.Status = domain.SwapStatusRejected
	if err := e.store.UpdateSwapRequest(req); err != nil {
		return err
	}

	data := domain.RequestEventData{
		RequestKind:   "swap",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		Date:          req.RequestedDate,
		Detail:        "审批时检测到班次冲突",
	}
	e.notifyEmployee(requester, domain.NotifyRejected, data)
	e.notifyEmployee(responder, domain.NotifyRejected, data)

	return cause
}

func (e *Engine) notifySwapCompleted(req *domain.SwapRequest, requester, responder *domain.Employee, reqAssign, targetAssign *domain.ShiftAssignment) {
	data := domain.RequestEventData{
		RequestKind:   "swap",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		Date:          req.RequestedDate,
		Detail:        "换班已完成",
	}
	e.notifyEmployee(requester, domain.NotifyCompleted, data)
	e.notifyEmployee(responder, domain.NotifyCompleted, data)

	for _, change := range []struct {
		employee   *domain.Employee
		assignment *domain.ShiftAssignment
	}{
		{requester, reqAssign},
		{responder, targetAssign},
	} {
		shift, err := e.store.GetShiftByID(change.assignment.ShiftID)
		if err != nil {
			continue
		}
		e.notifyEmployee(change.employee, domain.NotifyAssignmentChanged, domain.AssignmentChangedData{
			EmployeeName:  change.employee.FullName,
			ShiftName:     shift.Name,
			EffectiveDate: req.RequestedDate,
			Reason:        domain.ChangeReasonSwap,
		})
	}
}

// RejectSwap 经理拒绝换班，请求直接进入终态
func (e *Engine) RejectSwap(requestID, managerID int64) (*domain.SwapRequest, error) {
	req, err := e.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(domain.SwapStatusRejected) {
		return nil, &domain.InvalidTransitionError{From: string(req.Status), To: string(domain.SwapStatusRejected)}
	}

	manager, err := e.getActiveEmployee(managerID)
	if err != nil {
		return nil, err
	}
	requester, err := e.store.GetEmployeeByID(req.RequesterID)
	if err != nil {
		return nil, err
	}

	var responder *domain.Employee
	if req.TargetAssignmentID != nil {
		if assignment, err := e.store.GetAssignmentByID(*req.TargetAssignmentID); err == nil {
			responder, _ = e.store.GetEmployeeByID(assignment.EmployeeID)
		}
	}
	if !canDecide(manager, requester, responder) {
		return nil, domain.NewValidationError("只有双方的汇报经理可以审批该请求")
	}

	now := time.Now()
	req.Status = domain.SwapStatusRejected
	req.ApproverID = &managerID
	req.ApprovedAt = &now
	if err := e.store.UpdateSwapRequest(req); err != nil {
		return nil, err
	}

	data := domain.RequestEventData{
		RequestKind:   "swap",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		Date:          req.RequestedDate,
		Detail:        "换班请求被经理拒绝",
	}
	e.notifyEmployee(requester, domain.NotifyRejected, data)
	e.notifyEmployee(responder, domain.NotifyRejected, data)

	return req, nil
}

// CancelSwap 请求者撤回自己的请求。已批准的请求不允许撤回
func (e *Engine) CancelSwap(requestID, requesterID int64) (*domain.SwapRequest, error) {
	req, err := e.store.GetSwapRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, domain.NewValidationError("只有请求者可以撤回请求")
	}
	if !req.Status.CanTransitionTo(domain.SwapStatusCancelled) {
		return nil, &domain.InvalidTransitionError{From: string(req.Status), To: string(domain.SwapStatusCancelled)}
	}

	req.Status = domain.SwapStatusCancelled
	if err := e.store.UpdateSwapRequest(req); err != nil {
		return nil, err
	}

	if req.IsOpen() {
		if requester, err := e.store.GetEmployeeByID(req.RequesterID); err == nil {
			e.board.RemoveOpenRequest(requester.BranchID, "swap", req.ID)
		}
	}

	return req, nil
}
