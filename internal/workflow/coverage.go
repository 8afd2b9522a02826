package workflow

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

// nextShiftStart 计算某条绑定下一次上班的具体时刻：
// 自 now 起第一个落在生效区间内的日期，加上班次的开始时刻
func nextShiftStart(assignment *domain.ShiftAssignment, shift *domain.ShiftDefinition, now time.Time) (time.Time, error) {
	start, err := time.Parse("15:04:05", shift.StartTime)
	if err != nil {
		return time.Time{}, domain.NewValidationError("班次 %s 的开始时刻非法", shift.Name)
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if assignment.StartDate.After(day) {
		day = time.Date(assignment.StartDate.Year(), assignment.StartDate.Month(), assignment.StartDate.Day(), 0, 0, 0, 0, now.Location())
	}

	at := day.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute)
	if at.Before(now) {
		at = at.AddDate(0, 0, 1)
	}

	if !assignment.CoversDate(at) {
		return time.Time{}, domain.NewValidationError("班次绑定已不再覆盖接下来的排班日")
	}

	return at, nil
}

// CreateCoverage 创建求援请求：请求者的班次需要有人顶替。
// expiresAt 为空时按策略取默认值（下一次上班前的固定提前量）
func (e *Engine) CreateCoverage(requesterID, assignmentID int64, expiresAt *time.Time, emergency bool) (*domain.CoverageRequest, error) {
	requester, err := e.getActiveEmployee(requesterID)
	if err != nil {
		return nil, err
	}

	assignment, err := e.getOwnedActiveAssignment(assignmentID, requesterID)
	if err != nil {
		return nil, err
	}

	shift, err := e.store.GetShiftByID(assignment.ShiftID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var expiry time.Time
	if expiresAt != nil {
		expiry = *expiresAt
	} else {
		shiftStart, err := nextShiftStart(assignment, shift, now)
		if err != nil {
			return nil, err
		}
		expiry = shiftStart.Add(-time.Duration(e.cfg.Workflow.CoverageLeadTime) * time.Second)
	}
	if !expiry.After(now) {
		return nil, domain.NewValidationError("截止时间必须在将来")
	}

	req := &domain.CoverageRequest{
		RequesterID:       requesterID,
		RequesterAssignID: assignmentID,
		Status:            domain.CoverageStatusOpen,
		IsEmergency:       emergency,
		ExpiresAt:         expiry,
	}
	if err := e.store.CreateCoverageRequest(req); err != nil {
		return nil, err
	}

	// 求援请求对同分店的所有员工可见
	e.board.PublishOpenRequest(requester.BranchID, domain.BoardEntry{
		Kind:        "coverage",
		RequestID:   req.ID,
		ShiftName:   shift.Name,
		Date:        assignment.StartDate,
		IsEmergency: req.IsEmergency,
		ExpiresAt:   req.ExpiresAt,
	})

	data := domain.RequestEventData{
		RequestKind:   "coverage",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		ShiftName:     shift.Name,
		IsEmergency:   req.IsEmergency,
	}
	e.notifyManagers(domain.NotifyRequestCreated, data, requester)

	return req, nil
}

// RespondCoverage 提交对求援请求的响应。assignmentID 为空表示
// 响应者单纯自愿接手，不为空表示以自己的班次顶替
func (e *Engine) RespondCoverage(requestID, responderID int64, assignmentID *int64) (*domain.CoverageResponse, error) {
	req, err := e.store.GetCoverageRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.CoverageStatusOpen {
		return nil, domain.NewValidationError("请求已不在开放状态")
	}
	if responderID == req.RequesterID {
		return nil, domain.NewValidationError("不能响应自己的请求")
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

	if assignmentID != nil {
		if _, err := e.getOwnedActiveAssignment(*assignmentID, responderID); err != nil {
			return nil, err
		}
	}

	resp := &domain.CoverageResponse{
		RequestID:    requestID,
		ResponderID:  responderID,
		AssignmentID: assignmentID,
	}
	if err := e.store.UpsertCoverageResponse(resp); err != nil {
		return nil, err
	}

	data := domain.RequestEventData{
		RequestKind:   "coverage",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		IsEmergency:   req.IsEmergency,
		Detail:        responder.FullName + " 愿意顶班",
	}
	e.notifyEmployee(requester, domain.NotifyResponseReceived, data)

	return resp, nil
}

// AcceptCoverage 请求者从响应者中选定一人接班。选定后请求进入
// 待审批状态；紧急请求在策略允许时跳过审批直接完成
func (e *Engine) AcceptCoverage(requestID, selectorID, responderID int64) (*domain.CoverageRequest, error) {
	req, err := e.store.GetCoverageRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.CoverageStatusOpen {
		return nil, domain.NewValidationError("请求已不在开放状态")
	}
	if selectorID != req.RequesterID {
		return nil, domain.NewValidationError("只有请求者可以选定接班人")
	}

	responses, err := e.store.GetCoverageResponses(requestID)
	if err != nil {
		return nil, err
	}
	responded := false
	for _, resp := range responses {
		if resp.ResponderID == responderID {
			responded = true
			break
		}
	}
	if !responded {
		return nil, domain.NewValidationError("该员工没有响应过这个请求")
	}

	requester, err := e.store.GetEmployeeByID(req.RequesterID)
	if err != nil {
		return nil, err
	}
	acceptor, err := e.getActiveEmployee(responderID)
	if err != nil {
		return nil, err
	}

	// 版本检查仲裁：两份几乎同时的响应被先后选定时只有一次生效，
	// 未被选定的响应保留在记录中但不会被任何转移消费
	req.Status = domain.CoverageStatusAccepted
	req.AcceptedByID = &responderID
	if err := e.store.UpdateCoverageRequest(req); err != nil {
		return nil, err
	}

	e.board.RemoveOpenRequest(requester.BranchID, "coverage", req.ID)

	// 审批闸门：非紧急请求一律需要经理审批；
	// 紧急请求按策略可以走快速通道直接完成
	if req.IsEmergency && e.cfg.Workflow.EmergencySkipApproval {
		if err := e.completeCoverage(req, requester, acceptor); err != nil {
			return nil, err
		}
		return req, nil
	}

	req.Status = domain.CoverageStatusPendingApproval
	if err := e.store.UpdateCoverageRequest(req); err != nil {
		return nil, err
	}

	data := domain.RequestEventData{
		RequestKind:   "coverage",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		IsEmergency:   req.IsEmergency,
		Detail:        acceptor.FullName + " 接手 " + requester.FullName + " 的班次，等待审批",
	}
	e.notifyManagers(domain.NotifyApprovalRequired, data, requester, acceptor)

	return req, nil
}

// ApproveCoverage 经理批准求援。与换班审批相同：
// 必须针对当前状态重新做冲突检查，通过后才提交班次变更
func (e *Engine) ApproveCoverage(requestID, managerID int64) (*domain.CoverageRequest, error) {
	req, err := e.store.GetCoverageRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.CoverageStatusPendingApproval {
		return nil, &domain.InvalidTransitionError{From: string(req.Status), To: string(domain.CoverageStatusCompleted)}
	}
	if req.AcceptedByID == nil {
		return nil, domain.NewValidationError("请求还没有选定接班人")
	}

	manager, err := e.getActiveEmployee(managerID)
	if err != nil {
		return nil, err
	}
	requester, err := e.store.GetEmployeeByID(req.RequesterID)
	if err != nil {
		return nil, err
	}
	acceptor, err := e.store.GetEmployeeByID(*req.AcceptedByID)
	if err != nil {
		return nil, err
	}
	if !canDecide(manager, requester, acceptor) {
		return nil, domain.NewValidationError("只有双方的汇报经理可以审批该请求")
	}

	now := time.Now()
	req.ApproverID = &managerID
	req.ApprovedAt = &now

	if err := e.completeCoverage(req, requester, acceptor); err != nil {
		return nil, err
	}

	return req, nil
}

// completeCoverage 冲突复核通过后提交班次交接并转移到完成态。
// 进入此函数时请求处于 accepted（快速通道）或 pending_approval
func (e *Engine) completeCoverage(req *domain.CoverageRequest, requester, acceptor *domain.Employee) error {
	assignment, err := e.store.GetAssignmentByID(req.RequesterAssignID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return e.reopenCoverage(req, requester, err)
		}
		return err
	}
	if !assignment.IsActive {
		// 等待期间绑定被独立退役，回到开放状态重新征集
		return e.reopenCoverage(req, requester, domain.ErrStaleState)
	}

	from := time.Now().Truncate(24 * time.Hour)
	if assignment.StartDate.After(from) {
		from = assignment.StartDate
	}

	// 接班人接手后的状态必须满足无重叠不变式
	if err := e.checkEmployeeConflict(acceptor.ID, assignment.ShiftID, from, assignment.EndDate, assignment.ID); err != nil {
		var conflictErr *domain.ConflictError
		if errors.As(err, &conflictErr) {
			return e.rejectCoverageOnConflict(req, requester, acceptor, err)
		}
		return err
	}

	replacement, err := e.store.ApplyCoverage(assignment, acceptor.ID, from)
	if err != nil {
		var conflictErr *domain.ConflictError
		switch {
		case errors.As(err, &conflictErr):
			return e.rejectCoverageOnConflict(req, requester, acceptor, err)
		case errors.Is(err, domain.ErrStaleState):
			return e.reopenCoverage(req, requester, err)
		default:
			return err
		}
	}

	req.Status = domain.CoverageStatusCompleted
	if err := e.store.UpdateCoverageRequest(req); err != nil {
		return err
	}

	data := domain.RequestEventData{
		RequestKind:   "coverage",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		Detail:        acceptor.FullName + " 已接手班次",
	}
	e.notifyEmployee(requester, domain.NotifyCompleted, data)
	e.notifyEmployee(acceptor, domain.NotifyCompleted, data)

	if shift, err := e.store.GetShiftByID(replacement.ShiftID); err == nil {
		e.notifyEmployee(acceptor, domain.NotifyAssignmentChanged, domain.AssignmentChangedData{
			EmployeeName:  acceptor.FullName,
			ShiftName:     shift.Name,
			EffectiveDate: replacement.StartDate,
			Reason:        domain.ChangeReasonCoverage,
		})
	}

	return nil
}

// reopenCoverage 审批或提交阶段发现世界已变化，请求回到开放状态
// 并重新挂回分店广播看板
func (e *Engine) reopenCoverage(req *domain.CoverageRequest, requester *domain.Employee, cause error) error {
	req.Status = domain.CoverageStatusOpen
	req.AcceptedByID = nil
	req.ApproverID = nil
	req.ApprovedAt = nil
	if err := e.store.UpdateCoverageRequest(req); err != nil {
		slog.Error("求援请求回退失败", "requestID", req.ID, "error", err)
		return err
	}

	e.board.PublishOpenRequest(requester.BranchID, domain.BoardEntry{
		Kind:        "coverage",
		RequestID:   req.ID,
		IsEmergency: req.IsEmergency,
		ExpiresAt:   req.ExpiresAt,
	})

	if cause == nil {
		return nil
	}
	return &domain.StaleConflictError{RequestID: req.ID, Cause: cause}
}

// rejectCoverageOnConflict 审批时检测到冲突，请求转为拒绝
func (e *Engine) rejectCoverageOnConflict(req *domain.CoverageRequest, requester, acceptor *domain.Employee, cause error) error {
	req.Status = domain.CoverageStatusRejected
	if err := e.store.UpdateCoverageRequest(req); err != nil {
		return err
	}

	data := domain.RequestEventData{
		RequestKind:   "coverage",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		Detail:        "审批时检测到班次冲突",
	}
	e.notifyEmployee(requester, domain.NotifyRejected, data)
	e.notifyEmployee(acceptor, domain.NotifyRejected, data)

	return cause
}

// RejectCoverage 经理拒绝求援
func (e *Engine) RejectCoverage(requestID, managerID int64) (*domain.CoverageRequest, error) {
	req, err := e.store.GetCoverageRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(domain.CoverageStatusRejected) {
		return nil, &domain.InvalidTransitionError{From: string(req.Status), To: string(domain.CoverageStatusRejected)}
	}

	manager, err := e.getActiveEmployee(managerID)
	if err != nil {
		return nil, err
	}
	requester, err := e.store.GetEmployeeByID(req.RequesterID)
	if err != nil {
		return nil, err
	}

	var acceptor *domain.Employee
	if req.AcceptedByID != nil {
		acceptor, _ = e.store.GetEmployeeByID(*req.AcceptedByID)
	}
	if !canDecide(manager, requester, acceptor) {
		return nil, domain.NewValidationError("只有双方的汇报经理可以审批该请求")
	}

	now := time.Now()
	req.Status = domain.CoverageStatusRejected
	req.ApproverID = &managerID
	req.ApprovedAt = &now
	if err := e.store.UpdateCoverageRequest(req); err != nil {
		return nil, err
	}

	data := domain.RequestEventData{
		RequestKind:   "coverage",
		RequestID:     req.ID,
		RequesterName: requester.FullName,
		Detail:        "求援请求被经理拒绝",
	}
	e.notifyEmployee(requester, domain.NotifyRejected, data)
	e.notifyEmployee(acceptor, domain.NotifyRejected, data)

	return req, nil
}

// CancelCoverage 请求者撤回求援，开放中或已选定接班人时可撤回，
// 完成后不可撤回
func (e *Engine) CancelCoverage(requestID, requesterID int64) (*domain.CoverageRequest, error) {
	req, err := e.store.GetCoverageRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, domain.NewValidationError("只有请求者可以撤回请求")
	}
	if !req.Status.CanTransitionTo(domain.CoverageStatusCancelled) {
		return nil, &domain.InvalidTransitionError{From: string(req.Status), To: string(domain.CoverageStatusCancelled)}
	}

	req.Status = domain.CoverageStatusCancelled
	if err := e.store.UpdateCoverageRequest(req); err != nil {
		return nil, err
	}

	if requester, err := e.store.GetEmployeeByID(req.RequesterID); err == nil {
		e.board.RemoveOpenRequest(requester.BranchID, "coverage", req.ID)
	}

	return req, nil
}
