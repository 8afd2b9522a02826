package repository

import (
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

func (r *Repository) CreateSwapRequest(req *domain.SwapRequest) error {
	query := `
		INSERT INTO swap_requests (requester_id, requester_assignment_id, target_employee_id, is_emergency, requested_date, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at, version
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{
		req.RequesterID,
		req.RequesterAssignID,
		req.TargetEmployeeID,
		req.IsEmergency,
		req.RequestedDate,
		req.Reason,
		req.Status,
	}
	dst := []any{&req.ID, &req.CreatedAt, &req.UpdatedAt, &req.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetSwapRequestByID(id int64) (*domain.SwapRequest, error) {
	query := `
		SELECT requester_id, requester_assignment_id, target_employee_id, target_assignment_id,
			status, is_emergency, requested_date, reason, approver_id, approved_at,
			created_at, updated_at, version
		FROM swap_requests WHERE id = $1
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	req := &domain.SwapRequest{
		ID: id,
	}

	dst := []any{
		&req.RequesterID,
		&req.RequesterAssignID,
		&req.TargetEmployeeID,
		&req.TargetAssignmentID,
		&req.Status,
		&req.IsEmergency,
		&req.RequestedDate,
		&req.Reason,
		&req.ApproverID,
		&req.ApprovedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, wrapRead("GetSwapRequestByID", err)
	}

	return req, nil
}

// UpdateSwapRequest 带版本检查地更新请求的可变字段。
// 每一次状态转移都必须通过这里提交，版本不匹配返回 ErrStaleState，
// 保证同一请求上至多一个转移能够成功
func (r *Repository) UpdateSwapRequest(req *domain.SwapRequest) error {
	query := `
		UPDATE swap_requests
		SET
			status = $1,
			target_assignment_id = $2,
			approver_id = $3,
			approved_at = $4,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING updated_at, version
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{req.Status, req.TargetAssignmentID, req.ApproverID, req.ApprovedAt, req.ID, req.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&req.UpdatedAt, &req.Version); err != nil {
		return wrapWrite("UpdateSwapRequest", err)
	}

	return nil
}

// UpsertSwapResponse 提交或覆盖响应：同一响应者对同一请求
// 后提交的响应覆盖先前的，不产生重复记录
func (r *Repository) UpsertSwapResponse(resp *domain.SwapResponse) error {
	query := `
		INSERT INTO swap_responses (request_id, responder_id, assignment_id, accepted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id, responder_id)
		DO UPDATE SET assignment_id = $3, accepted = $4, created_at = NOW()
		RETURNING id, created_at
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{resp.RequestID, resp.ResponderID, resp.AssignmentID, resp.Accepted}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&resp.ID, &resp.CreatedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetSwapResponses(requestID int64) ([]*domain.SwapResponse, error) {
	query := `
		SELECT id, request_id, responder_id, assignment_id, accepted, created_at
		FROM swap_responses
		WHERE request_id = $1
		ORDER BY created_at
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, wrapRead("GetSwapResponses", err)
	}
	defer rows.Close()

	responses := make([]*domain.SwapResponse, 0)
	for rows.Next() {
		resp := &domain.SwapResponse{}
		dst := []any{&resp.ID, &resp.RequestID, &resp.ResponderID, &resp.AssignmentID, &resp.Accepted, &resp.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, wrapRead("GetSwapResponses", err)
		}
		responses = append(responses, resp)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRead("GetSwapResponses", err)
	}

	return responses, nil
}

func (r *Repository) GetSwapResponseByID(id int64) (*domain.SwapResponse, error) {
	query := `
		SELECT request_id, responder_id, assignment_id, accepted, created_at
		FROM swap_responses WHERE id = $1
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	resp := &domain.SwapResponse{
		ID: id,
	}

	dst := []any{&resp.RequestID, &resp.ResponderID, &resp.AssignmentID, &resp.Accepted, &resp.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, wrapRead("GetSwapResponseByID", err)
	}

	return resp, nil
}

func (r *Repository) ListSwapRequestsByRequester(requesterID int64) ([]*domain.SwapRequest, error) {
	query := `
		SELECT id, requester_id, requester_assignment_id, target_employee_id, target_assignment_id,
			status, is_emergency, requested_date, reason, approver_id, approved_at,
			created_at, updated_at, version
		FROM swap_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`

	return r.querySwapRequests(query, requesterID)
}

// ListSwapRequestsByResponder 获取某员工响应过的所有换班请求
func (r *Repository) ListSwapRequestsByResponder(responderID int64) ([]*domain.SwapRequest, error) {
	query := `
		SELECT DISTINCT sr.id, sr.requester_id, sr.requester_assignment_id, sr.target_employee_id, sr.target_assignment_id,
			sr.status, sr.is_emergency, sr.requested_date, sr.reason, sr.approver_id, sr.approved_at,
			sr.created_at, sr.updated_at, sr.version
		FROM swap_requests sr
		JOIN swap_responses resp ON resp.request_id = sr.id
		WHERE resp.responder_id = $1
		ORDER BY sr.created_at DESC
	`

	return r.querySwapRequests(query, responderID)
}

// ListOpenSwapRequestsByBranch 获取某分店所有待响应的换班请求，
// 供同分店的员工浏览，紧急请求排在最前
func (r *Repository) ListOpenSwapRequestsByBranch(branchID int64) ([]*domain.SwapRequest, error) {
	query := `
		SELECT sr.id, sr.requester_id, sr.requester_assignment_id, sr.target_employee_id, sr.target_assignment_id,
			sr.status, sr.is_emergency, sr.requested_date, sr.reason, sr.approver_id, sr.approved_at,
			sr.created_at, sr.updated_at, sr.version
		FROM swap_requests sr
		JOIN employees e ON e.id = sr.requester_id
		WHERE e.branch_id = $1 AND sr.status = 'pending'
		ORDER BY sr.is_emergency DESC, sr.created_at DESC
	`

	return r.querySwapRequests(query, branchID)
}

// ListSwapRequestsPendingManager 获取等待某经理审批的换班请求：
// 请求者或响应者的汇报经理都可以审批，先审批者生效
func (r *Repository) ListSwapRequestsPendingManager(managerID int64) ([]*domain.SwapRequest, error) {
	query := `
		SELECT DISTINCT sr.id, sr.requester_id, sr.requester_assignment_id, sr.target_employee_id, sr.target_assignment_id,
			sr.status, sr.is_emergency, sr.requested_date, sr.reason, sr.approver_id, sr.approved_at,
			sr.created_at, sr.updated_at, sr.version
		FROM swap_requests sr
		JOIN employees requester ON requester.id = sr.requester_id
		LEFT JOIN swap_responses resp ON resp.request_id = sr.id AND resp.accepted = TRUE
		LEFT JOIN employees responder ON responder.id = resp.responder_id
		WHERE sr.status = 'manager_approval_required'
			AND (requester.reporting_manager_id = $1 OR responder.reporting_manager_id = $1)
		ORDER BY sr.created_at DESC
	`

	return r.querySwapRequests(query, managerID)
}

// ListSwapRequestsByDateRange 按请求涉及的日期查询某分店的换班请求
func (r *Repository) ListSwapRequestsByDateRange(branchID int64, from, to time.Time) ([]*domain.SwapRequest, error) {
	query := `
		SELECT sr.id, sr.requester_id, sr.requester_assignment_id, sr.target_employee_id, sr.target_assignment_id,
			sr.status, sr.is_emergency, sr.requested_date, sr.reason, sr.approver_id, sr.approved_at,
			sr.created_at, sr.updated_at, sr.version
		FROM swap_requests sr
		JOIN employees e ON e.id = sr.requester_id
		WHERE e.branch_id = $1 AND sr.requested_date BETWEEN $2 AND $3
		ORDER BY sr.requested_date
	`

	return r.querySwapRequests(query, branchID, from, to)
}

func (r *Repository) querySwapRequests(query string, args ...any) ([]*domain.SwapRequest, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapRead("querySwapRequests", err)
	}
	defer rows.Close()

	requests := make([]*domain.SwapRequest, 0)
	for rows.Next() {
		req := &domain.SwapRequest{}
		dst := []any{
			&req.ID,
			&req.RequesterID,
			&req.RequesterAssignID,
			&req.TargetEmployeeID,
			&req.TargetAssignmentID,
			&req.Status,
			&req.IsEmergency,
			&req.RequestedDate,
			&req.Reason,
			&req.ApproverID,
			&req.ApprovedAt,
			&req.CreatedAt,
			&req.UpdatedAt,
			&req.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, wrapRead("querySwapRequests", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRead("querySwapRequests", err)
	}

	return requests, nil
}
