package repository

import (
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

func (r *Repository) CreateCoverageRequest(req *domain.CoverageRequest) error {
	query := `
		INSERT INTO coverage_requests (requester_id, requester_assignment_id, status, is_emergency, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at, version
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{req.RequesterID, req.RequesterAssignID, req.Status, req.IsEmergency, req.ExpiresAt}
	dst := []any{&req.ID, &req.CreatedAt, &req.UpdatedAt, &req.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetCoverageRequestByID(id int64) (*domain.CoverageRequest, error) {
	query := `
		SELECT requester_id, requester_assignment_id, status, is_emergency, expires_at,
			accepted_by_id, approver_id, approved_at, created_at, updated_at, version
		FROM coverage_requests WHERE id = $1
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	req := &domain.CoverageRequest{
		ID: id,
	}

	dst := []any{
		&req.RequesterID,
		&req.RequesterAssignID,
		&req.Status,
		&req.IsEmergency,
		&req.ExpiresAt,
		&req.AcceptedByID,
		&req.ApproverID,
		&req.ApprovedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, wrapRead("GetCoverageRequestByID", err)
	}

	return req, nil
}

// UpdateCoverageRequest 带版本检查地提交一次状态转移。
// 人工操作与过期扫描可能在同一请求上竞争，先提交者生效，
// 后提交者拿到 ErrStaleState
func (r *Repository) UpdateCoverageRequest(req *domain.CoverageRequest) error {
	query := `
		UPDATE coverage_requests
		SET
			status = $1,
			accepted_by_id = $2,
			approver_id = $3,
			approved_at = $4,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING updated_at, version
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{req.Status, req.AcceptedByID, req.ApproverID, req.ApprovedAt, req.ID, req.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&req.UpdatedAt, &req.Version); err != nil {
		return wrapWrite("UpdateCoverageRequest", err)
	}

	return nil
}

func (r *Repository) UpsertCoverageResponse(resp *domain.CoverageResponse) error {
	query := `
		INSERT INTO coverage_responses (request_id, responder_id, assignment_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id, responder_id)
		DO UPDATE SET assignment_id = $3, created_at = NOW()
		RETURNING id, created_at
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{resp.RequestID, resp.ResponderID, resp.AssignmentID}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&resp.ID, &resp.CreatedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetCoverageResponses(requestID int64) ([]*domain.CoverageResponse, error) {
	query := `
		SELECT id, request_id, responder_id, assignment_id, created_at
		FROM coverage_responses
		WHERE request_id = $1
		ORDER BY created_at
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, wrapRead("GetCoverageResponses", err)
	}
	defer rows.Close()

	responses := make([]*domain.CoverageResponse, 0)
	for rows.Next() {
		resp := &domain.CoverageResponse{}
		dst := []any{&resp.ID, &resp.RequestID, &resp.ResponderID, &resp.AssignmentID, &resp.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, wrapRead("GetCoverageResponses", err)
		}
		responses = append(responses, resp)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRead("GetCoverageResponses", err)
	}

	return responses, nil
}

func (r *Repository) ListCoverageRequestsByRequester(requesterID int64) ([]*domain.CoverageRequest, error) {
	query := `
		SELECT id, requester_id, requester_assignment_id, status, is_emergency, expires_at,
			accepted_by_id, approver_id, approved_at, created_at, updated_at, version
		FROM coverage_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`

	return r.queryCoverageRequests(query, requesterID)
}

func (r *Repository) ListCoverageRequestsByResponder(responderID int64) ([]*domain.CoverageRequest, error) {
	query := `
		SELECT DISTINCT cr.id, cr.requester_id, cr.requester_assignment_id, cr.status, cr.is_emergency, cr.expires_at,
			cr.accepted_by_id, cr.approver_id, cr.approved_at, cr.created_at, cr.updated_at, cr.version
		FROM coverage_requests cr
		JOIN coverage_responses resp ON resp.request_id = cr.id
		WHERE resp.responder_id = $1
		ORDER BY cr.created_at DESC
	`

	return r.queryCoverageRequests(query, responderID)
}

// ListOpenCoverageRequestsByBranch 获取某分店所有开放中的求援请求，
// 紧急请求排在最前
func (r *Repository) ListOpenCoverageRequestsByBranch(branchID int64) ([]*domain.CoverageRequest, error) {
	query := `
		SELECT cr.id, cr.requester_id, cr.requester_assignment_id, cr.status, cr.is_emergency, cr.expires_at,
			cr.accepted_by_id, cr.approver_id, cr.approved_at, cr.created_at, cr.updated_at, cr.version
		FROM coverage_requests cr
		JOIN employees e ON e.id = cr.requester_id
		WHERE e.branch_id = $1 AND cr.status = 'open'
		ORDER BY cr.is_emergency DESC, cr.created_at DESC
	`

	return r.queryCoverageRequests(query, branchID)
}

func (r *Repository) ListCoverageRequestsPendingManager(managerID int64) ([]*domain.CoverageRequest, error) {
	query := `
		SELECT DISTINCT cr.id, cr.requester_id, cr.requester_assignment_id, cr.status, cr.is_emergency, cr.expires_at,
			cr.accepted_by_id, cr.approver_id, cr.approved_at, cr.created_at, cr.updated_at, cr.version
		FROM coverage_requests cr
		JOIN employees requester ON requester.id = cr.requester_id
		LEFT JOIN employees acceptor ON acceptor.id = cr.accepted_by_id
		WHERE cr.status = 'pending_approval'
			AND (requester.reporting_manager_id = $1 OR acceptor.reporting_manager_id = $1)
		ORDER BY cr.created_at DESC
	`

	return r.queryCoverageRequests(query, managerID)
}

// ListExpiredOpenCoverageRequests 供过期扫描使用：所有仍处于 open
// 状态且截止时间已过的求援请求
func (r *Repository) ListExpiredOpenCoverageRequests(now time.Time) ([]*domain.CoverageRequest, error) {
	query := `
		SELECT id, requester_id, requester_assignment_id, status, is_emergency, expires_at,
			accepted_by_id, approver_id, approved_at, created_at, updated_at, version
		FROM coverage_requests
		WHERE status = 'open' AND expires_at <= $1
		ORDER BY expires_at
	`

	return r.queryCoverageRequests(query, now)
}

func (r *Repository) queryCoverageRequests(query string, args ...any) ([]*domain.CoverageRequest, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapRead("queryCoverageRequests", err)
	}
	defer rows.Close()

	requests := make([]*domain.CoverageRequest, 0)
	for rows.Next() {
		req := &domain.CoverageRequest{}
		dst := []any{
			&req.ID,
			&req.RequesterID,
			&req.RequesterAssignID,
			&req.Status,
			&req.IsEmergency,
			&req.ExpiresAt,
			&req.AcceptedByID,
			&req.ApproverID,
			&req.ApprovedAt,
			&req.CreatedAt,
			&req.UpdatedAt,
			&req.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, wrapRead("queryCoverageRequests", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRead("queryCoverageRequests", err)
	}

	return requests, nil
}
