package handler

import (
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

func (h *Handler) CreateCoverageRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	var req struct {
		AssignmentID int64  `json:"assignmentId" validate:"required"`
		ExpiresAt    string `json:"expiresAt"`
		Emergency    bool   `json:"emergency"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			h.errorResponse(w, r, "过期时间格式无效")
			return
		}
		expiresAt = &parsed
	}

	coverageRequest, err := h.engine.CreateCoverage(myInfo.ID, req.AssignmentID, expiresAt, req.Emergency)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建替班申请成功", coverageRequest)
}

func (h *Handler) GetCoverageRequest(w http.ResponseWriter, r *http.Request) {
	coverageRequest := r.Context().Value(CoverageRequestCtx).(*domain.CoverageRequest)

	responses, err := h.repository.GetCoverageResponses(coverageRequest.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取替班申请成功", map[string]any{
		"request":   coverageRequest,
		"responses": responses,
	})
}

func (h *Handler) GetMyCoverageRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	requests, err := h.repository.ListCoverageRequestsByRequester(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取替班申请成功", requests)
}

func (h *Handler) GetRespondedCoverageRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	requests, err := h.repository.ListCoverageRequestsByResponder(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取替班申请成功", requests)
}

func (h *Handler) GetBranchCoverageRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	requests, err := h.repository.ListOpenCoverageRequestsByBranch(myInfo.BranchID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取替班申请成功", requests)
}

func (h *Handler) GetCoverageRequestsPendingApproval(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	requests, err := h.repository.ListCoverageRequestsPendingManager(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取待审批替班申请成功", requests)
}

func (h *Handler) RespondCoverageRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	coverageRequest := r.Context().Value(CoverageRequestCtx).(*domain.CoverageRequest)

	var req struct {
		AssignmentID *int64 `json:"assignmentId"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	response, err := h.engine.RespondCoverage(coverageRequest.ID, myInfo.ID, req.AssignmentID)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "响应替班申请成功", response)
}

func (h *Handler) AcceptCoverageRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	coverageRequest := r.Context().Value(CoverageRequestCtx).(*domain.CoverageRequest)

	var req struct {
		ResponderID int64 `json:"responderId" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	updated, err := h.engine.AcceptCoverage(coverageRequest.ID, myInfo.ID, req.ResponderID)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "选定替班人成功", updated)
}

func (h *Handler) ApproveCoverageRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	coverageRequest := r.Context().Value(CoverageRequestCtx).(*domain.CoverageRequest)

	updated, err := h.engine.ApproveCoverage(coverageRequest.ID, myInfo.ID)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "审批替班申请成功", updated)
}

func (h *Handler) RejectCoverageRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	coverageRequest := r.Context().Value(CoverageRequestCtx).(*domain.CoverageRequest)

	updated, err := h.engine.RejectCoverage(coverageRequest.ID, myInfo.ID)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "拒绝替班申请成功", updated)
}

func (h *Handler) CancelCoverageRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	coverageRequest := r.Context().Value(CoverageRequestCtx).(*domain.CoverageRequest)

	updated, err := h.engine.CancelCoverage(coverageRequest.ID, myInfo.ID)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "取消替班申请成功", updated)
}
