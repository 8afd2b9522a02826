package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

func (h *Handler) CreateSwapRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	var req struct {
		AssignmentID     int64  `json:"assignmentId" validate:"required"`
		TargetEmployeeID *int64 `json:"targetEmployeeId"`
		Date             string `json:"date" validate:"required"`
		Reason           string `json:"reason" validate:"required,max=255"`
		Emergency        bool   `json:"emergency"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.errorResponse(w, r, "日期格式无效")
		return
	}

	swapRequest, err := h.engine.CreateSwap(myInfo.ID, req.AssignmentID, req.TargetEmployeeID, date, req.Reason, req.Emergency)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建换班申请成功", swapRequest)
}

func (h *Handler) GetSwapRequest(w http.ResponseWriter, r *http.Request) {
	swapRequest := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	responses, err := h.repository.GetSwapResponses(swapRequest.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取换班申请成功", map[string]any{
		"request":   swapRequest,
		"responses": responses,
	})
}

func (h *Handler) GetMySwapRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	requests, err := h.repository.ListSwapRequestsByRequester(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取换班申请成功", requests)
}

func (h *Handler) GetRespondedSwapRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	requests, err := h.repository.ListSwapRequestsByResponder(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取换班申请成功", requests)
}

func (h *Handler) GetBranchSwapRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	// 带日期范围时按范围查询，否则只返回本门店所有公开的待响应申请
	if r.URL.Query().Get("from") != "" || r.URL.Query().Get("to") != "" {
		from, to, err := parseDateRange(r)
		if err != nil {
			h.errorResponse(w, r, "日期格式无效")
			return
		}

		requests, err := h.repository.ListSwapRequestsByDateRange(myInfo.BranchID, from, to)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		h.successResponse(w, r, "获取换班申请成功", requests)
		return
	}

	requests, err := h.repository.ListOpenSwapRequestsByBranch(myInfo.BranchID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取换班申请成功", requests)
}

func (h *Handler) GetSwapRequestsPendingApproval(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	requests, err := h.repository.ListSwapRequestsPendingManager(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取待审批换班申请成功", requests)
}

func (h *Handler) RespondSwapRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	swapRequest := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	var req struct {
		AssignmentID int64 `json:"assignmentId" validate:"required"`
		Accepted     *bool `json:"accepted" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	response, err := h.engine.RespondSwap(swapRequest.ID, myInfo.ID, req.AssignmentID, *req.Accepted)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "响应换班申请成功", response)
}

func (h *Handler) SelectSwapResponse(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	swapRequest := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	responseIDParam := chi.URLParam(r, "responseID")
	responseID, err := strconv.ParseInt(responseIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "响应ID无效")
		return
	}

	updated, err := h.engine.SelectSwapResponse(swapRequest.ID, myInfo.ID, responseID)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "选定换班响应成功", updated)
}

func (h *Handler) ApproveSwapRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	swapRequest := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	updated, err := h.engine.ApproveSwap(swapRequest.ID, myInfo.ID)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "审批换班申请成功", updated)
}

func (h *Handler) RejectSwapRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	swapRequest := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	updated, err := h.engine.RejectSwap(swapRequest.ID, myInfo.ID)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "拒绝换班申请成功", updated)
}

func (h *Handler) CancelSwapRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	swapRequest := r.Context().Value(SwapRequestCtx).(*domain.SwapRequest)

	updated, err := h.engine.CancelSwap(swapRequest.ID, myInfo.ID)
	if err != nil {
		h.workflowError(w, r, err)
		return
	}

	h.successResponse(w, r, "取消换班申请成功", updated)
}
