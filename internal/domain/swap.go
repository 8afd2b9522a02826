package domain

import (
	"time"
)

type SwapRequestStatus string

const (
	SwapStatusPending                 SwapRequestStatus = "pending"
	SwapStatusManagerApprovalRequired SwapRequestStatus = "manager_approval_required"
	SwapStatusApproved                SwapRequestStatus = "approved"
	SwapStatusCompleted               SwapRequestStatus = "completed"
	SwapStatusRejected                SwapRequestStatus = "rejected"
	SwapStatusCancelled               SwapRequestStatus = "cancelled"
	SwapStatusExpired                 SwapRequestStatus = "expired"
)

// IsTerminal 终态的请求只作为审计记录保留，不允许再发生任何转移
func (s SwapRequestStatus) IsTerminal() bool {
	switch s {
	case SwapStatusCompleted, SwapStatusRejected, SwapStatusCancelled, SwapStatusExpired:
		return true
	}
	return false
}

// swapTransitions 列出所有合法的 (当前状态, 目标状态) 转移，
// 不在表中的转移一律视为非法，不能静默忽略
var swapTransitions = map[SwapRequestStatus][]SwapRequestStatus{
	SwapStatusPending: {
		SwapStatusManagerApprovalRequired,
		SwapStatusCancelled,
	},
	SwapStatusManagerApprovalRequired: {
		SwapStatusApproved,
		SwapStatusRejected,
		SwapStatusCancelled,
		// 审批时发现世界已经变化，回退到 pending 重新选择响应
		SwapStatusPending,
	},
	SwapStatusApproved: {
		SwapStatusCompleted,
		SwapStatusRejected,
		// 存储层提交换班时才发现并发修改，同样回退重新选择
		SwapStatusPending,
	},
}

// CanTransitionTo 判断换班请求能否从当前状态转移到目标状态
func (s SwapRequestStatus) CanTransitionTo(target SwapRequestStatus) bool {
	for _, t := range swapTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// SwapRequest 换班请求。TargetEmployeeID 为空表示开放请求，
// 分店内任何持有班次的员工都可以响应；否则为定向请求
type SwapRequest struct {
	ID                 int64             `json:"id"`
	RequesterID        int64             `json:"requesterID"`
	RequesterAssignID  int64             `json:"requesterAssignmentID"`
	TargetEmployeeID   *int64            `json:"targetEmployeeID"`
	TargetAssignmentID *int64            `json:"targetAssignmentID"`
	Status             SwapRequestStatus `json:"status"`
	IsEmergency        bool              `json:"isEmergency"`
	RequestedDate      time.Time         `json:"requestedDate"`
	Reason             string            `json:"reason"`
	ApproverID         *int64            `json:"approverID"`
	ApprovedAt         *time.Time        `json:"approvedAt"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
	Version            int32             `json:"-"`
}

// IsOpen 是否是开放（非定向）请求
func (r *SwapRequest) IsOpen() bool {
	return r.TargetEmployeeID == nil
}

// SwapResponse 对换班请求的响应。同一响应者后提交的响应会覆盖
// 先前的响应，而不是产生重复记录
type SwapResponse struct {
	ID           int64     `json:"id"`
	RequestID    int64     `json:"requestID"`
	ResponderID  int64     `json:"responderID"`
	AssignmentID int64     `json:"assignmentID"`
	Accepted     bool      `json:"accepted"`
	CreatedAt    time.Time `json:"createdAt"`
}
