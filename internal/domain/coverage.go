package domain

import (
	"time"
)

type CoverageRequestStatus string

const (
	CoverageStatusOpen            CoverageRequestStatus = "open"
	CoverageStatusAccepted        CoverageRequestStatus = "accepted"
	CoverageStatusPendingApproval CoverageRequestStatus = "pending_approval"
	CoverageStatusCompleted       CoverageRequestStatus = "completed"
	CoverageStatusRejected        CoverageRequestStatus = "rejected"
	CoverageStatusExpired         CoverageRequestStatus = "expired"
	CoverageStatusCancelled       CoverageRequestStatus = "cancelled"
)

func (s CoverageRequestStatus) IsTerminal() bool {
	switch s {
	case CoverageStatusCompleted, CoverageStatusRejected, CoverageStatusExpired, CoverageStatusCancelled:
		return true
	}
	return false
}

var coverageTransitions = map[CoverageRequestStatus][]CoverageRequestStatus{
	CoverageStatusOpen: {
		CoverageStatusAccepted,
		CoverageStatusExpired,
		CoverageStatusCancelled,
	},
	CoverageStatusAccepted: {
		CoverageStatusPendingApproval,
		// 紧急请求按策略可以跳过审批直接完成
		CoverageStatusCompleted,
		CoverageStatusCancelled,
	},
	CoverageStatusPendingApproval: {
		CoverageStatusCompleted,
		CoverageStatusRejected,
		// 审批时发现世界已经变化，回退重新征集响应
		CoverageStatusOpen,
	},
}

// CanTransitionTo 判断求援请求能否从当前状态转移到目标状态
func (s CoverageRequestStatus) CanTransitionTo(target CoverageRequestStatus) bool {
	for _, t := range coverageTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// CoverageRequest 求援（顶班）请求：请求者的某个班次需要有人接手
type CoverageRequest struct {
	ID                int64                 `json:"id"`
	RequesterID       int64                 `json:"requesterID"`
	RequesterAssignID int64                 `json:"requesterAssignmentID"`
	Status            CoverageRequestStatus `json:"status"`
	IsEmergency       bool                  `json:"isEmergency"`
	ExpiresAt         time.Time             `json:"expiresAt"`
	AcceptedByID      *int64                `json:"acceptedByID"`
	ApproverID        *int64                `json:"approverID"`
	ApprovedAt        *time.Time            `json:"approvedAt"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
	Version           int32                 `json:"-"`
}

// CoverageResponse 对求援请求的响应。AssignmentID 为空表示响应者
// 单纯自愿接手这个班次，不为空表示响应者以自己的班次顶替
type CoverageResponse struct {
	ID           int64     `json:"id"`
	RequestID    int64     `json:"requestID"`
	ResponderID  int64     `json:"responderID"`
	AssignmentID *int64    `json:"assignmentID"`
	CreatedAt    time.Time `json:"createdAt"`
}
