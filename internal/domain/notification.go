package domain

import "time"

// 通知事件类型，notifier 进程按类型选择邮件模板
const (
	NotifyRequestCreated    = "request_created"
	NotifyResponseReceived  = "response_received"
	NotifyApprovalRequired  = "approval_required"
	NotifyApproved          = "approved"
	NotifyRejected          = "rejected"
	NotifyCompleted         = "completed"
	NotifyExpired           = "expired"
	NotifyAssignmentChanged = "assignment_changed"
)

// NotificationMessage 投递到消息队列的通知，To 为收件人邮箱
type NotificationMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

// RequestEventData 换班/求援请求相关事件的通知内容
type RequestEventData struct {
	RequestKind   string    `json:"requestKind"` // swap | coverage
	RequestID     int64     `json:"requestID"`
	RequesterName string    `json:"requesterName"`
	ShiftName     string    `json:"shiftName"`
	Date          time.Time `json:"date"`
	IsEmergency   bool      `json:"isEmergency"`
	Detail        string    `json:"detail"`
}

// AssignmentChangedData 班次绑定变更事件的通知内容
type AssignmentChangedData struct {
	EmployeeName  string                 `json:"employeeName"`
	ShiftName     string                 `json:"shiftName"`
	EffectiveDate time.Time              `json:"effectiveDate"`
	Reason        AssignmentChangeReason `json:"reason"`
}

// BoardEntry 分店广播看板上的一条开放请求摘要
type BoardEntry struct {
	Kind        string    `json:"kind"` // swap | coverage
	RequestID   int64     `json:"requestID"`
	ShiftName   string    `json:"shiftName"`
	Date        time.Time `json:"date"`
	IsEmergency bool      `json:"isEmergency"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
