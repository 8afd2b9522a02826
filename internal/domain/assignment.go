package domain

import (
	"time"
)

// ShiftAssignment 员工与班次的绑定关系，生效区间为 [StartDate, EndDate]，
// EndDate 为空表示无限期。换班或求援完成后旧的绑定不会被删除，
// 而是被置为不活跃并写上结束日期，以保留历史
type ShiftAssignment struct {
	ID         int64      `json:"id"`
	EmployeeID int64      `json:"employeeID"`
	ShiftID    int64      `json:"shiftID"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    *time.Time `json:"endDate"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	Version    int32      `json:"-"`
}

// CoversDate 判断该绑定在给定日期是否生效（只比较日期部分）
func (a *ShiftAssignment) CoversDate(date time.Time) bool {
	day := truncateToDay(date)
	if day.Before(truncateToDay(a.StartDate)) {
		return false
	}
	if a.EndDate != nil && day.After(truncateToDay(*a.EndDate)) {
		return false
	}
	return true
}

// IntersectsRange 判断该绑定的生效区间与 [from, to] 是否相交
func (a *ShiftAssignment) IntersectsRange(from, to time.Time) bool {
	if truncateToDay(to).Before(truncateToDay(a.StartDate)) {
		return false
	}
	if a.EndDate != nil && truncateToDay(from).After(truncateToDay(*a.EndDate)) {
		return false
	}
	return true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AssignmentChangeReason 表示班次绑定变更的来源
type AssignmentChangeReason string

const (
	ChangeReasonSwap     AssignmentChangeReason = "swap"
	ChangeReasonCoverage AssignmentChangeReason = "coverage"
	ChangeReasonAdmin    AssignmentChangeReason = "admin"
)
