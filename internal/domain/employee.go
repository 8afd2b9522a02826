package domain

import (
	"time"
)

type Role string

const (
	RoleEmployee Role = "普通员工"
	RoleManager  Role = "值班经理"
	RoleAdmin    Role = "管理员"
)

type Employee struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	PasswordHash       string    `json:"-"`
	FullName           string    `json:"fullName"`
	Email              string    `json:"email"`
	Role               Role      `json:"role"`
	BranchID           int64     `json:"branchID"`
	ReportingManagerID *int64    `json:"reportingManagerID"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
	Version            int32     `json:"-"`
}

// IsManagerOf 判断 e 是否是 other 的汇报经理
func (e *Employee) IsManagerOf(other *Employee) bool {
	return other.ReportingManagerID != nil && *other.ReportingManagerID == e.ID
}
