package domain

import (
	"errors"
	"fmt"
)

// ErrStaleState 并发修改导致的版本冲突，调用方应当重新读取后重试，
// 绝不能静默覆盖
var ErrStaleState = errors.New("记录已被并发修改，请重新读取后再试")

// ErrNotFound 引用的员工、绑定或请求不存在或已被回收
var ErrNotFound = errors.New("记录不存在")

// ValidationError 输入不合法或违反策略，在任何状态变化之前就被拒绝
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError 提议的变更会违反"同一员工同一时刻至多一个活跃班次"的不变式
type ConflictError struct {
	EmployeeID   int64
	ShiftID      int64
	ConflictWith int64 // 与之冲突的绑定 ID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("员工 %d 在班次 %d 上与现有绑定 %d 的时间重叠", e.EmployeeID, e.ShiftID, e.ConflictWith)
}

// StaleConflictError 审批时发现冲突：请求创建之后世界已经变化
// （例如其中一方的绑定被管理员独立修改），需要回到选择阶段重新处理
type StaleConflictError struct {
	RequestID int64
	Cause     error
}

func (e *StaleConflictError) Error() string {
	return fmt.Sprintf("请求 %d 审批时检测到过期冲突: %v", e.RequestID, e.Cause)
}

func (e *StaleConflictError) Unwrap() error {
	return e.Cause
}

// PersistenceError 存储层瞬时失败。原子操作没有提交任何部分状态，
// 因此调用方可以安全地整体重试
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("存储操作 %s 失败: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// InvalidTransitionError 状态机不接受的 (当前状态, 目标状态) 转移
type InvalidTransitionError struct {
	From, To string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("不允许从状态 %s 转移到 %s", e.From, e.To)
}
