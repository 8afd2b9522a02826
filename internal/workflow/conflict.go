package workflow

import (
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

// HasConflict 纯谓词：若员工在 [from, until] 内持有 proposed 班次，
// 是否与 assignments 中的其他绑定发生时间重叠。
// excludeID 用于忽略正在被替换的那条绑定，避免请求与自身冲突。
// 区间判断采用左闭右开，跨午夜的班次由 ShiftWindow 内部处理
func HasConflict(assignments []*domain.ShiftAssignment, windows map[int64]domain.ShiftWindow, proposed domain.ShiftWindow, from time.Time, until *time.Time, excludeID int64) (int64, bool) {
	rangeEnd := from
	if until != nil {
		rangeEnd = *until
	}

	for _, a := range assignments {
		if a.ID == excludeID || !a.IsActive {
			continue
		}
		if until != nil && !a.IntersectsRange(from, rangeEnd) {
			continue
		}
		if until == nil {
			// 提议区间无限期：只要对方的区间不在 from 之前结束就算相交
			if a.EndDate != nil && a.EndDate.Before(from) {
				continue
			}
		}

		window, ok := windows[a.ShiftID]
		if !ok {
			continue
		}
		if proposed.Overlaps(window) {
			return a.ID, true
		}
	}

	return 0, false
}

// checkEmployeeConflict 基于 Store 的当前状态运行冲突检查，
// 审批时必须用它重新校验，而不能信任请求创建时的结论
func (e *Engine) checkEmployeeConflict(employeeID, proposedShiftID int64, from time.Time, until *time.Time, excludeID int64) error {
	proposedShift, err := e.store.GetShiftByID(proposedShiftID)
	if err != nil {
		return err
	}
	proposed, err := proposedShift.Window()
	if err != nil {
		return err
	}

	rangeEnd := from.AddDate(10, 0, 0) // 无限期区间的查询上界
	if until != nil {
		rangeEnd = *until
	}

	assignments, err := e.store.ListAssignments(employeeID, from, rangeEnd)
	if err != nil {
		return err
	}

	windows := make(map[int64]domain.ShiftWindow)
	for _, a := range assignments {
		if _, ok := windows[a.ShiftID]; ok {
			continue
		}
		shift, err := e.store.GetShiftByID(a.ShiftID)
		if err != nil {
			return err
		}
		window, err := shift.Window()
		if err != nil {
			return err
		}
		windows[a.ShiftID] = window
	}

	if conflictWith, ok := HasConflict(assignments, windows, proposed, from, until, excludeID); ok {
		return &domain.ConflictError{EmployeeID: employeeID, ShiftID: proposedShiftID, ConflictWith: conflictWith}
	}

	return nil
}
