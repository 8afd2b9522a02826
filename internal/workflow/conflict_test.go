package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

func mustWindow(t *testing.T, start, end string) domain.ShiftWindow {
	t.Helper()
	window, err := (&domain.ShiftDefinition{StartTime: start, EndTime: end}).Window()
	require.NoError(t, err)
	return window
}

func TestHasConflict(t *testing.T) {
	morning := mustWindow(t, "09:00:00", "13:00:00")
	noon := mustWindow(t, "12:00:00", "16:00:00")
	evening := mustWindow(t, "18:00:00", "22:00:00")
	night := mustWindow(t, "22:00:00", "06:00:00")
	dawn := mustWindow(t, "05:00:00", "09:00:00")

	windows := map[int64]domain.ShiftWindow{
		1: morning,
		2: noon,
		3: evening,
		4: night,
		5: dawn,
	}

	from := day(2026, 9, 1)
	until := day(2026, 9, 30)

	active := func(id, shiftID int64, start time.Time, end *time.Time) *domain.ShiftAssignment {
		return &domain.ShiftAssignment{ID: id, ShiftID: shiftID, StartDate: start, EndDate: end, IsActive: true}
	}

	t.Run("时间重叠即冲突", func(t *testing.T) {
		assignments := []*domain.ShiftAssignment{active(10, 1, from, nil)}
		id, ok := HasConflict(assignments, windows, noon, from, &until, 0)
		require.True(t, ok)
		require.Equal(t, int64(10), id)
	})

	t.Run("不重叠的班次共存", func(t *testing.T) {
		assignments := []*domain.ShiftAssignment{active(10, 1, from, nil)}
		_, ok := HasConflict(assignments, windows, evening, from, &until, 0)
		require.False(t, ok)
	})

	t.Run("被替换的绑定不参与检查", func(t *testing.T) {
		assignments := []*domain.ShiftAssignment{active(10, 1, from, nil)}
		_, ok := HasConflict(assignments, windows, noon, from, &until, 10)
		require.False(t, ok)
	})

	t.Run("退役的绑定不参与检查", func(t *testing.T) {
		retired := active(10, 1, from, nil)
		retired.IsActive = false
		_, ok := HasConflict([]*domain.ShiftAssignment{retired}, windows, noon, from, &until, 0)
		require.False(t, ok)
	})

	t.Run("生效区间不相交时不冲突", func(t *testing.T) {
		otherEnd := day(2026, 8, 15)
		assignments := []*domain.ShiftAssignment{active(10, 1, day(2026, 8, 1), &otherEnd)}
		_, ok := HasConflict(assignments, windows, noon, from, &until, 0)
		require.False(t, ok)
	})

	t.Run("跨午夜的班次与凌晨班冲突", func(t *testing.T) {
		assignments := []*domain.ShiftAssignment{active(10, 4, from, nil)}
		id, ok := HasConflict(assignments, windows, dawn, from, &until, 0)
		require.True(t, ok)
		require.Equal(t, int64(10), id)
	})

	t.Run("无限期提议区间", func(t *testing.T) {
		// 对方在 from 之前就结束了，不冲突
		pastEnd := day(2026, 8, 15)
		ended := []*domain.ShiftAssignment{active(10, 2, day(2026, 8, 1), &pastEnd)}
		_, ok := HasConflict(ended, windows, morning, from, nil, 0)
		require.False(t, ok)

		// 对方同样无限期，冲突
		open := []*domain.ShiftAssignment{active(11, 2, day(2026, 8, 1), nil)}
		id, ok := HasConflict(open, windows, morning, from, nil, 0)
		require.True(t, ok)
		require.Equal(t, int64(11), id)
	})
}

func TestCheckEmployeeConflict(t *testing.T) {
	f := newFixture()

	// alice 已持有早班，再给她一个与早班重叠的午间班次会冲突
	noon := f.store.addShift(domain.ShiftDefinition{Name: "午班", BranchID: 1, StartTime: "12:00:00", EndTime: "16:00:00"})

	err := f.engine.checkEmployeeConflict(f.alice.ID, noon.ID, time.Now(), nil, 0)
	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, f.alice.ID, conflictErr.EmployeeID)
	require.Equal(t, f.aliceMorning.ID, conflictErr.ConflictWith)

	// 晚班与早班不重叠
	require.NoError(t, f.engine.checkEmployeeConflict(f.alice.ID, f.evening.ID, time.Now(), nil, 0))

	// 被替换的绑定被排除后不再冲突
	require.NoError(t, f.engine.checkEmployeeConflict(f.alice.ID, noon.ID, time.Now(), nil, f.aliceMorning.ID))
}
