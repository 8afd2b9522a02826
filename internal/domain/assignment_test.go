package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAssignmentCoversDate(t *testing.T) {
	end := day(2026, 9, 30)
	bounded := &ShiftAssignment{StartDate: day(2026, 9, 1), EndDate: &end}
	unbounded := &ShiftAssignment{StartDate: day(2026, 9, 1)}

	require.False(t, bounded.CoversDate(day(2026, 8, 31)))
	require.True(t, bounded.CoversDate(day(2026, 9, 1)))
	require.True(t, bounded.CoversDate(day(2026, 9, 30)))
	require.False(t, bounded.CoversDate(day(2026, 10, 1)))

	// 无限期绑定覆盖开始日期之后的任何日期
	require.True(t, unbounded.CoversDate(day(2030, 1, 1)))
	require.False(t, unbounded.CoversDate(day(2026, 8, 31)))

	// 只比较日期部分，时刻不影响结论
	require.True(t, bounded.CoversDate(time.Date(2026, 9, 30, 23, 59, 0, 0, time.UTC)))
}

func TestAssignmentIntersectsRange(t *testing.T) {
	end := day(2026, 9, 30)
	bounded := &ShiftAssignment{StartDate: day(2026, 9, 1), EndDate: &end}
	unbounded := &ShiftAssignment{StartDate: day(2026, 9, 1)}

	require.True(t, bounded.IntersectsRange(day(2026, 8, 1), day(2026, 9, 1)))
	require.True(t, bounded.IntersectsRange(day(2026, 9, 15), day(2026, 10, 15)))
	require.False(t, bounded.IntersectsRange(day(2026, 10, 1), day(2026, 10, 31)))
	require.False(t, bounded.IntersectsRange(day(2026, 8, 1), day(2026, 8, 31)))

	require.True(t, unbounded.IntersectsRange(day(2030, 1, 1), day(2030, 12, 31)))
}
