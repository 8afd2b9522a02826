package domain

import (
	"fmt"
	"time"
)

// ShiftDefinition 班次定义，开始和结束时间均为当天的时刻（HH:MM:SS），
// 结束时刻早于开始时刻表示该班次跨越午夜
type ShiftDefinition struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	BranchID  int64     `json:"branchID"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}

// Window 把班次的起止时刻解析为从当天零点起算的分钟区间，
// 跨越午夜的班次的结束分钟数会大于 24*60
func (s *ShiftDefinition) Window() (ShiftWindow, error) {
	start, err := parseMinuteOfDay(s.StartTime)
	if err != nil {
		return ShiftWindow{}, err
	}
	end, err := parseMinuteOfDay(s.EndTime)
	if err != nil {
		return ShiftWindow{}, err
	}

	if end <= start {
		// 跨越午夜
		end += minutesPerDay
	}

	return ShiftWindow{StartMinute: start, EndMinute: end}, nil
}

const minutesPerDay = 24 * 60

// ShiftWindow 班次在一天内占用的时间区间，左闭右开
type ShiftWindow struct {
	StartMinute int
	EndMinute   int
}

// Overlaps 判断两个班次时间区间是否重叠。
// 由于跨午夜的区间结束分钟数会超过 24*60，除了直接比较外，
// 还需要把其中一个区间平移一天再比较一次
func (w ShiftWindow) Overlaps(other ShiftWindow) bool {
	if overlaps(w.StartMinute, w.EndMinute, other.StartMinute, other.EndMinute) {
		return true
	}
	if overlaps(w.StartMinute+minutesPerDay, w.EndMinute+minutesPerDay, other.StartMinute, other.EndMinute) {
		return true
	}
	return overlaps(w.StartMinute, w.EndMinute, other.StartMinute+minutesPerDay, other.EndMinute+minutesPerDay)
}

// 半开区间重叠判断
func overlaps(startA, endA, startB, endB int) bool {
	return startA < endB && startB < endA
}

func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, fmt.Errorf("非法的时刻格式: %s", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
