package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftRequirement_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		shift   ShiftRequirement
		hours   float64
		endDay  int
		wantErr bool
	}{
		{name: "白班", shift: ShiftRequirement{Date: "2026-01-12", StartTime: "09:00", EndTime: "17:00"}, hours: 8, endDay: 12},
		{name: "半小时精度", shift: ShiftRequirement{Date: "2026-01-12", StartTime: "09:00", EndTime: "13:30"}, hours: 4.5, endDay: 12},
		{name: "跨夜班", shift: ShiftRequirement{Date: "2026-01-12", StartTime: "22:00", EndTime: "06:00"}, hours: 8, endDay: 13},
		{name: "默认时段", shift: ShiftRequirement{Date: "2026-01-12"}, hours: 8, endDay: 12},
		{name: "起止相同", shift: ShiftRequirement{Date: "2026-01-12", StartTime: "08:00", EndTime: "08:00"}, wantErr: true},
		{name: "日期错误", shift: ShiftRequirement{Date: "2026/01/12"}, wantErr: true},
		{name: "时刻错误", shift: ShiftRequirement{Date: "2026-01-12", StartTime: "9点"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.shift
			err := s.Resolve()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.hours, s.Hours(), 1e-9)
			assert.Equal(t, tt.endDay, s.Window.End.Day())
		})
	}
}

func TestTimeWindow_Overlaps(t *testing.T) {
	day := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	w := func(h1, h2 int) TimeWindow {
		return TimeWindow{Start: day.Add(time.Duration(h1) * time.Hour), End: day.Add(time.Duration(h2) * time.Hour)}
	}

	assert.True(t, w(8, 16).Overlaps(w(12, 20)))
	assert.False(t, w(8, 16).Overlaps(w(16, 24)), "首尾相接不算重叠")
	assert.True(t, w(22, 30).Overlaps(w(29, 33)), "夜班延伸到次日")
}

func TestPriority_JSON(t *testing.T) {
	var s struct {
		A Priority `json:"a"`
		B Priority `json:"b"`
		C Priority `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"high","b":1,"c":null}`), &s))
	assert.Equal(t, PriorityHigh, s.A)
	assert.Equal(t, PriorityLow, s.B)
	assert.Equal(t, PriorityNormal, s.C)

	out, err := json.Marshal(PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, `"high"`, string(out))

	_, err = ParsePriority("critical")
	assert.Error(t, err)
	assert.Greater(t, PriorityHigh.CoverageFactor(), PriorityNormal.CoverageFactor())
}

func TestWeekKey(t *testing.T) {
	// 2026-01-04 是周日，属于 ISO 第 1 周；01-05 周一开始第 2 周
	assert.Equal(t, "2026-W01", WeekKey(time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-W02", WeekKey(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-01", MonthKey(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
}
