// Package model 定义排班优化引擎的核心数据模型
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const (
	// DateLayout 日期格式
	DateLayout = "2006-01-02"
	// ClockLayout 时刻格式
	ClockLayout = "15:04"
)

// TimeWindow 绝对时间窗口，左闭右开
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 返回时间窗口的持续时间
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Hours 返回小时数
func (w TimeWindow) Hours() float64 {
	return w.Duration().Hours()
}

// Overlaps 检查两个时间窗口是否重叠（首尾相接不算重叠）
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// ParseDate 解析 YYYY-MM-DD 日期（UTC）
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// ParseClock 解析 HH:MM，返回距零点的分钟数
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("时刻格式应为 HH:MM: %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// WeekKey 返回 ISO 周标识，如 2026-W03
func WeekKey(day time.Time) string {
	y, w := day.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// MonthKey 返回自然月标识，如 2026-01
func MonthKey(day time.Time) string {
	return day.Format("2006-01")
}

// StringSet 字符串集合，JSON 中以有序数组表示
type StringSet map[string]struct{}

// NewStringSet 由切片创建集合
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		if it != "" {
			s[it] = struct{}{}
		}
	}
	return s
}

// Has 是否包含
func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted 返回排序后的元素
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON 实现 json.Marshaler
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON 实现 json.Unmarshaler
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewStringSet(items...)
	return nil
}
