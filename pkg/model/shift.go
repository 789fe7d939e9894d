package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 默认班次时段
const (
	DefaultStartTime = "09:00"
	DefaultEndTime   = "17:00"
)

// Priority 班次优先级
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
)

// String 返回优先级名称
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// CoverageFactor 缺员惩罚系数
func (p Priority) CoverageFactor() float64 {
	switch p {
	case PriorityLow:
		return 0.5
	case PriorityHigh:
		return 2.0
	default:
		return 1.0
	}
}

// ParsePriority 解析优先级，支持名称与数字
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal", "medium":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "high", "urgent":
		return PriorityHigh, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < int(PriorityLow) || n > int(PriorityHigh) {
		return PriorityNormal, fmt.Errorf("未知优先级 %q", s)
	}
	return Priority(n), nil
}

// MarshalJSON 实现 json.Marshaler
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON 接受 "high" 或 3
func (p *Priority) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*p = PriorityNormal
		return nil
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ShiftRequirement 班次需求，一次优化内不可变
type ShiftRequirement struct {
	ID                     string    `json:"id"`
	Date                   string    `json:"date"`
	StartTime              string    `json:"start_time"`
	EndTime                string    `json:"end_time"`
	RequiredStaff          int       `json:"required_staff"`
	MinSkillLevel          int       `json:"min_skill_level"`
	AllowedSkills          StringSet `json:"allowed_skills"`
	RequiredCertifications StringSet `json:"required_certifications,omitempty"`
	Department             string    `json:"department,omitempty"`
	Priority               Priority  `json:"priority"`

	Day    time.Time  `json:"-"`
	Window TimeWindow `json:"-"`
}

// Resolve 根据日期与起止时刻计算绝对时间窗口，结束早于开始视为跨夜
func (s *ShiftRequirement) Resolve() error {
	if s.StartTime == "" {
		s.StartTime = DefaultStartTime
	}
	if s.EndTime == "" {
		s.EndTime = DefaultEndTime
	}
	day, err := ParseDate(s.Date)
	if err != nil {
		return fmt.Errorf("日期格式应为 YYYY-MM-DD: %q", s.Date)
	}
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return err
	}
	if end == start {
		return fmt.Errorf("结束时刻不能等于开始时刻: %s", s.StartTime)
	}
	if end < start {
		end += 24 * 60
	}
	s.Day = day
	s.Window = TimeWindow{
		Start: day.Add(time.Duration(start) * time.Minute),
		End:   day.Add(time.Duration(end) * time.Minute),
	}
	return nil
}

// Hours 班次时长（小时）
func (s *ShiftRequirement) Hours() float64 {
	return s.Window.Hours()
}

// Assignment 排班结果单元
type Assignment struct {
	EmployeeID string  `json:"employee_id"`
	ShiftID    string  `json:"shift_id"`
	Date       string  `json:"date,omitempty"`
	StartTime  string  `json:"start_time,omitempty"`
	EndTime    string  `json:"end_time,omitempty"`
	Hours      float64 `json:"hours,omitempty"`
}

// NewAssignment 由员工和班次创建分配
func NewAssignment(employeeID string, shift *ShiftRequirement) Assignment {
	return Assignment{
		EmployeeID: employeeID,
		ShiftID:    shift.ID,
		Date:       shift.Date,
		StartTime:  shift.StartTime,
		EndTime:    shift.EndTime,
		Hours:      shift.Hours(),
	}
}

// Key 分配唯一键
func (a Assignment) Key() string {
	return a.ShiftID + "|" + a.EmployeeID
}
