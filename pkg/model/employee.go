package model

import "time"

// DefaultMaxHoursPerWeek 默认每周最大工时
const DefaultMaxHoursPerWeek = 40.0

// DefaultMaxConsecutiveDays 默认最大连续工作天数
const DefaultMaxConsecutiveDays = 5

// Preferences 员工偏好
type Preferences struct {
	PreferredShifts      StringSet `json:"preferred_shifts"`
	AvoidShifts          StringSet `json:"avoid_shifts"`
	MaxConsecutiveDays   int       `json:"max_consecutive_days"`
	MinDaysBetweenShifts int       `json:"min_days_between_shifts"`
}

// Restrictions 员工限制
type Restrictions struct {
	UnavailableDates    StringSet `json:"unavailable_dates"`
	MaxOvertimePerMonth float64   `json:"max_overtime_per_month"` // 0 表示不限制
	Certifications      StringSet `json:"certifications"`
}

// EmployeeProfile 员工画像，一次优化内不可变
type EmployeeProfile struct {
	ID              string         `json:"id"`
	Name            string         `json:"name,omitempty"`
	MaxHoursPerWeek float64        `json:"max_hours_per_week"`
	MinHoursPerWeek float64        `json:"min_hours_per_week"`
	Skills          map[string]int `json:"skills"` // 技能 -> 等级
	AvailableDays   [7]bool        `json:"available_days"` // 周日在前
	Preferences     Preferences    `json:"preferences"`
	Restrictions    Restrictions   `json:"restrictions"`
}

// AllDays 每天可用的星期掩码，未给出 available_days 时使用
func AllDays() [7]bool {
	return [7]bool{true, true, true, true, true, true, true}
}

// AvailableOn 员工当天是否可上班（星期掩码与不可用日期）
func (e *EmployeeProfile) AvailableOn(day time.Time) bool {
	if !e.AvailableDays[day.Weekday()] {
		return false
	}
	return !e.Restrictions.UnavailableDates.Has(day.Format(DateLayout))
}

// HasSkillAtLeast 是否拥有 allowed 中任一技能且等级不低于 minLevel
func (e *EmployeeProfile) HasSkillAtLeast(allowed StringSet, minLevel int) bool {
	if len(allowed) == 0 {
		return true
	}
	for skill := range allowed {
		if lvl, ok := e.Skills[skill]; ok && lvl >= minLevel {
			return true
		}
	}
	return false
}

// HasCertifications 是否持有全部证书
func (e *EmployeeProfile) HasCertifications(required StringSet) bool {
	for cert := range required {
		if !e.Restrictions.Certifications.Has(cert) {
			return false
		}
	}
	return true
}

// Prefers 是否偏好该班次
func (e *EmployeeProfile) Prefers(shiftID string) bool {
	return e.Preferences.PreferredShifts.Has(shiftID)
}

// Avoids 是否回避该班次
func (e *EmployeeProfile) Avoids(shiftID string) bool {
	return e.Preferences.AvoidShifts.Has(shiftID)
}
