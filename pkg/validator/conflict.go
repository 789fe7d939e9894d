// Package validator 对排班结果做独立的事后校验，不依赖优化引擎内部状态
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictUnknownEmployee ConflictType = "unknown_employee" // 员工不存在
	ConflictUnknownShift    ConflictType = "unknown_shift"    // 班次不存在
	ConflictDuplicate       ConflictType = "duplicate"        // 重复分配
	ConflictCapacity        ConflictType = "capacity"         // 超出需求人数
	ConflictOverlap         ConflictType = "overlap"          // 时间重叠
	ConflictMaxHours        ConflictType = "max_hours"        // 超过周最大工时
	ConflictOvertime        ConflictType = "overtime"         // 超过月加班上限
	ConflictSkill           ConflictType = "skill"            // 技能不匹配
	ConflictCertification   ConflictType = "certification"    // 缺少证书
	ConflictAvailability    ConflictType = "availability"     // 不可用
	ConflictConsecutive     ConflictType = "consecutive"      // 连续天数过多
	ConflictRestTime        ConflictType = "rest_time"        // 休息间隔不足
)

// 严重程度
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Conflict 冲突信息
type Conflict struct {
	Type       ConflictType `json:"type"`
	Severity   string       `json:"severity"` // error/warning
	EmployeeID string       `json:"employee_id,omitempty"`
	ShiftID    string       `json:"shift_id,omitempty"`
	Date       string       `json:"date,omitempty"`
	Message    string       `json:"message"`
	Related    []string     `json:"related,omitempty"` // 相关班次ID
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	StandardWeeklyHours float64 // 计算加班的标准周工时
	CheckSoft           bool    // 是否报告连续天数与休息间隔等软约束
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		StandardWeeklyHours: 40,
		CheckSoft:           true,
	}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	if config.StandardWeeklyHours <= 0 {
		config.StandardWeeklyHours = 40
	}
	return &ConflictDetector{config: config}
}

// placed 已解析到员工与班次的分配
type placed struct {
	emp   *model.EmployeeProfile
	shift *model.ShiftRequirement
}

// DetectAll 检测所有冲突。班次须已 Resolve，结果按员工、日期、类型排序
func (d *ConflictDetector) DetectAll(assignments []model.Assignment, employees []model.EmployeeProfile, shifts []model.ShiftRequirement) []Conflict {
	var conflicts []Conflict

	empByID := make(map[string]*model.EmployeeProfile, len(employees))
	for i := range employees {
		empByID[employees[i].ID] = &employees[i]
	}
	shiftByID := make(map[string]*model.ShiftRequirement, len(shifts))
	for i := range shifts {
		shiftByID[shifts[i].ID] = &shifts[i]
	}

	seen := make(map[string]struct{}, len(assignments))
	perShift := make(map[string]int)
	byEmployee := make(map[string][]placed)

	for _, a := range assignments {
		emp, okE := empByID[a.EmployeeID]
		sh, okS := shiftByID[a.ShiftID]
		if !okE {
			conflicts = append(conflicts, errorConflict(ConflictUnknownEmployee, a.EmployeeID, a.ShiftID, a.Date,
				fmt.Sprintf("员工 %s 不存在", a.EmployeeID)))
		}
		if !okS {
			conflicts = append(conflicts, errorConflict(ConflictUnknownShift, a.EmployeeID, a.ShiftID, a.Date,
				fmt.Sprintf("班次 %s 不存在", a.ShiftID)))
		}
		if !okE || !okS {
			continue
		}

		if _, dup := seen[a.Key()]; dup {
			conflicts = append(conflicts, errorConflict(ConflictDuplicate, emp.ID, sh.ID, sh.Date,
				fmt.Sprintf("员工 %s 重复分配到班次 %s", emp.ID, sh.ID)))
			continue
		}
		seen[a.Key()] = struct{}{}
		perShift[sh.ID]++

		conflicts = append(conflicts, d.detectEligibility(emp, sh)...)
		byEmployee[emp.ID] = append(byEmployee[emp.ID], placed{emp: emp, shift: sh})
	}

	for i := range shifts {
		sh := &shifts[i]
		if n := perShift[sh.ID]; n > sh.RequiredStaff {
			conflicts = append(conflicts, errorConflict(ConflictCapacity, "", sh.ID, sh.Date,
				fmt.Sprintf("班次 %s 分配 %d 人，超过需求 %d 人", sh.ID, n, sh.RequiredStaff)))
		}
	}

	for _, list := range byEmployee {
		conflicts = append(conflicts, d.detectOverlaps(list)...)
		conflicts = append(conflicts, d.detectHoursViolations(list)...)
		if d.config.CheckSoft {
			conflicts = append(conflicts, d.detectSoftViolations(list)...)
		}
	}

	sortConflicts(conflicts)
	return conflicts
}

// DetectForAssignment 检测在已有分配上再加一条分配会产生的硬冲突
func (d *ConflictDetector) DetectForAssignment(newAssignment model.Assignment, existing []model.Assignment, employees []model.EmployeeProfile, shifts []model.ShiftRequirement) []Conflict {
	before := make(map[string]struct{})
	for _, c := range d.hardOnly(d.DetectAll(existing, employees, shifts)) {
		before[conflictKey(c)] = struct{}{}
	}

	all := append(append([]model.Assignment(nil), existing...), newAssignment)
	var added []Conflict
	for _, c := range d.hardOnly(d.DetectAll(all, employees, shifts)) {
		if _, ok := before[conflictKey(c)]; !ok {
			added = append(added, c)
		}
	}
	return added
}

// Validate 存在硬冲突时返回 INVARIANT_BROKEN 错误
func (d *ConflictDetector) Validate(assignments []model.Assignment, employees []model.EmployeeProfile, shifts []model.ShiftRequirement) error {
	hard := d.hardOnly(d.DetectAll(assignments, employees, shifts))
	if len(hard) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(hard))
	for _, c := range hard {
		msgs = append(msgs, c.Message)
	}
	return errors.InvariantBroken(strings.Join(msgs, "; ")).WithField("conflicts", len(hard))
}

// HasErrors 是否存在硬冲突
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (d *ConflictDetector) hardOnly(conflicts []Conflict) []Conflict {
	out := conflicts[:0:0]
	for _, c := range conflicts {
		if c.Severity == SeverityError {
			out = append(out, c)
		}
	}
	return out
}

// detectEligibility 技能、证书、出勤日、不可用日期
func (d *ConflictDetector) detectEligibility(emp *model.EmployeeProfile, sh *model.ShiftRequirement) []Conflict {
	var conflicts []Conflict

	if !emp.HasSkillAtLeast(sh.AllowedSkills, sh.MinSkillLevel) {
		conflicts = append(conflicts, errorConflict(ConflictSkill, emp.ID, sh.ID, sh.Date,
			fmt.Sprintf("员工 %s 不具备班次 %s 要求的技能（等级 ≥ %d）", emp.ID, sh.ID, sh.MinSkillLevel)))
	}
	if !emp.HasCertifications(sh.RequiredCertifications) {
		conflicts = append(conflicts, errorConflict(ConflictCertification, emp.ID, sh.ID, sh.Date,
			fmt.Sprintf("员工 %s 缺少班次 %s 要求的证书", emp.ID, sh.ID)))
	}
	if !emp.AvailableOn(sh.Day) {
		conflicts = append(conflicts, errorConflict(ConflictAvailability, emp.ID, sh.ID, sh.Date,
			fmt.Sprintf("员工 %s 在 %s 不可上班", emp.ID, sh.Date)))
	}
	return conflicts
}

// detectOverlaps 检测时间重叠，按开始时间排序后两两比较
func (d *ConflictDetector) detectOverlaps(list []placed) []Conflict {
	var conflicts []Conflict

	sorted := make([]placed, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].shift.Window.Start.Before(sorted[j].shift.Window.Start)
	})

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i].shift, sorted[j].shift
			if !b.Window.Start.Before(a.Window.End) {
				break
			}
			conflicts = append(conflicts, Conflict{
				Type:       ConflictOverlap,
				Severity:   SeverityError,
				EmployeeID: sorted[i].emp.ID,
				ShiftID:    b.ID,
				Date:       b.Date,
				Message:    fmt.Sprintf("员工 %s 的班次 %s 与 %s 时间重叠", sorted[i].emp.ID, a.ID, b.ID),
				Related:    []string{a.ID, b.ID},
			})
		}
	}

	return conflicts
}

// detectHoursViolations 检测周工时上限与月加班上限
func (d *ConflictDetector) detectHoursViolations(list []placed) []Conflict {
	var conflicts []Conflict
	emp := list[0].emp

	// 与引擎一致：跨夜班次整段计入开始日期所在的周
	weekHours := make(map[string]float64)
	for _, p := range list {
		weekHours[model.WeekKey(p.shift.Day)] += p.shift.Hours()
	}
	weeks := make([]string, 0, len(weekHours))
	for w := range weekHours {
		weeks = append(weeks, w)
	}
	sort.Strings(weeks)

	const eps = 1e-9
	for _, w := range weeks {
		if weekHours[w] > emp.MaxHoursPerWeek+eps {
			conflicts = append(conflicts, errorConflict(ConflictMaxHours, emp.ID, "", w,
				fmt.Sprintf("员工 %s 在 %s 工作 %.1f 小时，超过上限 %.1f 小时", emp.ID, w, weekHours[w], emp.MaxHoursPerWeek)))
		}
	}

	limit := emp.Restrictions.MaxOvertimePerMonth
	if limit <= 0 {
		return conflicts
	}
	monthOvertime := make(map[string]float64)
	weekMonth := make(map[string]string)
	for _, p := range list {
		weekMonth[model.WeekKey(p.shift.Day)] = isoWeekMonth(p.shift)
	}
	for _, w := range weeks {
		if over := weekHours[w] - d.config.StandardWeeklyHours; over > 0 {
			monthOvertime[weekMonth[w]] += over
		}
	}
	months := make([]string, 0, len(monthOvertime))
	for m := range monthOvertime {
		months = append(months, m)
	}
	sort.Strings(months)
	for _, m := range months {
		if monthOvertime[m] > limit+eps {
			conflicts = append(conflicts, errorConflict(ConflictOvertime, emp.ID, "", m,
				fmt.Sprintf("员工 %s 在 %s 加班 %.1f 小时，超过上限 %.1f 小时", emp.ID, m, monthOvertime[m], limit)))
		}
	}
	return conflicts
}

// detectSoftViolations 连续工作天数与最少休息天数，只作为警告
func (d *ConflictDetector) detectSoftViolations(list []placed) []Conflict {
	var conflicts []Conflict
	emp := list[0].emp

	daySet := make(map[int]string)
	for _, p := range list {
		daySet[int(p.shift.Day.Unix()/86400)] = p.shift.Date
	}
	days := make([]int, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Ints(days)

	maxRun := emp.Preferences.MaxConsecutiveDays
	minGap := emp.Preferences.MinDaysBetweenShifts
	run, runStart := 1, days[0]
	for i := 1; i <= len(days); i++ {
		if i < len(days) && days[i] == days[i-1]+1 {
			run++
			continue
		}
		if maxRun > 0 && run > maxRun {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictConsecutive,
				Severity:   SeverityWarning,
				EmployeeID: emp.ID,
				Date:       daySet[runStart],
				Message:    fmt.Sprintf("员工 %s 从 %s 起连续工作 %d 天，超过 %d 天", emp.ID, daySet[runStart], run, maxRun),
			})
		}
		if i < len(days) {
			run, runStart = 1, days[i]
		}
	}

	if minGap > 0 {
		for i := 1; i < len(days); i++ {
			if gap := days[i] - days[i-1] - 1; gap < minGap {
				conflicts = append(conflicts, Conflict{
					Type:       ConflictRestTime,
					Severity:   SeverityWarning,
					EmployeeID: emp.ID,
					Date:       daySet[days[i]],
					Message:    fmt.Sprintf("员工 %s 在 %s 前仅休息 %d 天，少于 %d 天", emp.ID, daySet[days[i]], gap, minGap),
				})
			}
		}
	}
	return conflicts
}

// isoWeekMonth ISO 周按其周四所在月份归属
func isoWeekMonth(sh *model.ShiftRequirement) string {
	wd := int(sh.Day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return model.MonthKey(sh.Day.AddDate(0, 0, 4-wd))
}

func errorConflict(t ConflictType, empID, shiftID, date, msg string) Conflict {
	return Conflict{Type: t, Severity: SeverityError, EmployeeID: empID, ShiftID: shiftID, Date: date, Message: msg}
}

func conflictKey(c Conflict) string {
	return string(c.Type) + "|" + c.EmployeeID + "|" + c.ShiftID + "|" + c.Date + "|" + strings.Join(c.Related, ",")
}

func sortConflicts(conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.ShiftID != b.ShiftID {
			return a.ShiftID < b.ShiftID
		}
		return a.Message < b.Message
	})
}
