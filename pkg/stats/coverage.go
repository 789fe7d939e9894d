// Package stats 提供排班统计分析功能
package stats

import (
	"sort"

	"github.com/paiban/shiftopt/pkg/model"
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	TotalShifts        int     `json:"total_shifts"`         // 总班次数
	FullyCoveredShifts int     `json:"fully_covered_shifts"` // 满员班次数
	RequiredSlots      int     `json:"required_slots"`       // 需求人次
	FilledSlots        int     `json:"filled_slots"`         // 已填人次
	CoverageRate       float64 `json:"coverage_rate"`        // 人次覆盖率 (%)

	// 按日期统计
	DailyCoverage map[string]DayCoverage `json:"daily_coverage"`

	// 按优先级统计
	PriorityCoverage map[string]float64 `json:"priority_coverage"`

	UncoveredShifts []UncoveredShift `json:"uncovered_shifts"`
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Date          string  `json:"date"`
	TotalShifts   int     `json:"total_shifts"`
	RequiredSlots int     `json:"required_slots"`
	FilledSlots   int     `json:"filled_slots"`
	CoverageRate  float64 `json:"coverage_rate"`
	TotalHours    float64 `json:"total_hours"`
}

// UncoveredShift 未满员班次
type UncoveredShift struct {
	ShiftID   string `json:"shift_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Priority  string `json:"priority"`
	Required  int    `json:"required"`
	Assigned  int    `json:"assigned"`
	Shortage  int    `json:"shortage"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

// Analyze 分析覆盖率。每个班次的已填人次以 requiredStaff 为上限，
// requiredStaff 为 0 的班次不计入分母
func (c *CoverageAnalyzer) Analyze(shifts []model.ShiftRequirement, assignments []model.Assignment) *CoverageMetrics {
	metrics := &CoverageMetrics{
		TotalShifts:      len(shifts),
		DailyCoverage:    make(map[string]DayCoverage),
		PriorityCoverage: make(map[string]float64),
		UncoveredShifts:  make([]UncoveredShift, 0),
	}

	counts := countPerShift(assignments)

	daily := make(map[string]*DayCoverage)
	priorityRequired := make(map[string]int)
	priorityFilled := make(map[string]int)

	for i := range shifts {
		sh := &shifts[i]
		assigned := counts[sh.ID]
		filled := assigned
		if filled > sh.RequiredStaff {
			filled = sh.RequiredStaff
		}

		metrics.RequiredSlots += sh.RequiredStaff
		metrics.FilledSlots += filled
		if assigned >= sh.RequiredStaff {
			metrics.FullyCoveredShifts++
		} else {
			metrics.UncoveredShifts = append(metrics.UncoveredShifts, UncoveredShift{
				ShiftID:   sh.ID,
				Date:      sh.Date,
				StartTime: sh.StartTime,
				EndTime:   sh.EndTime,
				Priority:  sh.Priority.String(),
				Required:  sh.RequiredStaff,
				Assigned:  assigned,
				Shortage:  sh.RequiredStaff - assigned,
			})
		}

		// 日期统计
		day, ok := daily[sh.Date]
		if !ok {
			day = &DayCoverage{Date: sh.Date}
			daily[sh.Date] = day
		}
		day.TotalShifts++
		day.RequiredSlots += sh.RequiredStaff
		day.FilledSlots += filled
		day.TotalHours += float64(assigned) * sh.Hours()

		p := sh.Priority.String()
		priorityRequired[p] += sh.RequiredStaff
		priorityFilled[p] += filled
	}

	metrics.CoverageRate = CoverageRate(metrics.FilledSlots, metrics.RequiredSlots)

	for date, day := range daily {
		day.CoverageRate = CoverageRate(day.FilledSlots, day.RequiredSlots)
		metrics.DailyCoverage[date] = *day
	}
	for p, req := range priorityRequired {
		metrics.PriorityCoverage[p] = CoverageRate(priorityFilled[p], req)
	}

	return metrics
}

// AnalyzeTimeRange 分析指定日期范围（含首尾）的覆盖率
func (c *CoverageAnalyzer) AnalyzeTimeRange(shifts []model.ShiftRequirement, assignments []model.Assignment, startDate, endDate string) *CoverageMetrics {
	var filtered []model.ShiftRequirement
	keep := make(map[string]struct{})
	for _, sh := range shifts {
		if sh.Date >= startDate && sh.Date <= endDate {
			filtered = append(filtered, sh)
			keep[sh.ID] = struct{}{}
		}
	}

	var filteredAssignments []model.Assignment
	for _, a := range assignments {
		if _, ok := keep[a.ShiftID]; ok {
			filteredAssignments = append(filteredAssignments, a)
		}
	}

	return c.Analyze(filtered, filteredAssignments)
}

// CoverageRate 人次覆盖率，限制在 [0,100]；需求为 0 时定义为 100
func CoverageRate(filled, required int) float64 {
	if required <= 0 {
		return 100
	}
	return clamp(float64(filled)/float64(required)*100, 0, 100)
}

// countPerShift 每个班次的去重分配人数
func countPerShift(assignments []model.Assignment) map[string]int {
	seen := make(map[string]struct{}, len(assignments))
	counts := make(map[string]int)
	for _, a := range assignments {
		key := a.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		counts[a.ShiftID]++
	}
	return counts
}

// SortedDates 按日期排序的每日覆盖
func (m *CoverageMetrics) SortedDates() []DayCoverage {
	out := make([]DayCoverage, 0, len(m.DailyCoverage))
	for _, d := range m.DailyCoverage {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
