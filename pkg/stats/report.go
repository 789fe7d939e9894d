package stats

import (
	"github.com/paiban/shiftopt/pkg/model"
)

// Report 排班质量报告
type Report struct {
	CoverageRate       float64 `json:"coverage_rate"`  // 0-100
	FairnessScore      float64 `json:"fairness_score"` // 0-1
	TotalShifts        int     `json:"total_shifts"`
	FullyCoveredShifts int     `json:"fully_covered_shifts"`
	RequiredSlots      int     `json:"required_slots"`
	FilledSlots        int     `json:"filled_slots"`
	TotalHours         float64 `json:"total_hours"`
	WorkloadGini       float64 `json:"workload_gini"`

	Coverage *CoverageMetrics `json:"coverage,omitempty"`
	Fairness *FairnessMetrics `json:"fairness,omitempty"`
}

// FullyCovered 所有需求人次是否都已填满
func (r *Report) FullyCovered() bool {
	return r.FilledSlots >= r.RequiredSlots
}

// Reporter 统计报告生成器
type Reporter struct {
	coverage *CoverageAnalyzer
	fairness *FairnessAnalyzer
	detailed bool
}

// NewReporter 创建报告生成器；detailed 为 true 时附带每日、每人明细
func NewReporter(detailed bool) *Reporter {
	return &Reporter{
		coverage: NewCoverageAnalyzer(),
		fairness: NewFairnessAnalyzer(),
		detailed: detailed,
	}
}

// Report 根据班次需求与分配结果生成报告。
// 分配的工时以班次定义为准，未知班次沿用分配自带的工时
func (r *Reporter) Report(shifts []model.ShiftRequirement, employees []model.EmployeeProfile, assignments []model.Assignment) *Report {
	withHours := fillHours(shifts, assignments)

	cov := r.coverage.Analyze(shifts, withHours)
	fair := r.fairness.Analyze(withHours, employees)

	rep := &Report{
		CoverageRate:       cov.CoverageRate,
		FairnessScore:      fair.FairnessScore,
		TotalShifts:        cov.TotalShifts,
		FullyCoveredShifts: cov.FullyCoveredShifts,
		RequiredSlots:      cov.RequiredSlots,
		FilledSlots:        cov.FilledSlots,
		TotalHours:         fair.TotalHours,
		WorkloadGini:       fair.WorkloadGini,
	}
	if r.detailed {
		rep.Coverage = cov
		rep.Fairness = fair
	}
	return rep
}

func fillHours(shifts []model.ShiftRequirement, assignments []model.Assignment) []model.Assignment {
	byID := make(map[string]*model.ShiftRequirement, len(shifts))
	for i := range shifts {
		byID[shifts[i].ID] = &shifts[i]
	}
	out := make([]model.Assignment, len(assignments))
	for i, a := range assignments {
		if sh, ok := byID[a.ShiftID]; ok {
			a.Date = sh.Date
			a.StartTime = sh.StartTime
			a.EndTime = sh.EndTime
			a.Hours = sh.Hours()
		}
		out[i] = a
	}
	return out
}
