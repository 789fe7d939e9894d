package stats

import (
	"math"
	"sort"

	"github.com/paiban/shiftopt/pkg/model"
)

// FairnessMetrics 公平性指标，只统计至少有一个分配的员工
type FairnessMetrics struct {
	FairnessScore       float64 `json:"fairness_score"`         // 1 - 变异系数，限制在 [0,1]
	WorkloadCV          float64 `json:"workload_cv"`            // 工时变异系数
	WorkloadGini        float64 `json:"workload_gini"`          // 工时基尼系数 (0=完全公平, 1=完全不公平)
	WorkloadVariance    float64 `json:"workload_variance"`      // 工时方差
	WorkloadStdDev      float64 `json:"workload_std_dev"`       // 工时标准差
	AvgHoursPerEmployee float64 `json:"avg_hours_per_employee"` // 人均工时
	MaxHours            float64 `json:"max_hours"`
	MinHours            float64 `json:"min_hours"`
	HoursRange          float64 `json:"hours_range"`
	TotalHours          float64 `json:"total_hours"`

	NightShiftGini   float64 `json:"night_shift_gini"`   // 夜班分配基尼系数
	WeekendShiftGini float64 `json:"weekend_shift_gini"` // 周末班分配基尼系数

	EmployeeStats []EmployeeStat `json:"employee_stats"`
}

// EmployeeStat 员工统计
type EmployeeStat struct {
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name,omitempty"`
	TotalHours    float64 `json:"total_hours"`
	ShiftCount    int     `json:"shift_count"`
	NightShifts   int     `json:"night_shifts"`
	WeekendShifts int     `json:"weekend_shifts"`
	Deviation     float64 `json:"deviation"` // 与平均值的偏差百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct {
	nightShiftStart int // 夜班开始（分钟）
	nightShiftEnd   int // 夜班结束（分钟）
}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{
		nightShiftStart: 22 * 60,
		nightShiftEnd:   6 * 60,
	}
}

// Analyze 分析排班公平性；assignments 的 Hours 须已填好
func (f *FairnessAnalyzer) Analyze(assignments []model.Assignment, employees []model.EmployeeProfile) *FairnessMetrics {
	if len(assignments) == 0 {
		return &FairnessMetrics{
			FairnessScore: 1,
			EmployeeStats: make([]EmployeeStat, 0),
		}
	}

	names := make(map[string]string, len(employees))
	for _, e := range employees {
		names[e.ID] = e.Name
	}

	employeeStats := f.calculateEmployeeStats(assignments, names)

	hours := make([]float64, len(employeeStats))
	nightShifts := make([]float64, len(employeeStats))
	weekendShifts := make([]float64, len(employeeStats))
	for i, stat := range employeeStats {
		hours[i] = stat.TotalHours
		nightShifts[i] = float64(stat.NightShifts)
		weekendShifts[i] = float64(stat.WeekendShifts)
	}

	avg := mean(hours)
	variance := varianceOf(hours, avg)
	stdDev := math.Sqrt(variance)
	maxH, minH := valueRange(hours)

	for i := range employeeStats {
		if avg > 0 {
			employeeStats[i].Deviation = (employeeStats[i].TotalHours - avg) / avg * 100
		}
	}

	cv := 0.0
	if avg > 0 {
		cv = stdDev / avg
	}

	return &FairnessMetrics{
		FairnessScore:       clamp(1-cv, 0, 1),
		WorkloadCV:          cv,
		WorkloadGini:        gini(hours),
		WorkloadVariance:    variance,
		WorkloadStdDev:      stdDev,
		AvgHoursPerEmployee: avg,
		MaxHours:            maxH,
		MinHours:            minH,
		HoursRange:          maxH - minH,
		TotalHours:          sum(hours),
		NightShiftGini:      gini(nightShifts),
		WeekendShiftGini:    gini(weekendShifts),
		EmployeeStats:       employeeStats,
	}
}

// calculateEmployeeStats 计算员工统计数据，按工时降序、员工ID升序
func (f *FairnessAnalyzer) calculateEmployeeStats(assignments []model.Assignment, names map[string]string) []EmployeeStat {
	statMap := make(map[string]*EmployeeStat)
	seen := make(map[string]struct{}, len(assignments))

	for _, a := range assignments {
		if _, dup := seen[a.Key()]; dup {
			continue
		}
		seen[a.Key()] = struct{}{}

		stat, ok := statMap[a.EmployeeID]
		if !ok {
			stat = &EmployeeStat{EmployeeID: a.EmployeeID, EmployeeName: names[a.EmployeeID]}
			statMap[a.EmployeeID] = stat
		}
		stat.TotalHours += a.Hours
		stat.ShiftCount++
		if f.isNightShift(a.StartTime, a.EndTime) {
			stat.NightShifts++
		}
		if isWeekend(a.Date) {
			stat.WeekendShifts++
		}
	}

	result := make([]EmployeeStat, 0, len(statMap))
	for _, stat := range statMap {
		result = append(result, *stat)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalHours != result[j].TotalHours {
			return result[i].TotalHours > result[j].TotalHours
		}
		return result[i].EmployeeID < result[j].EmployeeID
	})
	return result
}

// isNightShift 开始于 22 点后、6 点前，或跨夜
func (f *FairnessAnalyzer) isNightShift(start, end string) bool {
	s, err := model.ParseClock(start)
	if err != nil {
		return false
	}
	if s >= f.nightShiftStart || s < f.nightShiftEnd {
		return true
	}
	e, err := model.ParseClock(end)
	return err == nil && e < s
}

func isWeekend(date string) bool {
	d, err := model.ParseDate(date)
	if err != nil {
		return false
	}
	wd := d.Weekday()
	return wd == 0 || wd == 6
}

// CoefficientOfVariation 总体标准差除以均值，均值为 0 时返回 0
func CoefficientOfVariation(values []float64) float64 {
	avg := mean(values)
	if avg <= 0 {
		return 0
	}
	return math.Sqrt(varianceOf(values, avg)) / avg
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

func varianceOf(values []float64, avg float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - avg
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

func valueRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// gini 基尼系数
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	total := sum(sorted)
	if total == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}
	return clamp(g/(float64(n)*total), 0, 1)
}
