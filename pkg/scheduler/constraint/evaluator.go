// Package constraint 提供硬约束可行性判断与增量代价计算
package constraint

import (
	"sort"
	"time"

	"github.com/paiban/shiftopt/pkg/model"
)

// DefaultStandardWeeklyHours 计算加班的标准周工时
const DefaultStandardWeeklyHours = 40.0

const hoursEpsilon = 1e-9

// Options 评估器选项
type Options struct {
	Weights             Weights
	StandardWeeklyHours float64
	Prior               []model.Assignment // 上一版排班，用于稳定性惩罚
}

// Evaluator 一次优化的静态索引与约束集合，创建后只读
type Evaluator struct {
	employees []model.EmployeeProfile
	shifts    []model.ShiftRequirement
	weights   Weights
	standard  float64

	empIndex   map[string]int
	shiftIndex map[string]int

	static     [][]bool // static[s][e]：技能/证书/出勤日等与解无关的条件
	candidates [][]int  // 每个班次静态可行的员工，按员工ID排序
	inPool     []bool   // 至少有一个静态可行班次的员工参与公平性计算
	poolSize   int

	shiftHours []float64
	shiftWeek  []string
	shiftDay   []int // 距 1970-01-01 的天数
	weekMonth  map[string]string
	empWeeks   [][]string // 员工可能上班的周

	prior          map[int]struct{}
	preferredTotal int

	rules []Rule
}

// NewEvaluator 构建评估器
func NewEvaluator(employees []model.EmployeeProfile, shifts []model.ShiftRequirement, opts Options) *Evaluator {
	if opts.Weights.IsZero() {
		opts.Weights = DefaultWeights()
	}
	if opts.StandardWeeklyHours <= 0 {
		opts.StandardWeeklyHours = DefaultStandardWeeklyHours
	}

	ev := &Evaluator{
		employees:  employees,
		shifts:     shifts,
		weights:    opts.Weights,
		standard:   opts.StandardWeeklyHours,
		empIndex:   make(map[string]int, len(employees)),
		shiftIndex: make(map[string]int, len(shifts)),
		static:     make([][]bool, len(shifts)),
		candidates: make([][]int, len(shifts)),
		inPool:     make([]bool, len(employees)),
		shiftHours: make([]float64, len(shifts)),
		shiftWeek:  make([]string, len(shifts)),
		shiftDay:   make([]int, len(shifts)),
		weekMonth:  make(map[string]string),
		empWeeks:   make([][]string, len(employees)),
		prior:      make(map[int]struct{}),
		rules:      DefaultRules(),
	}

	for i := range employees {
		ev.empIndex[employees[i].ID] = i
	}

	byID := ev.sortedEmployeeIndices()
	empWeekSet := make([]map[string]struct{}, len(employees))

	for s := range shifts {
		sh := &shifts[s]
		ev.shiftIndex[sh.ID] = s
		ev.shiftHours[s] = sh.Hours()
		// 跨夜班次的全部工时计入开始日期所在的周
		ev.shiftWeek[s] = model.WeekKey(sh.Day)
		ev.shiftDay[s] = int(sh.Day.Unix() / 86400)
		ev.weekMonth[ev.shiftWeek[s]] = isoWeekMonth(sh.Day)

		ev.static[s] = make([]bool, len(employees))
		for _, e := range byID {
			if !ev.staticallyEligible(&employees[e], sh, ev.shiftHours[s]) {
				continue
			}
			ev.static[s][e] = true
			ev.candidates[s] = append(ev.candidates[s], e)
			ev.inPool[e] = true
			if empWeekSet[e] == nil {
				empWeekSet[e] = make(map[string]struct{})
			}
			empWeekSet[e][ev.shiftWeek[s]] = struct{}{}
		}

		for e := range employees {
			if employees[e].Prefers(sh.ID) {
				ev.preferredTotal++
			}
		}
	}

	for e, set := range empWeekSet {
		for w := range set {
			ev.empWeeks[e] = append(ev.empWeeks[e], w)
		}
		sort.Strings(ev.empWeeks[e])
		if ev.inPool[e] {
			ev.poolSize++
		}
	}

	for _, a := range opts.Prior {
		e, okE := ev.empIndex[a.EmployeeID]
		s, okS := ev.shiftIndex[a.ShiftID]
		if okE && okS {
			ev.prior[ev.pairKey(e, s)] = struct{}{}
		}
	}

	return ev
}

// staticallyEligible 与当前解无关的硬约束：技能等级、证书、出勤日、单班时长
func (ev *Evaluator) staticallyEligible(emp *model.EmployeeProfile, sh *model.ShiftRequirement, hours float64) bool {
	if sh.RequiredStaff <= 0 {
		return false
	}
	if !emp.HasSkillAtLeast(sh.AllowedSkills, sh.MinSkillLevel) {
		return false
	}
	if !emp.HasCertifications(sh.RequiredCertifications) {
		return false
	}
	if !emp.AvailableOn(sh.Day) {
		return false
	}
	return hours <= emp.MaxHoursPerWeek+hoursEpsilon
}

func (ev *Evaluator) sortedEmployeeIndices() []int {
	idx := make([]int, len(ev.employees))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ev.employees[idx[a]].ID < ev.employees[idx[b]].ID
	})
	return idx
}

// isoWeekMonth ISO 周归属于其周四所在的月份
func isoWeekMonth(day time.Time) string {
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return model.MonthKey(day.AddDate(0, 0, 4-wd))
}

func (ev *Evaluator) pairKey(e, s int) int {
	return s*len(ev.employees) + e
}

// Employees 员工列表
func (ev *Evaluator) Employees() []model.EmployeeProfile { return ev.employees }

// Shifts 班次列表
func (ev *Evaluator) Shifts() []model.ShiftRequirement { return ev.shifts }

// Weights 当前权重
func (ev *Evaluator) Weights() Weights { return ev.weights }

// EmployeeIndex 按ID查找员工下标
func (ev *Evaluator) EmployeeIndex(id string) (int, bool) {
	i, ok := ev.empIndex[id]
	return i, ok
}

// ShiftIndex 按ID查找班次下标
func (ev *Evaluator) ShiftIndex(id string) (int, bool) {
	i, ok := ev.shiftIndex[id]
	return i, ok
}

// Candidates 班次的静态可行员工（按ID有序）
func (ev *Evaluator) Candidates(s int) []int {
	return ev.candidates[s]
}

// ShiftHours 班次时长
func (ev *Evaluator) ShiftHours(s int) float64 {
	return ev.shiftHours[s]
}

// IsFeasible 判断在当前解上把员工 e 加到班次 s 是否满足全部硬约束
func (ev *Evaluator) IsFeasible(st *State, e, s int) bool {
	for _, r := range ev.rules {
		if !r.Allows(ev, st, e, s) {
			return false
		}
	}
	return true
}

// Explain 返回第一条不满足的硬约束名称，可行时返回空串
func (ev *Evaluator) Explain(st *State, e, s int) string {
	for _, r := range ev.rules {
		if !r.Allows(ev, st, e, s) {
			return r.Name()
		}
	}
	return ""
}

// NewState 创建空解
func (ev *Evaluator) NewState() *State {
	return newState(ev)
}
