package constraint

import (
	"math"
	"sort"

	"github.com/paiban/shiftopt/pkg/model"
)

// State 解状态：班次->员工（正向）与员工->班次（反向）两份视图始终一致，
// 各代价分项在每次 Assign/Unassign 时增量维护
type State struct {
	ev *Evaluator

	byShift    [][]int
	byEmployee [][]int
	hours      []float64
	weekHours  []map[string]float64

	uncovered      float64 // 按优先级加权的缺员数
	uncoveredSlots int
	sumH, sumH2    float64 // 公平性池内员工工时和与平方和
	avoidHits      int
	unmetPreferred int
	stableDiff     int

	shortfall    []float64
	shortfallSum float64
	consec       []int
	consecSum    int
	rest         []int
	restSum      int
}

func newState(ev *Evaluator) *State {
	nE, nS := len(ev.employees), len(ev.shifts)
	st := &State{
		ev:             ev,
		byShift:        make([][]int, nS),
		byEmployee:     make([][]int, nE),
		hours:          make([]float64, nE),
		weekHours:      make([]map[string]float64, nE),
		unmetPreferred: ev.preferredTotal,
		stableDiff:     len(ev.prior),
		shortfall:      make([]float64, nE),
		consec:         make([]int, nE),
		rest:           make([]int, nE),
	}
	for e := range st.weekHours {
		st.weekHours[e] = make(map[string]float64)
	}
	for s := range ev.shifts {
		req := ev.shifts[s].RequiredStaff
		if req > 0 {
			st.uncovered += float64(req) * ev.shifts[s].Priority.CoverageFactor()
			st.uncoveredSlots += req
		}
	}
	for e := range ev.employees {
		st.refreshLocal(e)
	}
	return st
}

// Has 员工是否已在班次上
func (st *State) Has(e, s int) bool {
	for _, x := range st.byShift[s] {
		if x == e {
			return true
		}
	}
	return false
}

// AssignedCount 班次已分配人数
func (st *State) AssignedCount(s int) int {
	return len(st.byShift[s])
}

// ShiftEmployees 班次上的员工（只读）
func (st *State) ShiftEmployees(s int) []int {
	return st.byShift[s]
}

// EmployeeShifts 员工的班次（只读）
func (st *State) EmployeeShifts(e int) []int {
	return st.byEmployee[e]
}

// EmployeeHours 员工总工时
func (st *State) EmployeeHours(e int) float64 {
	return st.hours[e]
}

// UncoveredSlots 缺员总数
func (st *State) UncoveredSlots() int {
	return st.uncoveredSlots
}

// UnderCovered 未满员班次下标，按输入顺序
func (st *State) UnderCovered() []int {
	var out []int
	for s := range st.byShift {
		if len(st.byShift[s]) < st.ev.shifts[s].RequiredStaff {
			out = append(out, s)
		}
	}
	return out
}

// Assign 分配员工到班次；调用方负责先做可行性检查
func (st *State) Assign(e, s int) {
	ev := st.ev
	sh := &ev.shifts[s]
	if len(st.byShift[s]) < sh.RequiredStaff {
		st.uncovered -= sh.Priority.CoverageFactor()
		st.uncoveredSlots--
	}
	st.byShift[s] = append(st.byShift[s], e)
	st.byEmployee[e] = append(st.byEmployee[e], s)

	st.addHours(e, s, ev.shiftHours[s])
	st.touchPreference(e, s, 1)
	st.touchPrior(e, s, 1)
	st.refreshLocal(e)
}

// Unassign 取消分配；员工不在班次上时不做任何事
func (st *State) Unassign(e, s int) bool {
	if !removeInt(&st.byShift[s], e) {
		return false
	}
	removeInt(&st.byEmployee[e], s)

	ev := st.ev
	sh := &ev.shifts[s]
	if len(st.byShift[s]) < sh.RequiredStaff {
		st.uncovered += sh.Priority.CoverageFactor()
		st.uncoveredSlots++
	}

	st.addHours(e, s, -ev.shiftHours[s])
	st.touchPreference(e, s, -1)
	st.touchPrior(e, s, -1)
	st.refreshLocal(e)
	return true
}

func (st *State) addHours(e, s int, delta float64) {
	old := st.hours[e]
	st.hours[e] = old + delta
	if st.ev.inPool[e] {
		st.sumH += delta
		st.sumH2 += st.hours[e]*st.hours[e] - old*old
	}
	week := st.ev.shiftWeek[s]
	st.weekHours[e][week] += delta
	if math.Abs(st.weekHours[e][week]) < hoursEpsilon {
		delete(st.weekHours[e], week)
	}
}

// sign: +1 分配, -1 取消
func (st *State) touchPreference(e, s, sign int) {
	emp := &st.ev.employees[e]
	id := st.ev.shifts[s].ID
	if emp.Prefers(id) {
		st.unmetPreferred -= sign
	}
	if emp.Avoids(id) {
		st.avoidHits += sign
	}
}

func (st *State) touchPrior(e, s, sign int) {
	if _, ok := st.ev.prior[st.ev.pairKey(e, s)]; ok {
		st.stableDiff -= sign
	} else {
		st.stableDiff += sign
	}
}

// refreshLocal 重算单个员工的本地软约束：周最低工时缺口、连续上班、休息间隔
func (st *State) refreshLocal(e int) {
	ev := st.ev
	emp := &ev.employees[e]

	var shortfall float64
	if emp.MinHoursPerWeek > 0 {
		for _, w := range ev.empWeeks[e] {
			if h := st.weekHours[e][w]; h < emp.MinHoursPerWeek {
				shortfall += emp.MinHoursPerWeek - h
			}
		}
	}

	consec, rest := 0, 0
	if len(st.byEmployee[e]) > 0 {
		days := make([]int, 0, len(st.byEmployee[e]))
		for _, s := range st.byEmployee[e] {
			days = append(days, ev.shiftDay[s])
		}
		sort.Ints(days)
		days = uniqueInts(days)

		maxRun := emp.Preferences.MaxConsecutiveDays
		minGap := emp.Preferences.MinDaysBetweenShifts
		run := 1
		for i := 1; i <= len(days); i++ {
			if i < len(days) && days[i] == days[i-1]+1 {
				run++
			} else {
				if maxRun > 0 && run > maxRun {
					consec += run - maxRun
				}
				run = 1
			}
			if i < len(days) && minGap > 0 && days[i]-days[i-1]-1 < minGap {
				rest++
			}
		}
	}

	st.shortfallSum += shortfall - st.shortfall[e]
	st.shortfall[e] = shortfall
	st.consecSum += consec - st.consec[e]
	st.consec[e] = consec
	st.restSum += rest - st.rest[e]
	st.rest[e] = rest
}

// fairnessCV 公平性池内工时的变异系数
func (st *State) fairnessCV() float64 {
	n := float64(st.ev.poolSize)
	if n == 0 {
		return 0
	}
	mean := st.sumH / n
	if mean <= hoursEpsilon {
		return 0
	}
	variance := st.sumH2/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance) / mean
}

// Breakdown 加权代价分项
func (st *State) Breakdown() Breakdown {
	w := st.ev.weights
	b := Breakdown{
		Coverage:    w.Coverage * st.uncovered,
		Fairness:    w.Fairness * st.fairnessCV(),
		Preference:  w.Preference * float64(st.avoidHits+st.unmetPreferred),
		Stability:   w.Stability * float64(st.stableDiff),
		MinHours:    w.MinHours * st.shortfallSum,
		Consecutive: w.Consecutive * float64(st.consecSum),
		Rest:        w.Rest * float64(st.restSum),
	}
	b.Total = b.Coverage + b.Fairness + b.Preference + b.Stability + b.MinHours + b.Consecutive + b.Rest
	return b
}

// Cost 总代价，O(1)
func (st *State) Cost() float64 {
	return st.Breakdown().Total
}

// Clone 深拷贝
func (st *State) Clone() *State {
	c := *st
	c.byShift = cloneNested(st.byShift)
	c.byEmployee = cloneNested(st.byEmployee)
	c.hours = append([]float64(nil), st.hours...)
	c.weekHours = make([]map[string]float64, len(st.weekHours))
	for e, m := range st.weekHours {
		cm := make(map[string]float64, len(m))
		for k, v := range m {
			cm[k] = v
		}
		c.weekHours[e] = cm
	}
	c.shortfall = append([]float64(nil), st.shortfall...)
	c.consec = append([]int(nil), st.consec...)
	c.rest = append([]int(nil), st.rest...)
	return &c
}

// Rebuild 从空解按当前分配重新累加，用于校验增量结果
func (st *State) Rebuild() *State {
	fresh := newState(st.ev)
	for s, emps := range st.byShift {
		for _, e := range emps {
			fresh.Assign(e, s)
		}
	}
	return fresh
}

// Consistent 校验正向与反向视图一致
func (st *State) Consistent() bool {
	count := 0
	for s, emps := range st.byShift {
		for _, e := range emps {
			if !containsInt(st.byEmployee[e], s) {
				return false
			}
			count++
		}
	}
	for _, shifts := range st.byEmployee {
		count -= len(shifts)
	}
	return count == 0
}

// Assignments 导出分配，按班次输入顺序、再按员工ID排序
func (st *State) Assignments() []model.Assignment {
	ev := st.ev
	out := make([]model.Assignment, 0)
	for s, emps := range st.byShift {
		ids := make([]string, 0, len(emps))
		for _, e := range emps {
			ids = append(ids, ev.employees[e].ID)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, model.NewAssignment(id, &ev.shifts[s]))
		}
	}
	return out
}

func removeInt(xs *[]int, v int) bool {
	s := *xs
	for i, x := range s {
		if x == v {
			*xs = append(s[:i], s[i+1:]...)
			return true
		}
	}
	return false
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func uniqueInts(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func cloneNested(src [][]int) [][]int {
	dst := make([][]int, len(src))
	for i, xs := range src {
		if len(xs) > 0 {
			dst[i] = append([]int(nil), xs...)
		}
	}
	return dst
}
