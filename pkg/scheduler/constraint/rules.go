package constraint

// Rule 硬约束，违反即不可行，不参与打分
type Rule interface {
	Name() string
	Allows(ev *Evaluator, st *State, e, s int) bool
}

type ruleFunc struct {
	name string
	fn   func(ev *Evaluator, st *State, e, s int) bool
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Allows(ev *Evaluator, st *State, e, s int) bool { return r.fn(ev, st, e, s) }

// 硬约束名称
const (
	RuleCapacity    = "capacity"
	RuleEligibility = "eligibility"
	RuleDuplicate   = "duplicate"
	RuleOverlap     = "overlap"
	RuleWeeklyHours = "weekly_hours"
	RuleOvertime    = "monthly_overtime"
)

// DefaultRules 按代价从低到高排列，便宜的检查先失败
func DefaultRules() []Rule {
	return []Rule{
		ruleFunc{RuleCapacity, allowsCapacity},
		ruleFunc{RuleEligibility, allowsEligibility},
		ruleFunc{RuleDuplicate, allowsDuplicate},
		ruleFunc{RuleWeeklyHours, allowsWeeklyHours},
		ruleFunc{RuleOverlap, allowsOverlap},
		ruleFunc{RuleOvertime, allowsOvertime},
	}
}

// 人数不超过 requiredStaff
func allowsCapacity(ev *Evaluator, st *State, _, s int) bool {
	return len(st.byShift[s]) < ev.shifts[s].RequiredStaff
}

// 技能、证书、出勤日与不可用日期
func allowsEligibility(ev *Evaluator, _ *State, e, s int) bool {
	return ev.static[s][e]
}

func allowsDuplicate(_ *Evaluator, st *State, e, s int) bool {
	return !st.Has(e, s)
}

// 同一员工的班次时间窗口不能重叠（含跨夜班）
func allowsOverlap(ev *Evaluator, st *State, e, s int) bool {
	w := ev.shifts[s].Window
	for _, other := range st.byEmployee[e] {
		if ev.shifts[other].Window.Overlaps(w) {
			return false
		}
	}
	return true
}

func allowsWeeklyHours(ev *Evaluator, st *State, e, s int) bool {
	week := ev.shiftWeek[s]
	return st.weekHours[e][week]+ev.shiftHours[s] <= ev.employees[e].MaxHoursPerWeek+hoursEpsilon
}

// 超出标准周工时的部分按月累计，不得超过 maxOvertimePerMonth
func allowsOvertime(ev *Evaluator, st *State, e, s int) bool {
	limit := ev.employees[e].Restrictions.MaxOvertimePerMonth
	if limit <= 0 {
		return true
	}
	week := ev.shiftWeek[s]
	month := ev.weekMonth[week]

	var overtime float64
	for _, w := range ev.empWeeks[e] {
		if ev.weekMonth[w] != month || w == week {
			continue
		}
		overtime += excess(st.weekHours[e][w], ev.standard)
	}
	overtime += excess(st.weekHours[e][week]+ev.shiftHours[s], ev.standard)
	return overtime <= limit+hoursEpsilon
}

func excess(hours, standard float64) float64 {
	if hours > standard {
		return hours - standard
	}
	return 0
}
