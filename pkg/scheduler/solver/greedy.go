// Package solver 提供初始解构造
package solver

import (
	"context"
	"sort"
	"time"

	"github.com/paiban/shiftopt/pkg/logger"
	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
)

// Solver 求解器接口
type Solver interface {
	// Solve 在空解上构造一个满足全部硬约束的方案
	Solve(ctx context.Context, ev *constraint.Evaluator) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Result 求解结果
type Result struct {
	State     *constraint.State
	Uncovered []string // 未满员班次ID，按处理顺序
	Duration  time.Duration
}

// GreedySolver 贪心求解器：高优先级、早日期的班次先排，工时少的员工先上
type GreedySolver struct {
	logger *logger.OptimizerLogger
}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver(log *logger.OptimizerLogger) *GreedySolver {
	if log == nil {
		log = logger.NopOptimizerLogger()
	}
	return &GreedySolver{logger: log}
}

// Name 返回求解器名称
func (g *GreedySolver) Name() string {
	return "GreedySolver"
}

// Solve 使用贪心算法生成初始解
func (g *GreedySolver) Solve(ctx context.Context, ev *constraint.Evaluator) (*Result, error) {
	startTime := time.Now()
	st := ev.NewState()
	shifts := ev.Shifts()

	result := &Result{State: st}

	for _, s := range shiftOrder(ev) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		required := shifts[s].RequiredStaff
		for _, e := range g.candidates(ev, st, s) {
			if st.AssignedCount(s) >= required {
				break
			}
			if ev.IsFeasible(st, e, s) {
				st.Assign(e, s)
			}
		}

		if st.AssignedCount(s) < required {
			result.Uncovered = append(result.Uncovered, shifts[s].ID)
		}
	}

	result.Duration = time.Since(startTime)
	g.logger.InitialSolution(countAssigned(st, len(shifts)), len(result.Uncovered), st.Cost())
	return result, nil
}

// shiftOrder 按优先级降序、日期升序排列班次，相同时保持输入顺序
func shiftOrder(ev *constraint.Evaluator) []int {
	shifts := ev.Shifts()
	order := make([]int, len(shifts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := &shifts[order[i]], &shifts[order[j]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Day.Before(b.Day)
	})
	return order
}

// candidates 静态可行员工按当前工时升序，工时相同按员工ID
func (g *GreedySolver) candidates(ev *constraint.Evaluator, st *constraint.State, s int) []int {
	base := ev.Candidates(s)
	out := make([]int, len(base))
	copy(out, base)
	// base 已按ID有序，稳定排序保留ID次序
	sort.SliceStable(out, func(i, j int) bool {
		return st.EmployeeHours(out[i]) < st.EmployeeHours(out[j])
	})
	return out
}

func countAssigned(st *constraint.State, nShifts int) int {
	n := 0
	for s := 0; s < nShifts; s++ {
		n += st.AssignedCount(s)
	}
	return n
}
