package optimizer

import (
	"context"
	"math"
	"time"

	"github.com/paiban/shiftopt/pkg/logger"
	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
)

// TerminalState 搜索结束状态
type TerminalState string

const (
	StateExhausted TerminalState = "exhausted" // 达到最大迭代次数
	StateTimedOut  TerminalState = "timed_out" // 超过时间预算或被取消
	StateConverged TerminalState = "converged" // 温度过低、长期无改进或无可行移动
)

// Partial 是否为预算耗尽的部分结果
func (s TerminalState) Partial() bool {
	return s != StateConverged
}

// improvementEpsilon 更优解需至少改进的代价
const improvementEpsilon = 1e-9

// searchOutcome 一次退火的结果
type searchOutcome struct {
	best       *constraint.State
	bestCost   float64
	state      TerminalState
	iterations int
	accepted   int
	forcedAdds int
}

// annealer 模拟退火搜索，一次优化独占
type annealer struct {
	cfg       Config
	ev        *constraint.Evaluator
	rng       RNG
	neighbors *NeighborhoodGenerator
	logger    *logger.OptimizerLogger
	now       func() time.Time
}

func newAnnealer(cfg Config, ev *constraint.Evaluator, rng RNG, log *logger.OptimizerLogger, now func() time.Time) *annealer {
	return &annealer{
		cfg:       cfg,
		ev:        ev,
		rng:       rng,
		neighbors: NewNeighborhoodGenerator(ev, rng, cfg.RemoveFloor, cfg.MaxMoveAttempts),
		logger:    log,
		now:       now,
	}
}

// run 从初始解出发搜索，current 会被原地修改
func (a *annealer) run(ctx context.Context, current *constraint.State) searchOutcome {
	start := a.now()
	deadline := a.cfg.Timeout()

	out := searchOutcome{
		best:     current.Clone(),
		bestCost: current.Cost(),
	}
	temperature := a.cfg.Temperature
	streak := 0

	for {
		// 停止条件按顺序检查，先满足者生效
		if out.iterations >= a.cfg.MaxIterations {
			out.state = StateExhausted
			break
		}
		if ctx.Err() != nil || (deadline > 0 && a.now().Sub(start) >= deadline) {
			out.state = StateTimedOut
			break
		}
		if temperature < a.cfg.Epsilon {
			out.state = StateConverged
			break
		}
		if a.cfg.StagnationLimit > 0 && streak > a.cfg.StagnationLimit {
			out.state = StateConverged
			break
		}

		before := current.Cost()
		move, ok := a.neighbors.Propose(current)
		forced := false
		if !ok {
			move, ok = a.neighbors.ForcedAdd(current)
			if !ok {
				a.logger.ForcedAddSkipped(out.iterations)
				out.state = StateConverged
				break
			}
			forced = true
			out.forcedAdds++
		}

		delta := current.Cost() - before
		if forced || a.accept(delta, temperature) {
			out.accepted++
			if cost := current.Cost(); cost < out.bestCost-improvementEpsilon {
				out.best = current.Clone()
				out.bestCost = cost
				streak = 0
				a.logger.BestImproved(out.iterations, cost)
			} else {
				streak++
			}
		} else {
			move.Undo(current)
			streak++
		}

		temperature *= a.cfg.CoolingRate
		out.iterations++
	}

	return out
}

// accept Metropolis 准则
func (a *annealer) accept(delta, temperature float64) bool {
	if delta <= 0 {
		return true
	}
	return a.rng.Float64() < boltzmannProbability(delta, temperature)
}

// boltzmannProbability 计算模拟退火的接受概率
// delta: 能量差 (new - old)
// temperature: 当前温度
func boltzmannProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1.0
	}
	if temperature <= 0 {
		return 0.0
	}
	return math.Exp(-delta / temperature)
}
