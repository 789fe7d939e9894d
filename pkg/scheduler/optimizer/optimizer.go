package optimizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/logger"
	"github.com/paiban/shiftopt/pkg/model"
	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
	"github.com/paiban/shiftopt/pkg/scheduler/solver"
	"github.com/paiban/shiftopt/pkg/stats"
)

// Result 优化结果
type Result struct {
	Assignments     []model.Assignment   `json:"assignments"`
	TerminalState   TerminalState        `json:"terminal_state"`
	Statistics      *stats.Report        `json:"statistics"`
	Cost            constraint.Breakdown `json:"cost"`
	InitialCost     float64              `json:"initial_cost"`
	Iterations      int                  `json:"iterations"`
	AcceptedMoves   int                  `json:"accepted_moves"`
	ForcedAdds      int                  `json:"forced_adds"`
	UncoveredShifts []string             `json:"uncovered_shifts"`
	SkippedShifts   []string             `json:"skipped_shifts"`
	Seed            uint64               `json:"seed"`
	DurationMs      int64                `json:"duration_ms"`
}

// Option 优化器选项
type Option func(*Optimizer)

// WithRNG 注入随机源，优先于配置中的种子
func WithRNG(rng RNG) Option {
	return func(o *Optimizer) { o.rng = rng }
}

// WithLogger 设置日志
func WithLogger(l *logger.OptimizerLogger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// WithPrior 设置上一版排班，用于稳定性惩罚
func WithPrior(prior []model.Assignment) Option {
	return func(o *Optimizer) { o.prior = prior }
}

// WithClock 替换时钟，用于测试超时
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) { o.now = now }
}

// Optimizer 排班优化器。每次优化请求创建一个新实例，实例之间不共享可变状态
type Optimizer struct {
	cfg       Config
	employees []model.EmployeeProfile
	shifts    []model.ShiftRequirement
	prior     []model.Assignment
	rng       RNG
	logger    *logger.OptimizerLogger
	now       func() time.Time
}

// New 创建优化器，配置在 Optimize 时校验
func New(cfg Config, employees []model.EmployeeProfile, shifts []model.ShiftRequirement, opts ...Option) *Optimizer {
	o := &Optimizer{
		cfg:       cfg,
		employees: employees,
		shifts:    shifts,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.NewOptimizerLogger()
	}
	return o
}

// Optimize 运行一次完整优化：校验、贪心初始解、模拟退火。
// 只有输入或配置不合法时返回错误；超时与迭代耗尽都返回当前最优解
func (o *Optimizer) Optimize(ctx context.Context) (*Result, error) {
	startTime := o.now()

	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	employees, shifts, skipped, err := o.prepare()
	if err != nil {
		return nil, err
	}

	seed, rng := o.seedAndRNG()
	o.logger.StartOptimize(len(employees), len(shifts), o.cfg.MaxIterations, seed)

	ev := constraint.NewEvaluator(employees, shifts, constraint.Options{
		Weights:             o.cfg.Weights,
		StandardWeeklyHours: o.cfg.StandardWeeklyHours,
		Prior:               o.prior,
	})

	// 贪心构造很快，不响应取消，保证总能拿到一个可行解
	initial, err := solver.NewGreedySolver(o.logger).Solve(context.WithoutCancel(ctx), ev)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "初始解构造失败")
	}
	initialCost := initial.State.Cost()

	outcome := newAnnealer(o.cfg, ev, rng, o.logger, o.now).run(ctx, initial.State)
	best := outcome.best

	assignments := best.Assignments()
	result := &Result{
		Assignments:     assignments,
		TerminalState:   outcome.state,
		Statistics:      stats.NewReporter(false).Report(shifts, employees, assignments),
		Cost:            best.Breakdown(),
		InitialCost:     initialCost,
		Iterations:      outcome.iterations,
		AcceptedMoves:   outcome.accepted,
		ForcedAdds:      outcome.forcedAdds,
		UncoveredShifts: make([]string, 0),
		SkippedShifts:   skipped,
		Seed:            seed,
	}
	for _, s := range best.UnderCovered() {
		result.UncoveredShifts = append(result.UncoveredShifts, shifts[s].ID)
	}

	elapsed := o.now().Sub(startTime)
	result.DurationMs = elapsed.Milliseconds()
	o.logger.SearchFinished(string(outcome.state), outcome.iterations, elapsed, outcome.bestCost)

	return result, nil
}

// GetScheduleStats 计算任意一组分配相对本优化器输入的覆盖率与公平性
func (o *Optimizer) GetScheduleStats(assignments []model.Assignment) (*stats.Report, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	employees, shifts, _, err := o.prepare()
	if err != nil {
		return nil, err
	}
	return stats.NewReporter(false).Report(shifts, employees, assignments), nil
}

func (o *Optimizer) seedAndRNG() (uint64, RNG) {
	seed := TimeSeed()
	if o.cfg.Seed != nil {
		seed = *o.cfg.Seed
	}
	if o.rng != nil {
		return seed, o.rng
	}
	return seed, NewRNG(seed)
}

// prepare 复制并补全输入，剔除日期范围外的班次。
// 结构不完整的记录全部收集后一并返回
func (o *Optimizer) prepare() ([]model.EmployeeProfile, []model.ShiftRequirement, []string, error) {
	ve := &errors.ValidationErrors{}

	employees := make([]model.EmployeeProfile, 0, len(o.employees))
	seenEmp := make(map[string]struct{}, len(o.employees))
	for i, emp := range o.employees {
		field := fmt.Sprintf("employees[%d]", i)
		emp.ID = strings.TrimSpace(emp.ID)
		if emp.ID == "" {
			ve.Add(field+".id", "员工ID不能为空")
			continue
		}
		if _, dup := seenEmp[emp.ID]; dup {
			ve.Add(field+".id", fmt.Sprintf("员工ID重复: %s", emp.ID))
			continue
		}
		seenEmp[emp.ID] = struct{}{}
		if emp.MaxHoursPerWeek <= 0 {
			emp.MaxHoursPerWeek = model.DefaultMaxHoursPerWeek
		}
		// 零值掩码视为未设置，与规范化器的缺省一致
		if emp.AvailableDays == ([7]bool{}) {
			emp.AvailableDays = model.AllDays()
		}
		if emp.MinHoursPerWeek < 0 {
			ve.Add(field+".min_hours_per_week", "不能为负数")
			continue
		}
		employees = append(employees, emp)
	}

	shifts := make([]model.ShiftRequirement, 0, len(o.shifts))
	skipped := make([]string, 0)
	seenShift := make(map[string]struct{}, len(o.shifts))
	for i, sh := range o.shifts {
		field := fmt.Sprintf("shifts[%d]", i)
		sh.ID = strings.TrimSpace(sh.ID)
		if sh.ID == "" {
			ve.Add(field+".id", "班次ID不能为空")
			continue
		}
		if _, dup := seenShift[sh.ID]; dup {
			ve.Add(field+".id", fmt.Sprintf("班次ID重复: %s", sh.ID))
			continue
		}
		seenShift[sh.ID] = struct{}{}
		if sh.RequiredStaff < 0 {
			ve.Add(field+".required_staff", "不能为负数")
			continue
		}
		if sh.Date == "" {
			ve.Add(field+".date", "日期不能为空")
			continue
		}
		if err := sh.Resolve(); err != nil {
			ve.Add(field, err.Error())
			continue
		}
		if !o.cfg.inHorizon(sh.Date) {
			skipped = append(skipped, sh.ID)
			continue
		}
		shifts = append(shifts, sh)
	}

	if err := ve.Err(); err != nil {
		return nil, nil, nil, err
	}
	return employees, shifts, skipped, nil
}
