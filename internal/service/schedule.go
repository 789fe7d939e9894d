// Package service 编排排班优化：规范化、优化、校验、持久化与事件发布
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paiban/shiftopt/internal/cache"
	"github.com/paiban/shiftopt/internal/config"
	"github.com/paiban/shiftopt/internal/events"
	"github.com/paiban/shiftopt/internal/metrics"
	"github.com/paiban/shiftopt/internal/repository"
	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/logger"
	"github.com/paiban/shiftopt/pkg/model"
	"github.com/paiban/shiftopt/pkg/normalizer"
	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
	"github.com/paiban/shiftopt/pkg/scheduler/optimizer"
	"github.com/paiban/shiftopt/pkg/stats"
	"github.com/paiban/shiftopt/pkg/validator"
)

// Options 单次请求对默认引擎参数的覆盖
type Options struct {
	StartDate     string              `json:"start_date,omitempty"`
	EndDate       string              `json:"end_date,omitempty"`
	MaxIterations *int                `json:"max_iterations,omitempty"`
	Temperature   *float64            `json:"temperature,omitempty"`
	CoolingRate   *float64            `json:"cooling_rate,omitempty"`
	TimeoutMs     *int64              `json:"timeout_ms,omitempty"`
	Seed          *uint64             `json:"seed,omitempty"`
	Runs          int                 `json:"runs,omitempty"` // 多起点次数，0 使用默认
	Weights       *constraint.Weights `json:"weights,omitempty"`
}

// OptimizeRequest 内联数据的优化请求
type OptimizeRequest struct {
	Employees []normalizer.RawEmployee `json:"employees"`
	Shifts    []normalizer.RawShift    `json:"shifts"`
	Prior     []model.Assignment       `json:"prior_assignments,omitempty"`
	Options   *Options                 `json:"options,omitempty"`
}

// CheckRequest 对已有排班做校验或统计
type CheckRequest struct {
	Employees   []normalizer.RawEmployee `json:"employees"`
	Shifts      []normalizer.RawShift    `json:"shifts"`
	Assignments []model.Assignment       `json:"assignments"`
}

// Deps 服务依赖，数据库相关依赖为空时 Generate 不可用
type Deps struct {
	Roster      repository.RosterRepository
	Assignments repository.AssignmentRepository
	Cache       cache.ResultCache
	Publisher   events.Publisher
	Metrics     *metrics.Metrics
	CachePrefix string
}

// ScheduleService 排班服务。搜索在固定数量的工作协程上执行，请求协程只等待结果
type ScheduleService struct {
	cfg      config.OptimizerConfig
	deps     Deps
	norm     *normalizer.Normalizer
	detector *validator.ConflictDetector

	jobs      chan job
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	now       func() time.Time
}

type job struct {
	ctx  context.Context
	run  func(ctx context.Context) (*optimizer.Result, error)
	done chan jobResult
}

type jobResult struct {
	result *optimizer.Result
	err    error
}

// NewScheduleService 创建服务并启动工作协程
func NewScheduleService(cfg config.OptimizerConfig, deps Deps) (*ScheduleService, error) {
	norm, err := normalizer.Default()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "初始化规范化器失败")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers
	}
	if cfg.PortfolioRuns <= 0 {
		cfg.PortfolioRuns = 1
	}
	if cfg.MaxPortfolioRuns < cfg.PortfolioRuns {
		cfg.MaxPortfolioRuns = cfg.PortfolioRuns
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	s := &ScheduleService{
		cfg:  cfg,
		deps: deps,
		norm: norm,
		detector: validator.NewConflictDetector(&validator.DetectorConfig{
			StandardWeeklyHours: cfg.Engine.StandardWeeklyHours,
			CheckSoft:           true,
		}),
		jobs: make(chan job, cfg.QueueSize),
		quit: make(chan struct{}),
		now:  time.Now,
	}
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s, nil
}

// Close 停止工作协程，排队中的请求返回服务不可用
func (s *ScheduleService) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.wg.Wait()
	})
}

func (s *ScheduleService) worker() {
	defer s.wg.Done()
	for {
		select {
		case j := <-s.jobs:
			done := s.deps.Metrics.JobStarted()
			res, err := j.run(j.ctx)
			done()
			j.done <- jobResult{result: res, err: err}
		case <-s.quit:
			return
		}
	}
}

// submit 把搜索交给工作协程。运行中的搜索通过 ctx 感知取消并返回当前最优解
func (s *ScheduleService) submit(ctx context.Context, run func(ctx context.Context) (*optimizer.Result, error)) (*optimizer.Result, error) {
	j := job{ctx: ctx, run: run, done: make(chan jobResult, 1)}

	select {
	case s.jobs <- j:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.CodeTimeout, "等待优化队列超时")
	case <-s.quit:
		return nil, errors.New(errors.CodeUnavailable, "排班服务已关闭")
	}

	select {
	case r := <-j.done:
		return r.result, r.err
	case <-s.quit:
		return nil, errors.New(errors.CodeUnavailable, "排班服务已关闭")
	}
}

// Optimize 对内联数据执行优化，结果经独立校验后返回
func (s *ScheduleService) Optimize(ctx context.Context, req *OptimizeRequest) (*optimizer.Result, error) {
	runs, err := s.runs(req.Options)
	if err != nil {
		return nil, err
	}
	employees, shifts, err := s.norm.Normalize(req.Employees, req.Shifts)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, s.engineConfig(req.Options), runs, employees, shifts, req.Prior)
}

// Generate 加载排班表数据，优化后整体替换已保存的分配并发布事件
func (s *ScheduleService) Generate(ctx context.Context, scheduleID string, opts *Options) (*optimizer.Result, error) {
	if s.deps.Roster == nil || s.deps.Assignments == nil {
		return nil, errors.New(errors.CodeUnavailable, "未配置数据库，无法按排班表生成")
	}
	runs, err := s.runs(opts)
	if err != nil {
		return nil, err
	}
	log := logger.WithContext(ctx)

	sch, err := s.deps.Roster.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	rawEmployees, rawShifts, err := s.deps.Roster.LoadRoster(ctx, scheduleID, sch.Department, sch.StartDate, sch.EndDate)
	if err != nil {
		return nil, err
	}
	prior, err := s.deps.Roster.LoadPriorAssignments(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	employees, shifts, err := s.norm.Normalize(rawEmployees, rawShifts)
	if err != nil {
		return nil, err
	}

	// 班次已按排班表日期范围加载
	res, err := s.run(ctx, s.engineConfig(opts), runs, employees, shifts, prior)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Assignments.ReplaceAssignments(ctx, scheduleID, res.Assignments, res.Statistics, string(res.TerminalState)); err != nil {
		return nil, err
	}

	evt := events.ScheduleGenerated{
		ScheduleID:    scheduleID,
		TerminalState: string(res.TerminalState),
		Assignments:   res.Assignments,
		GeneratedAt:   s.now().UTC(),
	}
	if res.Statistics != nil {
		evt.CoverageRate = res.Statistics.CoverageRate
		evt.FairnessScore = res.Statistics.FairnessScore
	}
	// 结果已提交，事件失败只记录
	pubErr := s.deps.Publisher.PublishScheduleGenerated(ctx, evt)
	s.deps.Metrics.RecordEvent(pubErr)
	if pubErr != nil {
		log.Error().Err(pubErr).Str("schedule_id", scheduleID).Msg("发布排班事件失败")
	}

	log.Info().
		Str("schedule_id", scheduleID).
		Int("assignments", len(res.Assignments)).
		Str("terminal_state", string(res.TerminalState)).
		Msg("排班表已生成")
	return res, nil
}

// Validate 独立校验一组分配，返回全部冲突（含警告）
func (s *ScheduleService) Validate(_ context.Context, req *CheckRequest) ([]validator.Conflict, error) {
	employees, shifts, err := s.norm.Normalize(req.Employees, req.Shifts)
	if err != nil {
		return nil, err
	}
	conflicts := s.detector.DetectAll(req.Assignments, employees, shifts)
	if conflicts == nil {
		conflicts = []validator.Conflict{}
	}
	return conflicts, nil
}

// Stats 计算一组分配的覆盖率与公平性
func (s *ScheduleService) Stats(_ context.Context, req *CheckRequest) (*stats.Report, error) {
	employees, shifts, err := s.norm.Normalize(req.Employees, req.Shifts)
	if err != nil {
		return nil, err
	}
	return optimizer.New(s.cfg.Engine, employees, shifts, optimizer.WithLogger(logger.NopOptimizerLogger())).
		GetScheduleStats(req.Assignments)
}

// run 校验配置、查缓存、在工作协程上搜索并做硬约束兜底校验
func (s *ScheduleService) run(ctx context.Context, cfg optimizer.Config, runs int, employees []model.EmployeeProfile, shifts []model.ShiftRequirement, prior []model.Assignment) (*optimizer.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.WithContext(ctx)

	key, cacheable := "", false
	if s.deps.Cache != nil {
		key, cacheable = cache.Key(s.deps.CachePrefix, cache.Request{
			Config: cfg, Employees: employees, Shifts: shifts, Prior: prior, Runs: runs,
		})
	}
	if cacheable {
		cached, hit, err := s.deps.Cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("读取结果缓存失败")
		}
		s.deps.Metrics.RecordCache(hit)
		if hit {
			// 缓存内容不可信，与新结果走同一道硬约束校验
			if err := s.detector.Validate(cached.Assignments, employees, shifts); err == nil {
				return cached, nil
			}
			log.Warn().Str("key", key).Msg("缓存结果未通过硬约束校验，重新优化")
		}
	}

	optLog := logger.NewOptimizerLoggerFrom(*log)
	res, err := s.submit(ctx, func(ctx context.Context) (*optimizer.Result, error) {
		if runs > 1 {
			return optimizer.NewPortfolio(runs, s.portfolioWorkers(runs), optLog).Optimize(ctx, cfg, employees, shifts, prior)
		}
		return optimizer.New(cfg, employees, shifts, optimizer.WithPrior(prior), optimizer.WithLogger(optLog)).Optimize(ctx)
	})
	if err != nil {
		return nil, err
	}

	if err := s.detector.Validate(res.Assignments, employees, shifts); err != nil {
		log.Error().Err(err).Msg("优化结果未通过硬约束校验")
		return nil, err
	}

	var coverage, fairness float64
	if res.Statistics != nil {
		coverage, fairness = res.Statistics.CoverageRate, res.Statistics.FairnessScore
	}
	s.deps.Metrics.RecordOptimization(string(res.TerminalState), time.Duration(res.DurationMs)*time.Millisecond,
		res.Iterations, coverage, fairness)

	if cacheable {
		if err := s.deps.Cache.Set(ctx, key, res); err != nil {
			log.Warn().Err(err).Msg("写入结果缓存失败")
		}
	}
	return res, nil
}

// engineConfig 在默认配置上叠加请求参数
func (s *ScheduleService) engineConfig(opts *Options) optimizer.Config {
	cfg := s.cfg.Engine
	if opts == nil {
		return cfg
	}
	if opts.StartDate != "" {
		cfg.StartDate = opts.StartDate
	}
	if opts.EndDate != "" {
		cfg.EndDate = opts.EndDate
	}
	if opts.MaxIterations != nil {
		cfg.MaxIterations = *opts.MaxIterations
	}
	if opts.Temperature != nil {
		cfg.Temperature = *opts.Temperature
	}
	if opts.CoolingRate != nil {
		cfg.CoolingRate = *opts.CoolingRate
	}
	if opts.TimeoutMs != nil {
		cfg.TimeoutMs = *opts.TimeoutMs
	}
	if opts.Seed != nil {
		cfg = cfg.WithSeed(*opts.Seed)
	}
	if opts.Weights != nil {
		cfg.Weights = *opts.Weights
	}
	return cfg
}

// runs 请求的多起点次数，0 使用默认值，超出上限的请求被拒绝
func (s *ScheduleService) runs(opts *Options) (int, error) {
	if opts == nil || opts.Runs == 0 {
		return s.cfg.PortfolioRuns, nil
	}
	if opts.Runs < 0 || opts.Runs > s.cfg.MaxPortfolioRuns {
		ve := &errors.ValidationErrors{}
		ve.Add("options.runs", fmt.Sprintf("必须在 [1,%d] 区间内", s.cfg.MaxPortfolioRuns))
		return 0, ve
	}
	return opts.Runs, nil
}

// portfolioWorkers 一个任务内并行的退火数不超过服务的工作协程数
func (s *ScheduleService) portfolioWorkers(runs int) int {
	if runs < s.cfg.Workers {
		return runs
	}
	return s.cfg.Workers
}
