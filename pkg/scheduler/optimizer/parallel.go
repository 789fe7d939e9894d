package optimizer

import (
	"context"
	"sync"

	"github.com/paiban/shiftopt/pkg/logger"
	"github.com/paiban/shiftopt/pkg/model"
)

// Portfolio 多起点并行退火：同一输入用相邻种子各跑一次，取代价最低的结果。
// 每次运行持有独立的优化器与随机源
type Portfolio struct {
	runs    int
	workers int
	logger  *logger.OptimizerLogger
}

// NewPortfolio 创建多起点优化器
func NewPortfolio(runs, workers int, log *logger.OptimizerLogger) *Portfolio {
	if runs < 1 {
		runs = 1
	}
	if workers <= 0 {
		workers = 4
	}
	if workers > runs {
		workers = runs
	}
	if log == nil {
		log = logger.NopOptimizerLogger()
	}
	return &Portfolio{runs: runs, workers: workers, logger: log}
}

type runResult struct {
	index  int
	result *Result
	err    error
}

// Optimize 并行运行全部起点。种子为 base, base+1, ...，base 取自 cfg.Seed 或当前时间；
// 代价相同取种子序号最小者，因此给定种子时结果可复现
func (p *Portfolio) Optimize(ctx context.Context, cfg Config, employees []model.EmployeeProfile, shifts []model.ShiftRequirement, prior []model.Assignment) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := TimeSeed()
	if cfg.Seed != nil {
		base = *cfg.Seed
	}

	jobs := make(chan int, p.runs)
	results := make(chan runResult, p.runs)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				opt := New(cfg.WithSeed(base+uint64(i)), employees, shifts,
					WithPrior(prior), WithLogger(p.logger))
				res, err := opt.Optimize(ctx)
				results <- runResult{index: i, result: res, err: err}
			}
		}()
	}

	for i := 0; i < p.runs; i++ {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]runResult, p.runs)
	for r := range results {
		collected[r.index] = r
	}

	var best *Result
	for _, r := range collected {
		if r.err != nil {
			return nil, r.err
		}
		if best == nil || r.result.Cost.Total < best.Cost.Total {
			best = r.result
		}
	}
	return best, nil
}
