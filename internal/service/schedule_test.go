package service

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/shiftopt/internal/config"
	"github.com/paiban/shiftopt/internal/events"
	"github.com/paiban/shiftopt/internal/metrics"
	"github.com/paiban/shiftopt/internal/repository"
	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/model"
	"github.com/paiban/shiftopt/pkg/normalizer"
	"github.com/paiban/shiftopt/pkg/scheduler/optimizer"
	"github.com/paiban/shiftopt/pkg/stats"
)

type fakeRoster struct {
	schedule  *repository.Schedule
	employees []normalizer.RawEmployee
	shifts    []normalizer.RawShift
	prior     []model.Assignment
	err       error
}

func (f *fakeRoster) GetSchedule(_ context.Context, id string) (*repository.Schedule, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.schedule == nil || f.schedule.ID != id {
		return nil, errors.NotFound("排班表", id)
	}
	return f.schedule, nil
}

func (f *fakeRoster) LoadRoster(context.Context, string, string, string, string) ([]normalizer.RawEmployee, []normalizer.RawShift, error) {
	return f.employees, f.shifts, nil
}

func (f *fakeRoster) LoadPriorAssignments(context.Context, string) ([]model.Assignment, error) {
	return f.prior, nil
}

type fakeAssignments struct {
	mu       sync.Mutex
	saved    map[string][]model.Assignment
	terminal string
	err      error
}

func (f *fakeAssignments) ReplaceAssignments(_ context.Context, id string, a []model.Assignment, _ *stats.Report, terminal string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string][]model.Assignment)
	}
	f.saved[id] = a
	f.terminal = terminal
	return nil
}

type fakePublisher struct {
	events []events.ScheduleGenerated
	err    error
}

func (p *fakePublisher) PublishScheduleGenerated(_ context.Context, evt events.ScheduleGenerated) error {
	p.events = append(p.events, evt)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
	gets  int
}

func (c *memoryCache) Get(_ context.Context, key string) (*optimizer.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	var res optimizer.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, res *optimizer.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if c.items == nil {
		c.items = make(map[string][]byte)
	}
	c.items[key] = raw
	return nil
}

func intPtr(v int) *int { return &v }

func testConfig() config.OptimizerConfig {
	engine := optimizer.DefaultConfig()
	engine.MaxIterations = 500
	engine.TimeoutMs = 0
	return config.OptimizerConfig{Engine: engine, Workers: 2, QueueSize: 4, PortfolioRuns: 1, MaxPortfolioRuns: 4}
}

func rawRoster() ([]normalizer.RawEmployee, []normalizer.RawShift) {
	employees := []normalizer.RawEmployee{
		{ID: "e1", Skills: normalizer.FlexJSON(`["cashier"]`)},
		{ID: "e2", Skills: normalizer.FlexJSON(`"[\"cashier\"]"`)},
	}
	shifts := []normalizer.RawShift{
		{ID: "mon", Date: "2026-01-12", RequiredStaff: intPtr(1), AllowedSkills: normalizer.FlexJSON(`["cashier"]`)},
		{ID: "tue", Date: "2026-01-13", RequiredStaff: intPtr(1)},
	}
	return employees, shifts
}

func newService(t *testing.T, deps Deps) *ScheduleService {
	t.Helper()
	svc, err := NewScheduleService(testConfig(), deps)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestScheduleService_Optimize(t *testing.T) {
	svc := newService(t, Deps{Metrics: metrics.New()})
	employees, shifts := rawRoster()
	seed := uint64(3)

	res, err := svc.Optimize(context.Background(), &OptimizeRequest{
		Employees: employees,
		Shifts:    shifts,
		Options:   &Options{Seed: &seed},
	})
	require.NoError(t, err)
	assert.Len(t, res.Assignments, 2)
	assert.Equal(t, 100.0, res.Statistics.CoverageRate)
	assert.Equal(t, seed, res.Seed)
}

func TestScheduleService_OptimizeValidation(t *testing.T) {
	svc := newService(t, Deps{})

	_, err := svc.Optimize(context.Background(), &OptimizeRequest{
		Employees: []normalizer.RawEmployee{{ID: ""}},
		Shifts:    []normalizer.RawShift{{ID: "s1", Date: "2026-01-12"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	employees, shifts := rawRoster()
	_, err = svc.Optimize(context.Background(), &OptimizeRequest{
		Employees: employees,
		Shifts:    shifts,
		Options:   &Options{StartDate: "2026-02-01", EndDate: "2026-01-01"},
	})
	assert.True(t, errors.IsValidation(err))
}

func TestScheduleService_CachesSeededRuns(t *testing.T) {
	c := &memoryCache{}
	m := metrics.New()
	svc := newService(t, Deps{Cache: c, Metrics: m, CachePrefix: "t:"})
	employees, shifts := rawRoster()
	seed := uint64(9)
	req := &OptimizeRequest{Employees: employees, Shifts: shifts, Options: &Options{Seed: &seed}}

	first, err := svc.Optimize(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Optimize(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Len(t, c.items, 1)
	assert.Equal(t, 2, c.gets)

	// 未指定种子不走缓存
	_, err = svc.Optimize(context.Background(), &OptimizeRequest{Employees: employees, Shifts: shifts})
	require.NoError(t, err)
	assert.Equal(t, 2, c.gets)
}

func TestScheduleService_Generate(t *testing.T) {
	employees, shifts := rawRoster()
	roster := &fakeRoster{
		schedule:  &repository.Schedule{ID: "sch-1", Department: "front", StartDate: "2026-01-12", EndDate: "2026-01-18"},
		employees: employees,
		shifts:    shifts,
	}
	store := &fakeAssignments{}
	pub := &fakePublisher{}
	svc := newService(t, Deps{Roster: roster, Assignments: store, Publisher: pub})
	fixed := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Generate(context.Background(), "sch-1", nil)
	require.NoError(t, err)

	assert.Equal(t, res.Assignments, store.saved["sch-1"])
	assert.Equal(t, string(res.TerminalState), store.terminal)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "sch-1", pub.events[0].ScheduleID)
	assert.Equal(t, fixed, pub.events[0].GeneratedAt)
	assert.Equal(t, 100.0, pub.events[0].CoverageRate)
}

func TestScheduleService_GenerateErrors(t *testing.T) {
	t.Run("未配置数据库", func(t *testing.T) {
		svc := newService(t, Deps{})
		_, err := svc.Generate(context.Background(), "sch-1", nil)
		assert.True(t, errors.Is(err, errors.CodeUnavailable))
	})

	t.Run("排班表不存在", func(t *testing.T) {
		svc := newService(t, Deps{Roster: &fakeRoster{}, Assignments: &fakeAssignments{}})
		_, err := svc.Generate(context.Background(), "missing", nil)
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})

	t.Run("保存失败不发布事件", func(t *testing.T) {
		employees, shifts := rawRoster()
		pub := &fakePublisher{}
		svc := newService(t, Deps{
			Roster:      &fakeRoster{schedule: &repository.Schedule{ID: "sch-1"}, employees: employees, shifts: shifts},
			Assignments: &fakeAssignments{err: errors.New(errors.CodeDatabaseError, "写入失败")},
			Publisher:   pub,
		})
		_, err := svc.Generate(context.Background(), "sch-1", nil)
		assert.True(t, errors.Is(err, errors.CodeDatabaseError))
		assert.Empty(t, pub.events)
	})

	t.Run("事件失败不影响结果", func(t *testing.T) {
		employees, shifts := rawRoster()
		svc := newService(t, Deps{
			Roster:      &fakeRoster{schedule: &repository.Schedule{ID: "sch-1"}, employees: employees, shifts: shifts},
			Assignments: &fakeAssignments{},
			Publisher:   &fakePublisher{err: errors.New(errors.CodePublishError, "broker down")},
		})
		res, err := svc.Generate(context.Background(), "sch-1", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, res.Assignments)
	})
}

func TestScheduleService_ValidateAndStats(t *testing.T) {
	svc := newService(t, Deps{})
	employees, shifts := rawRoster()

	conflicts, err := svc.Validate(context.Background(), &CheckRequest{
		Employees:   employees,
		Shifts:      shifts,
		Assignments: []model.Assignment{{EmployeeID: "e1", ShiftID: "mon"}, {EmployeeID: "e2", ShiftID: "mon"}},
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "capacity", string(conflicts[0].Type))

	report, err := svc.Stats(context.Background(), &CheckRequest{
		Employees:   employees,
		Shifts:      shifts,
		Assignments: []model.Assignment{{EmployeeID: "e1", ShiftID: "mon"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, report.CoverageRate)
}

func TestScheduleService_ClosedService(t *testing.T) {
	svc, err := NewScheduleService(testConfig(), Deps{})
	require.NoError(t, err)
	svc.Close()
	svc.Close()

	employees, shifts := rawRoster()
	_, err = svc.Optimize(context.Background(), &OptimizeRequest{Employees: employees, Shifts: shifts})
	assert.True(t, errors.Is(err, errors.CodeUnavailable))
}

func TestScheduleService_PortfolioRuns(t *testing.T) {
	svc := newService(t, Deps{})
	employees, shifts := rawRoster()
	seed := uint64(50)

	res, err := svc.Optimize(context.Background(), &OptimizeRequest{
		Employees: employees,
		Shifts:    shifts,
		Options:   &Options{Seed: &seed, Runs: 3},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Seed, seed)
	assert.Len(t, res.Assignments, 2)
}

func TestScheduleService_RejectsExcessiveRuns(t *testing.T) {
	svc := newService(t, Deps{})
	employees, shifts := rawRoster()

	for _, runs := range []int{5, -1} {
		_, err := svc.Optimize(context.Background(), &OptimizeRequest{
			Employees: employees,
			Shifts:    shifts,
			Options:   &Options{Runs: runs},
		})
		require.Error(t, err, "runs=%d", runs)
		assert.True(t, errors.IsValidation(err))
		assert.Contains(t, errors.From(err).Fields, "options.runs")
	}

	// 生成接口在读取排班表之前拒绝
	roster := &fakeRoster{}
	gen := newService(t, Deps{Roster: roster, Assignments: &fakeAssignments{}})
	_, err := gen.Generate(context.Background(), "sch-1", &Options{Runs: 100})
	assert.True(t, errors.IsValidation(err))
}

func TestScheduleService_PortfolioStaysWithinWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.MaxPortfolioRuns = 16
	svc, err := NewScheduleService(cfg, Deps{})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	assert.Equal(t, 1, svc.portfolioWorkers(16))
	assert.Equal(t, 1, svc.portfolioWorkers(1))

	base := runtime.NumGoroutine()
	var peak int64
	stop := make(chan struct{})
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		for {
			if n := int64(runtime.NumGoroutine()); n > atomic.LoadInt64(&peak) {
				atomic.StoreInt64(&peak, n)
			}
			select {
			case <-stop:
				return
			default:
				runtime.Gosched()
			}
		}
	}()

	employees, shifts := rawRoster()
	seed := uint64(5)
	res, err := svc.Optimize(context.Background(), &OptimizeRequest{
		Employees: employees,
		Shifts:    shifts,
		Options:   &Options{Seed: &seed, Runs: 16},
	})
	close(stop)
	<-sampled
	require.NoError(t, err)
	assert.Len(t, res.Assignments, 2)

	// 采样协程、组合内一个工作协程与收尾协程
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(base+4))
}

func TestScheduleService_RevalidatesCachedResult(t *testing.T) {
	c := &memoryCache{}
	svc := newService(t, Deps{Cache: c, CachePrefix: "t:"})
	employees, shifts := rawRoster()
	seed := uint64(11)
	req := &OptimizeRequest{Employees: employees, Shifts: shifts, Options: &Options{Seed: &seed}}

	_, err := svc.Optimize(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, c.items, 1)

	// 篡改缓存：周一排两人，超过需求人数
	for key, raw := range c.items {
		var cached optimizer.Result
		require.NoError(t, json.Unmarshal(raw, &cached))
		cached.Assignments = []model.Assignment{
			{EmployeeID: "e1", ShiftID: "mon"},
			{EmployeeID: "e2", ShiftID: "mon"},
		}
		broken, err := json.Marshal(&cached)
		require.NoError(t, err)
		c.items[key] = broken
	}

	res, err := svc.Optimize(context.Background(), req)
	require.NoError(t, err)
	shiftIDs := make([]string, 0, len(res.Assignments))
	for _, a := range res.Assignments {
		shiftIDs = append(shiftIDs, a.ShiftID)
	}
	assert.ElementsMatch(t, []string{"mon", "tue"}, shiftIDs)
}
