// Package optimizer 提供基于模拟退火的排班优化
package optimizer

import (
	"fmt"
	"time"

	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/model"
	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
)

// Config 优化配置
type Config struct {
	StartDate     string  `json:"start_date" yaml:"start_date"` // 为空表示不限制
	EndDate       string  `json:"end_date" yaml:"end_date"`
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations" env:"MAX_ITERATIONS" envDefault:"20000"`
	Temperature   float64 `json:"temperature" yaml:"temperature" env:"TEMPERATURE" envDefault:"100"`
	CoolingRate   float64 `json:"cooling_rate" yaml:"cooling_rate" env:"COOLING_RATE" envDefault:"0.995"`
	TimeoutMs     int64   `json:"timeout_ms" yaml:"timeout_ms" env:"TIMEOUT_MS" envDefault:"30000"` // 0 表示不限时
	Seed          *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	Epsilon         float64 `json:"epsilon" yaml:"epsilon" env:"EPSILON" envDefault:"0.0001"`                        // 温度低于此值视为收敛
	StagnationLimit int     `json:"stagnation_limit" yaml:"stagnation_limit" env:"STAGNATION_LIMIT" envDefault:"5000"` // 0 表示不启用
	RemoveFloor     float64 `json:"remove_floor" yaml:"remove_floor" env:"REMOVE_FLOOR" envDefault:"0.5"`            // 移除后至少保留 ceil(floor*required) 人
	MaxMoveAttempts int     `json:"max_move_attempts" yaml:"max_move_attempts" env:"MAX_MOVE_ATTEMPTS" envDefault:"32"`

	StandardWeeklyHours float64            `json:"standard_weekly_hours" yaml:"standard_weekly_hours" env:"STANDARD_WEEKLY_HOURS" envDefault:"40"`
	Weights             constraint.Weights `json:"weights" yaml:"weights" envPrefix:"WEIGHT_"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxIterations:       20000,
		Temperature:         100,
		CoolingRate:         0.995,
		TimeoutMs:           30000,
		Epsilon:             1e-4,
		StagnationLimit:     5000,
		RemoveFloor:         0.5,
		MaxMoveAttempts:     32,
		StandardWeeklyHours: constraint.DefaultStandardWeeklyHours,
		Weights:             constraint.DefaultWeights(),
	}
}

// WithSeed 返回带固定种子的副本
func (c Config) WithSeed(seed uint64) Config {
	c.Seed = &seed
	return c
}

// Timeout 时间预算
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Validate 校验配置，返回的错误列出全部问题
func (c Config) Validate() error {
	ve := &errors.ValidationErrors{}

	var start, end time.Time
	var err error
	if c.StartDate != "" {
		if start, err = model.ParseDate(c.StartDate); err != nil {
			ve.Add("config.start_date", fmt.Sprintf("日期格式应为 YYYY-MM-DD: %q", c.StartDate))
		}
	}
	if c.EndDate != "" {
		if end, err = model.ParseDate(c.EndDate); err != nil {
			ve.Add("config.end_date", fmt.Sprintf("日期格式应为 YYYY-MM-DD: %q", c.EndDate))
		}
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		ve.Add("config.start_date", "开始日期必须早于结束日期")
	}

	if c.MaxIterations < 0 {
		ve.Add("config.max_iterations", "不能为负数")
	}
	if c.Temperature <= 0 {
		ve.Add("config.temperature", "必须大于 0")
	}
	if c.CoolingRate <= 0 || c.CoolingRate >= 1 {
		ve.Add("config.cooling_rate", "必须在 (0,1) 区间内")
	}
	if c.TimeoutMs < 0 {
		ve.Add("config.timeout_ms", "不能为负数")
	}
	if c.Epsilon < 0 {
		ve.Add("config.epsilon", "不能为负数")
	}
	if c.StagnationLimit < 0 {
		ve.Add("config.stagnation_limit", "不能为负数")
	}
	if c.RemoveFloor < 0 || c.RemoveFloor > 1 {
		ve.Add("config.remove_floor", "必须在 [0,1] 区间内")
	}
	if c.MaxMoveAttempts < 0 {
		ve.Add("config.max_move_attempts", "不能为负数")
	}
	if c.StandardWeeklyHours < 0 {
		ve.Add("config.standard_weekly_hours", "不能为负数")
	}
	if err := c.Weights.Validate(); err != nil {
		ve.Add("config.weights", err.Error())
	}

	return ve.Err()
}

// inHorizon 班次日期是否在 [StartDate, EndDate] 内
func (c Config) inHorizon(date string) bool {
	if c.StartDate != "" && date < c.StartDate {
		return false
	}
	if c.EndDate != "" && date > c.EndDate {
		return false
	}
	return true
}
