package constraint

import "fmt"

// Weights 代价函数各项权重，覆盖项应至少比其余项大一个数量级
type Weights struct {
	Coverage    float64 `json:"coverage" yaml:"coverage" env:"COVERAGE" envDefault:"1000"`
	Fairness    float64 `json:"fairness" yaml:"fairness" env:"FAIRNESS" envDefault:"50"`
	Preference  float64 `json:"preference" yaml:"preference" env:"PREFERENCE" envDefault:"10"`
	Stability   float64 `json:"stability" yaml:"stability" env:"STABILITY" envDefault:"5"`
	MinHours    float64 `json:"min_hours" yaml:"min_hours" env:"MIN_HOURS" envDefault:"2"`
	Consecutive float64 `json:"consecutive" yaml:"consecutive" env:"CONSECUTIVE" envDefault:"30"`
	Rest        float64 `json:"rest" yaml:"rest" env:"REST" envDefault:"25"`
}

// DefaultWeights 默认权重
func DefaultWeights() Weights {
	return Weights{
		Coverage:    1000,
		Fairness:    50,
		Preference:  10,
		Stability:   5,
		MinHours:    2,
		Consecutive: 30,
		Rest:        25,
	}
}

// Validate 权重不能为负
func (w Weights) Validate() error {
	items := []struct {
		name  string
		value float64
	}{
		{"coverage", w.Coverage},
		{"fairness", w.Fairness},
		{"preference", w.Preference},
		{"stability", w.Stability},
		{"min_hours", w.MinHours},
		{"consecutive", w.Consecutive},
		{"rest", w.Rest},
	}
	for _, it := range items {
		if it.value < 0 {
			return fmt.Errorf("权重 %s 不能为负数: %v", it.name, it.value)
		}
	}
	return nil
}

// IsZero 是否未设置
func (w Weights) IsZero() bool {
	return w == Weights{}
}

// Breakdown 加权后的代价分项
type Breakdown struct {
	Coverage    float64 `json:"coverage"`
	Fairness    float64 `json:"fairness"`
	Preference  float64 `json:"preference"`
	Stability   float64 `json:"stability"`
	MinHours    float64 `json:"min_hours"`
	Consecutive float64 `json:"consecutive"`
	Rest        float64 `json:"rest"`
	Total       float64 `json:"total"`
}
