// Package constraints 约束库：向调用方说明引擎使用的硬约束与软约束权重
package constraints

import (
	"strconv"

	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
)

// ConstraintParam 约束参数定义
type ConstraintParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, string, bool, array
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        string            `json:"type"`     // hard 硬约束, soft 软约束
	Category    string            `json:"category"` // 分类
	Description string            `json:"description"`
	Source      string            `json:"source,omitempty"` // 参数来自员工、班次或请求中的哪个字段
	Weight      *float64          `json:"weight,omitempty"` // 仅软约束
	Params      []ConstraintParam `json:"params"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library"`
}

// hardDefinitions 硬约束说明，按规则名索引
var hardDefinitions = map[string]ConstraintDefinition{
	constraint.RuleCapacity: {
		DisplayName: "班次人数上限",
		Category:    "人数",
		Description: "班次分配人数不得超过需求人数。",
		Source:      "shifts[].required_staff",
		Params:      []ConstraintParam{},
	},
	constraint.RuleEligibility: {
		DisplayName: "任职资格",
		Category:    "资质要求",
		Description: "员工需具备班次要求的技能（达到最低等级）与全部证书，且当天可用。",
		Source:      "shifts[].allowed_skills, min_skill_level, required_certifications; employees[].skills, available_days, restrictions.certifications, restrictions.unavailable_dates",
		Params: []ConstraintParam{
			{Name: "min_skill_level", Type: "int", Description: "最低技能等级", Default: "1", Min: "0"},
		},
	},
	constraint.RuleDuplicate: {
		DisplayName: "不重复分配",
		Category:    "人数",
		Description: "同一员工不能被重复分配到同一班次。",
		Params:      []ConstraintParam{},
	},
	constraint.RuleWeeklyHours: {
		DisplayName: "每周最大工时",
		Category:    "工时限制",
		Description: "按 ISO 周（周一开始）累计的工时不得超过员工的每周上限。",
		Source:      "employees[].max_hours_per_week",
		Params: []ConstraintParam{
			{Name: "max_hours_per_week", Type: "float", Description: "每周最大工时(小时)", Default: "40", Min: "0"},
		},
	},
	constraint.RuleOverlap: {
		DisplayName: "时间不重叠",
		Category:    "时间冲突",
		Description: "同一员工的班次时间窗口不能重叠，跨夜班次按次日结束计算，首尾相接不算重叠。",
		Params:      []ConstraintParam{},
	},
	constraint.RuleOvertime: {
		DisplayName: "每月加班上限",
		Category:    "工时限制",
		Description: "每周超出标准工时的部分按自然月累计，不得超过员工的每月加班上限。",
		Source:      "employees[].restrictions.max_overtime_per_month",
		Params: []ConstraintParam{
			{Name: "max_overtime_per_month", Type: "float", Description: "每月最大加班(小时)，0 表示不限", Default: "0", Min: "0"},
			{Name: "standard_weekly_hours", Type: "float", Description: "标准周工时", Default: "40", Min: "0"},
		},
	},
}

// GetLibrary 返回引擎当前生效的约束库：硬约束按检查顺序，软约束附带给定权重
func GetLibrary(weights constraint.Weights) []ConstraintDefinition {
	rules := constraint.DefaultRules()
	library := make([]ConstraintDefinition, 0, len(rules)+7)

	for _, r := range rules {
		def, ok := hardDefinitions[r.Name()]
		if !ok {
			def = ConstraintDefinition{DisplayName: r.Name(), Category: "其他", Params: []ConstraintParam{}}
		}
		def.Name = r.Name()
		def.Type = "hard"
		library = append(library, def)
	}

	soft := func(name, display, category, desc, source string, w float64) ConstraintDefinition {
		return ConstraintDefinition{
			Name:        name,
			DisplayName: display,
			Type:        "soft",
			Category:    category,
			Description: desc,
			Source:      source,
			Weight:      &w,
			Params: []ConstraintParam{
				{Name: "weight", Type: "float", Description: "权重", Default: strconv.FormatFloat(w, 'f', -1, 64), Min: "0"},
			},
		}
	}

	library = append(library,
		soft("coverage", "需求覆盖", "服务保障",
			"每个缺额人次计一次惩罚，按班次优先级放大：低 0.5、普通 1.0、高 2.0。",
			"shifts[].priority", weights.Coverage),
		soft("fairness", "工时公平", "公平性",
			"可排班员工总工时的变异系数。",
			"", weights.Fairness),
		soft("preference", "员工偏好", "员工满意度",
			"未满足的偏好班次与命中的回避班次各计 1。",
			"employees[].preferences.preferred_shifts, avoid_shifts", weights.Preference),
		soft("stability", "排班稳定", "稳定性",
			"与上一版排班相比新增或取消的分配各计 1。",
			"prior_assignments", weights.Stability),
		soft("min_hours", "每周最小工时", "工时限制",
			"员工在可排班的每周中低于最小工时的小时数。",
			"employees[].min_hours_per_week", weights.MinHours),
		soft("consecutive", "最大连续工作天数", "休息保障",
			"连续工作超过上限的天数。",
			"employees[].preferences.max_consecutive_days", weights.Consecutive),
		soft("rest", "班次最小间隔", "休息保障",
			"相邻两个工作日间隔小于要求的次数。",
			"employees[].preferences.min_days_between_shifts", weights.Rest),
	)
	return library
}
