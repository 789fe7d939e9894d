// Package normalizer 将原始员工/班次记录转换为优化引擎的规范类型
package normalizer

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"

	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/model"
)

// RawEmployee 原始员工记录，技能/偏好/限制可以是 JSON 字符串
type RawEmployee struct {
	ID              string   `json:"id" db:"id" validate:"required"`
	Name            string   `json:"name,omitempty" db:"name"`
	MaxHoursPerWeek *float64 `json:"max_hours_per_week,omitempty" db:"max_hours_per_week" validate:"omitempty,gt=0"`
	MinHoursPerWeek *float64 `json:"min_hours_per_week,omitempty" db:"min_hours_per_week" validate:"omitempty,gte=0"`
	Skills          FlexJSON `json:"skills,omitempty" db:"skills"`
	AvailableDays   FlexJSON `json:"available_days,omitempty" db:"available_days"`
	Preferences     FlexJSON `json:"preferences,omitempty" db:"preferences"`
	Restrictions    FlexJSON `json:"restrictions,omitempty" db:"restrictions"`
}

// RawShift 原始班次记录
type RawShift struct {
	ID                     string   `json:"id" db:"id" validate:"required"`
	Date                   string   `json:"date" db:"date" validate:"required"`
	StartTime              string   `json:"start_time,omitempty" db:"start_time"`
	EndTime                string   `json:"end_time,omitempty" db:"end_time"`
	RequiredStaff          *int     `json:"required_staff" db:"required_staff" validate:"required,gte=0"`
	MinSkillLevel          *int     `json:"min_skill_level,omitempty" db:"min_skill_level" validate:"omitempty,gte=0"`
	AllowedSkills          FlexJSON `json:"allowed_skills,omitempty" db:"allowed_skills"`
	RequiredCertifications FlexJSON `json:"required_certifications,omitempty" db:"required_certifications"`
	Department             string   `json:"department,omitempty" db:"department"`
	Priority               FlexJSON `json:"priority,omitempty" db:"priority"`
}

type skillEntry struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

var weekdayNames = map[string]int{
	"sun": 0, "sunday": 0, "周日": 0,
	"mon": 1, "monday": 1, "周一": 1,
	"tue": 2, "tuesday": 2, "周二": 2,
	"wed": 3, "wednesday": 3, "周三": 3,
	"thu": 4, "thursday": 4, "周四": 4,
	"fri": 5, "friday": 5, "周五": 5,
	"sat": 6, "saturday": 6, "周六": 6,
}

// Normalizer 输入规范化器，无副作用，可并发使用
type Normalizer struct {
	validate *validator.Validate
	trans    ut.Translator
}

var (
	defaultOnce sync.Once
	defaultNorm *Normalizer
	defaultErr  error
)

// New 创建规范化器，校验错误信息使用中文
func New() (*Normalizer, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	zhLocale := zh.New()
	uni := ut.New(zhLocale, zhLocale)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("注册校验翻译失败: %w", err)
	}
	return &Normalizer{validate: validate, trans: trans}, nil
}

// Default 返回共享的规范化器
func Default() (*Normalizer, error) {
	defaultOnce.Do(func() {
		defaultNorm, defaultErr = New()
	})
	return defaultNorm, defaultErr
}

// Normalize 规范化员工与班次，所有不完整记录一次性报告
func (n *Normalizer) Normalize(rawEmployees []RawEmployee, rawShifts []RawShift) ([]model.EmployeeProfile, []model.ShiftRequirement, error) {
	ve := &errors.ValidationErrors{}
	employees := n.Employees(rawEmployees, ve)
	shifts := n.Shifts(rawShifts, ve)
	if ve.HasErrors() {
		return nil, nil, ve
	}
	return employees, shifts, nil
}

// Employees 规范化员工记录，错误写入 ve
func (n *Normalizer) Employees(raw []RawEmployee, ve *errors.ValidationErrors) []model.EmployeeProfile {
	out := make([]model.EmployeeProfile, 0, len(raw))
	seen := make(map[string]int, len(raw))

	for i := range raw {
		rec := raw[i]
		r := &rec
		prefix := fmt.Sprintf("employees[%d]", i)
		r.ID = strings.TrimSpace(r.ID)
		if !n.validateStruct(prefix, r, ve) {
			continue
		}
		if j, dup := seen[r.ID]; dup {
			ve.Add(prefix+".id", fmt.Sprintf("标识 %s 与 employees[%d] 重复", r.ID, j))
			continue
		}
		seen[r.ID] = i

		emp, ok := n.employee(prefix, r, ve)
		if ok {
			out = append(out, emp)
		}
	}
	return out
}

func (n *Normalizer) employee(prefix string, r *RawEmployee, ve *errors.ValidationErrors) (model.EmployeeProfile, bool) {
	before := len(ve.Errors)
	emp := model.EmployeeProfile{
		ID:              r.ID,
		Name:            r.Name,
		MaxHoursPerWeek: model.DefaultMaxHoursPerWeek,
	}
	if r.MaxHoursPerWeek != nil {
		emp.MaxHoursPerWeek = *r.MaxHoursPerWeek
	}
	if r.MinHoursPerWeek != nil {
		emp.MinHoursPerWeek = *r.MinHoursPerWeek
	}
	if emp.MinHoursPerWeek > emp.MaxHoursPerWeek {
		ve.Add(prefix+".min_hours_per_week", "不能大于每周最大工时")
	}

	skills, err := decodeSkills(r.Skills)
	if err != nil {
		ve.Add(prefix+".skills", err.Error())
	}
	emp.Skills = skills

	days, err := decodeAvailableDays(r.AvailableDays)
	if err != nil {
		ve.Add(prefix+".available_days", err.Error())
	}
	emp.AvailableDays = days

	if _, err := r.Preferences.Decode(&emp.Preferences); err != nil {
		ve.Add(prefix+".preferences", "格式错误: "+err.Error())
	}
	if emp.Preferences.MaxConsecutiveDays <= 0 {
		emp.Preferences.MaxConsecutiveDays = model.DefaultMaxConsecutiveDays
	}
	if emp.Preferences.MinDaysBetweenShifts < 0 {
		ve.Add(prefix+".preferences.min_days_between_shifts", "不能为负数")
	}
	if emp.Preferences.PreferredShifts == nil {
		emp.Preferences.PreferredShifts = model.StringSet{}
	}
	if emp.Preferences.AvoidShifts == nil {
		emp.Preferences.AvoidShifts = model.StringSet{}
	}

	if _, err := r.Restrictions.Decode(&emp.Restrictions); err != nil {
		ve.Add(prefix+".restrictions", "格式错误: "+err.Error())
	}
	if emp.Restrictions.UnavailableDates == nil {
		emp.Restrictions.UnavailableDates = model.StringSet{}
	}
	if emp.Restrictions.Certifications == nil {
		emp.Restrictions.Certifications = model.StringSet{}
	}
	if emp.Restrictions.MaxOvertimePerMonth < 0 {
		ve.Add(prefix+".restrictions.max_overtime_per_month", "不能为负数")
	}
	for _, d := range emp.Restrictions.UnavailableDates.Sorted() {
		if _, err := model.ParseDate(d); err != nil {
			ve.Add(prefix+".restrictions.unavailable_dates", fmt.Sprintf("日期格式应为 YYYY-MM-DD: %q", d))
		}
	}

	return emp, len(ve.Errors) == before
}

// Shifts 规范化班次记录，错误写入 ve
func (n *Normalizer) Shifts(raw []RawShift, ve *errors.ValidationErrors) []model.ShiftRequirement {
	out := make([]model.ShiftRequirement, 0, len(raw))
	seen := make(map[string]int, len(raw))

	for i := range raw {
		rec := raw[i]
		r := &rec
		prefix := fmt.Sprintf("shifts[%d]", i)
		r.ID = strings.TrimSpace(r.ID)
		r.Date = strings.TrimSpace(r.Date)
		if !n.validateStruct(prefix, r, ve) {
			continue
		}
		if j, dup := seen[r.ID]; dup {
			ve.Add(prefix+".id", fmt.Sprintf("标识 %s 与 shifts[%d] 重复", r.ID, j))
			continue
		}
		seen[r.ID] = i

		shift, ok := n.shift(prefix, r, ve)
		if ok {
			out = append(out, shift)
		}
	}
	return out
}

func (n *Normalizer) shift(prefix string, r *RawShift, ve *errors.ValidationErrors) (model.ShiftRequirement, bool) {
	before := len(ve.Errors)
	s := model.ShiftRequirement{
		ID:            r.ID,
		Date:          r.Date,
		StartTime:     strings.TrimSpace(r.StartTime),
		EndTime:       strings.TrimSpace(r.EndTime),
		RequiredStaff: *r.RequiredStaff,
		MinSkillLevel: 1,
		Department:    r.Department,
	}
	if r.MinSkillLevel != nil {
		s.MinSkillLevel = *r.MinSkillLevel
	}
	if err := s.Resolve(); err != nil {
		ve.Add(prefix+".date", err.Error())
	}

	allowed, err := decodeTags(r.AllowedSkills)
	if err != nil {
		ve.Add(prefix+".allowed_skills", err.Error())
	}
	s.AllowedSkills = allowed

	certs, err := decodeTags(r.RequiredCertifications)
	if err != nil {
		ve.Add(prefix+".required_certifications", err.Error())
	}
	s.RequiredCertifications = certs

	p, err := decodePriority(r.Priority)
	if err != nil {
		ve.Add(prefix+".priority", err.Error())
	}
	s.Priority = p

	return s, len(ve.Errors) == before
}

// validateStruct 运行标签校验，翻译为中文后写入 ve
func (n *Normalizer) validateStruct(prefix string, v interface{}, ve *errors.ValidationErrors) bool {
	err := n.validate.Struct(v)
	if err == nil {
		return true
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		ve.Add(prefix, err.Error())
		return false
	}
	for _, fe := range fieldErrs {
		ve.Add(prefix+"."+fe.Field(), fe.Translate(n.trans))
	}
	return false
}

// decodeSkills 支持 ["a"]、{"a":2}、[{"name":"a","level":2}]
func decodeSkills(raw FlexJSON) (map[string]int, error) {
	skills := make(map[string]int)
	switch raw.firstByte() {
	case 0:
		return skills, nil
	case '{':
		if _, err := raw.Decode(&skills); err != nil {
			return map[string]int{}, fmt.Errorf("格式错误: %v", err)
		}
		return skills, nil
	}

	var tags []string
	if _, err := raw.Decode(&tags); err == nil {
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" {
				skills[t] = 1
			}
		}
		return skills, nil
	}
	var entries []skillEntry
	if _, err := raw.Decode(&entries); err != nil {
		return skills, fmt.Errorf("格式错误: %v", err)
	}
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		if e.Level <= 0 {
			e.Level = 1
		}
		skills[e.Name] = e.Level
	}
	return skills, nil
}

// decodeAvailableDays 支持 7 个布尔值，或星期名称/数字列表；缺省为每天可用。
// 全部为 false 的掩码与缺省无法区分，按格式错误处理
func decodeAvailableDays(raw FlexJSON) ([7]bool, error) {
	all := model.AllDays()
	if raw.IsEmpty() {
		return all, nil
	}

	var mask []bool
	if ok, err := raw.Decode(&mask); err == nil && ok {
		if len(mask) != 7 {
			return all, fmt.Errorf("需要 7 个元素（周日在前），实际 %d 个", len(mask))
		}
		var days [7]bool
		copy(days[:], mask)
		return checkAnyDay(days)
	}

	var items []interface{}
	if _, err := raw.Decode(&items); err != nil {
		return all, fmt.Errorf("格式错误: %v", err)
	}
	var days [7]bool
	for _, it := range items {
		switch v := it.(type) {
		case float64:
			if v < 0 || v > 6 {
				return all, fmt.Errorf("星期数字超出范围: %v", v)
			}
			days[int(v)] = true
		case string:
			idx, ok := weekdayNames[strings.ToLower(strings.TrimSpace(v))]
			if !ok {
				return all, fmt.Errorf("未知星期: %q", v)
			}
			days[idx] = true
		default:
			return all, fmt.Errorf("不支持的星期表示: %v", v)
		}
	}
	return checkAnyDay(days)
}

func checkAnyDay(days [7]bool) ([7]bool, error) {
	if days == ([7]bool{}) {
		return model.AllDays(), fmt.Errorf("至少需要一天可用，整段不可用请使用 restrictions.unavailable_dates")
	}
	return days, nil
}

func decodeTags(raw FlexJSON) (model.StringSet, error) {
	var tags []string
	if _, err := raw.Decode(&tags); err != nil {
		return model.StringSet{}, fmt.Errorf("格式错误: %v", err)
	}
	return model.NewStringSet(tags...), nil
}

func decodePriority(raw FlexJSON) (model.Priority, error) {
	if len(raw) == 0 {
		return model.PriorityNormal, nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		// 数据库文本列中未加引号的 high/low
		return model.ParsePriority(strings.TrimSpace(string(raw)))
	}
	switch p := v.(type) {
	case nil:
		return model.PriorityNormal, nil
	case float64:
		return model.ParsePriority(strconv.Itoa(int(p)))
	case string:
		return model.ParsePriority(p)
	default:
		return model.PriorityNormal, fmt.Errorf("不支持的优先级: %v", p)
	}
}
