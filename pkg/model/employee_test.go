package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allDays() [7]bool {
	return [7]bool{true, true, true, true, true, true, true}
}

func TestEmployeeProfile_AvailableOn(t *testing.T) {
	emp := &EmployeeProfile{
		ID:            "e1",
		AvailableDays: allDays(),
		Restrictions:  Restrictions{UnavailableDates: NewStringSet("2026-01-13")},
	}
	emp.AvailableDays[0] = false // 周日休息

	monday := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	assert.True(t, emp.AvailableOn(monday))
	assert.False(t, emp.AvailableOn(monday.AddDate(0, 0, 1)), "不可用日期")
	assert.False(t, emp.AvailableOn(monday.AddDate(0, 0, -1)), "周日")
}

func TestEmployeeProfile_HasSkillAtLeast(t *testing.T) {
	emp := &EmployeeProfile{Skills: map[string]int{"cashier": 2, "cook": 1}}

	tests := []struct {
		name    string
		allowed StringSet
		min     int
		want    bool
	}{
		{"无技能要求", nil, 3, true},
		{"等级满足", NewStringSet("cashier"), 2, true},
		{"等级不足", NewStringSet("cook"), 2, false},
		{"任一技能满足", NewStringSet("cook", "cashier"), 2, true},
		{"没有该技能", NewStringSet("nurse"), 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emp.HasSkillAtLeast(tt.allowed, tt.min))
		})
	}
}

func TestEmployeeProfile_Certifications(t *testing.T) {
	emp := &EmployeeProfile{Restrictions: Restrictions{Certifications: NewStringSet("food_safety")}}
	assert.True(t, emp.HasCertifications(nil))
	assert.True(t, emp.HasCertifications(NewStringSet("food_safety")))
	assert.False(t, emp.HasCertifications(NewStringSet("food_safety", "first_aid")))
}

func TestStringSet_JSON(t *testing.T) {
	s := NewStringSet("b", "a", "")
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(out))

	var back StringSet
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, back.Has("a"))
	assert.Len(t, back, 2)
}
