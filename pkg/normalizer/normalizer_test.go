package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/model"
)

func intPtr(v int) *int { return &v }

func mustNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := Default()
	require.NoError(t, err)
	return n
}

func TestNormalize_Defaults(t *testing.T) {
	n := mustNormalizer(t)

	employees, shifts, err := n.Normalize(
		[]RawEmployee{{ID: "e1"}},
		[]RawShift{{ID: "s1", Date: "2026-01-12", RequiredStaff: intPtr(2)}},
	)
	require.NoError(t, err)
	require.Len(t, employees, 1)
	require.Len(t, shifts, 1)

	emp := employees[0]
	assert.Equal(t, [7]bool{true, true, true, true, true, true, true}, emp.AvailableDays)
	assert.Equal(t, model.DefaultMaxHoursPerWeek, emp.MaxHoursPerWeek)
	assert.Equal(t, model.DefaultMaxConsecutiveDays, emp.Preferences.MaxConsecutiveDays)
	assert.NotNil(t, emp.Preferences.PreferredShifts)
	assert.NotNil(t, emp.Restrictions.UnavailableDates)
	assert.Empty(t, emp.Skills)

	s := shifts[0]
	assert.Equal(t, model.PriorityNormal, s.Priority)
	assert.Equal(t, 1, s.MinSkillLevel)
	assert.Equal(t, model.DefaultStartTime, s.StartTime)
	assert.InDelta(t, 8.0, s.Hours(), 1e-9)
}

func TestNormalize_ReportsEveryBadRecord(t *testing.T) {
	n := mustNormalizer(t)

	_, _, err := n.Normalize(
		[]RawEmployee{{ID: ""}, {ID: "ok"}, {ID: "ok"}},
		[]RawShift{
			{ID: "s1", RequiredStaff: intPtr(1)},
			{ID: "s2", Date: "2026-01-12"},
			{ID: "s3", Date: "2026-01-12", RequiredStaff: intPtr(-1)},
			{ID: "", Date: "2026-01-12", RequiredStaff: intPtr(1)},
		},
	)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	ve, ok := err.(*errors.ValidationErrors)
	require.True(t, ok)

	fields := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"employees[0].id",
		"employees[2].id",
		"shifts[0].date",
		"shifts[1].required_staff",
		"shifts[2].required_staff",
		"shifts[3].id",
	}, fields)
}

func TestNormalize_JSONStringColumns(t *testing.T) {
	n := mustNormalizer(t)

	var raw RawEmployee
	payload := `{
		"id": "e1",
		"skills": "{\"cashier\":3}",
		"available_days": "[\"mon\",\"tue\",3]",
		"preferences": "{\"preferred_shifts\":[\"s1\"],\"avoid_shifts\":[\"s2\"],\"max_consecutive_days\":4}",
		"restrictions": "{\"unavailable_dates\":[\"2026-01-14\"],\"certifications\":[\"food_safety\"]}"
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	employees := n.Employees([]RawEmployee{raw}, &errors.ValidationErrors{})
	require.Len(t, employees, 1)

	emp := employees[0]
	assert.Equal(t, 3, emp.Skills["cashier"])
	assert.Equal(t, [7]bool{false, true, true, true, false, false, false}, emp.AvailableDays)
	assert.True(t, emp.Prefers("s1"))
	assert.True(t, emp.Avoids("s2"))
	assert.Equal(t, 4, emp.Preferences.MaxConsecutiveDays)
	assert.True(t, emp.Restrictions.UnavailableDates.Has("2026-01-14"))
	assert.True(t, emp.Restrictions.Certifications.Has("food_safety"))
}

func TestDecodeSkills(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]int
		wantErr bool
	}{
		{"缺省", ``, map[string]int{}, false},
		{"标签列表", `["cook","cashier"]`, map[string]int{"cook": 1, "cashier": 1}, false},
		{"等级映射", `{"cook":2}`, map[string]int{"cook": 2}, false},
		{"对象列表", `[{"name":"cook","level":3},{"name":"waiter"}]`, map[string]int{"cook": 3, "waiter": 1}, false},
		{"字符串包裹", `"[\"cook\"]"`, map[string]int{"cook": 1}, false},
		{"格式错误", `42`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSkills(FlexJSON(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAvailableDays_Errors(t *testing.T) {
	_, err := decodeAvailableDays(FlexJSON(`[true,false]`))
	assert.Error(t, err)

	_, err = decodeAvailableDays(FlexJSON(`["someday"]`))
	assert.Error(t, err)

	_, err = decodeAvailableDays(FlexJSON(`[9]`))
	assert.Error(t, err)

	// 全部不可用与缺省无法区分
	_, err = decodeAvailableDays(FlexJSON(`[false,false,false,false,false,false,false]`))
	assert.Error(t, err)
}

func TestDecodePriority(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Priority
	}{
		{``, model.PriorityNormal},
		{`"high"`, model.PriorityHigh},
		{`1`, model.PriorityLow},
		{`low`, model.PriorityLow},
		{`null`, model.PriorityNormal},
	}
	for _, tt := range tests {
		got, err := decodePriority(FlexJSON(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := decodePriority(FlexJSON(`"critical"`))
	assert.Error(t, err)
}

func TestFlexJSON_Scan(t *testing.T) {
	var f FlexJSON
	require.NoError(t, f.Scan([]byte(`["a"]`)))
	assert.False(t, f.IsEmpty())

	require.NoError(t, f.Scan(nil))
	assert.True(t, f.IsEmpty())

	require.NoError(t, f.Scan(`""`))
	assert.True(t, f.IsEmpty())

	assert.Error(t, f.Scan(42))
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	n := mustNormalizer(t)
	raw := []RawShift{{ID: " s1 ", Date: "2026-01-12", RequiredStaff: intPtr(1)}}

	_, shifts, err := n.Normalize(nil, raw)
	require.NoError(t, err)
	assert.Equal(t, "s1", shifts[0].ID)
	assert.Equal(t, " s1 ", raw[0].ID)
}
