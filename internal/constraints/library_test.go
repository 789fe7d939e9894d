package constraints

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
)

func TestGetLibrary_CoversEveryHardRule(t *testing.T) {
	lib := GetLibrary(constraint.DefaultWeights())

	var hard []string
	for _, def := range lib {
		if def.Type == "hard" {
			hard = append(hard, def.Name)
			assert.NotEqual(t, "其他", def.Category, "硬约束 %s 缺少说明", def.Name)
			assert.Nil(t, def.Weight)
		}
	}

	rules := constraint.DefaultRules()
	require.Len(t, hard, len(rules))
	for i, r := range rules {
		assert.Equal(t, r.Name(), hard[i], "硬约束按检查顺序列出")
	}
}

func TestGetLibrary_SoftWeights(t *testing.T) {
	w := constraint.DefaultWeights()
	w.Fairness = 12.5

	soft := map[string]ConstraintDefinition{}
	for _, def := range GetLibrary(w) {
		if def.Type == "soft" {
			soft[def.Name] = def
		}
	}

	require.Len(t, soft, 7)
	require.NotNil(t, soft["fairness"].Weight)
	assert.Equal(t, 12.5, *soft["fairness"].Weight)
	assert.Equal(t, "12.5", soft["fairness"].Params[0].Default)
	assert.Equal(t, w.Coverage, *soft["coverage"].Weight)
	assert.Equal(t, w.Rest, *soft["rest"].Weight)
}
