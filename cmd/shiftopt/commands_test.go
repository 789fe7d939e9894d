package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullInput = `{
  "employees": [
    {"id": "e1", "skills": ["cashier"]},
    {"id": "e2", "skills": ["cashier"]}
  ],
  "shifts": [
    {"id": "s1", "date": "2026-01-05", "start_time": "09:00", "end_time": "17:00", "required_staff": 2, "allowed_skills": ["cashier"]}
  ]
}`

const partialInput = `{
  "employees": [{"id": "e1", "skills": ["cashier"]}],
  "shifts": [
    {"id": "s1", "date": "2026-01-05", "required_staff": 3, "allowed_skills": ["cashier"]}
  ]
}`

func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := &cli{in: strings.NewReader(stdin), out: &out, errOut: &errOut}
	code := execute(context.Background(), c, append([]string{"--log-level", "off"}, args...))
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOptimize_FullCoverageExitsZero(t *testing.T) {
	code, out, errOut := run(t, fullInput, "optimize", "--stdin", "--seed", "3", "--max-iterations", "200")
	require.Equal(t, exitCovered, code, errOut)

	var res struct {
		Assignments []map[string]interface{} `json:"assignments"`
		Seed        uint64                   `json:"seed"`
		Statistics  struct {
			CoverageRate float64 `json:"coverage_rate"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Assignments, 2)
	assert.Equal(t, uint64(3), res.Seed)
	assert.InDelta(t, 100, res.Statistics.CoverageRate, 1e-9)
}

func TestOptimize_PartialCoverageExitsOne(t *testing.T) {
	in := writeFile(t, "in.json", partialInput)
	code, out, _ := run(t, "", "optimize", in, "--seed", "1", "--time-limit", "5")
	assert.Equal(t, exitPartial, code)
	assert.Contains(t, out, `"uncovered_shifts"`)
}

func TestOptimize_WritesOutputFile(t *testing.T) {
	in := writeFile(t, "in.json", fullInput)
	outPath := filepath.Join(t.TempDir(), "out.json")

	code, out, _ := run(t, "", "optimize", in, outPath, "--seed", "9")
	require.Equal(t, exitCovered, code)
	assert.Empty(t, out, "指定输出文件且未加 --stdout 时不写标准输出")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"terminal_state"`)

	// --stdout 时两处都写
	code, out, _ = run(t, "", "optimize", in, outPath, "--seed", "9", "--stdout")
	require.Equal(t, exitCovered, code)
	assert.Contains(t, out, `"terminal_state"`)
}

func TestOptimize_Errors(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		wantCode string
	}{
		{"缺少输入", "", []string{"optimize"}, "INVALID_INPUT"},
		{"输入文件不存在", "", []string{"optimize", "/nonexistent/in.json"}, "INVALID_INPUT"},
		{"不是JSON", "{oops", []string{"optimize", "--stdin"}, "INVALID_INPUT"},
		{"未知参数", "", []string{"optimize", "--bogus"}, "INVALID_INPUT"},
		{"迭代次数为负", fullInput, []string{"optimize", "--stdin", "--max-iterations=-1"}, "VALIDATION_FAILED"},
		{"记录不完整", `{"employees":[{"id":""}],"shifts":[{"id":"s1","date":"2026-01-05","required_staff":1}]}`, []string{"optimize", "--stdin"}, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := run(t, tt.stdin, tt.args...)
			assert.Equal(t, exitError, code)
			assert.Empty(t, out)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(errOut), &body), errOut)
			assert.Equal(t, true, body["error"])
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestValidate_Command(t *testing.T) {
	clean := `{
  "employees": [{"id": "e1"}],
  "shifts": [{"id": "s1", "date": "2026-01-05", "required_staff": 1}],
  "assignments": [{"employee_id": "e1", "shift_id": "s1"}]
}`
	code, out, _ := run(t, clean, "validate")
	require.Equal(t, exitCovered, code)

	var rep validationReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.True(t, rep.Valid)
	assert.Empty(t, rep.Conflicts)

	overfull := `{
  "employees": [{"id": "e1"}, {"id": "e2"}],
  "shifts": [{"id": "s1", "date": "2026-01-05", "required_staff": 1}],
  "assignments": [{"employee_id": "e1", "shift_id": "s1"}, {"employee_id": "e2", "shift_id": "s1"}]
}`
	path := writeFile(t, "check.json", overfull)
	code, out, _ = run(t, "", "validate", path)
	assert.Equal(t, exitPartial, code)
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.False(t, rep.Valid)
	assert.Equal(t, 1, rep.Errors)
}
