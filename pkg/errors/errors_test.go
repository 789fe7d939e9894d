package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code Code
		want int
	}{
		{"验证失败", CodeValidationFail, http.StatusBadRequest},
		{"配置无效", CodeInvalidConfig, http.StatusBadRequest},
		{"不存在", CodeNotFound, http.StatusNotFound},
		{"不变量", CodeInvariantBroken, http.StatusUnprocessableEntity},
		{"数据库", CodeDatabaseError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code, "x").HTTPStatus)
		})
	}
}

func TestWrapAndIs(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("保存失败: %w", Wrap(cause, CodeDatabaseError, "写入分配失败"))

	assert.True(t, Is(err, CodeDatabaseError))
	assert.Equal(t, CodeDatabaseError, GetCode(err))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnknown, GetCode(cause))
}

func TestValidationErrors(t *testing.T) {
	ve := &ValidationErrors{}
	assert.NoError(t, ve.Err())

	ve.Add("employees[0].id", "缺少标识")
	ve.Add("shifts[2].date", "缺少日期")
	ve.Add("shifts[2].date", "格式错误")
	require.Error(t, ve.Err())
	assert.Contains(t, ve.Error(), "验证失败(3)")

	appErr := ve.ToAppError()
	assert.Equal(t, CodeValidationFail, appErr.Code)
	assert.Len(t, appErr.Fields, 2)
	assert.Equal(t, "缺少日期; 格式错误", appErr.Fields["shifts[2].date"])

	wrapped := fmt.Errorf("normalize: %w", ve)
	assert.True(t, IsValidation(wrapped))
	assert.Equal(t, CodeValidationFail, From(wrapped).Code)
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))
	assert.Equal(t, CodeInternal, From(stderrors.New("boom")).Code)

	orig := New(CodeInvalidConfig, "冷却速率无效")
	assert.Same(t, orig, From(orig))
	assert.True(t, IsValidation(orig))
}
