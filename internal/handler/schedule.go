// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/paiban/shiftopt/internal/service"
	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/logger"
	"github.com/paiban/shiftopt/pkg/scheduler/optimizer"
	"github.com/paiban/shiftopt/pkg/stats"
	"github.com/paiban/shiftopt/pkg/validator"
)

// ScheduleService 处理器依赖的排班服务
type ScheduleService interface {
	Optimize(ctx context.Context, req *service.OptimizeRequest) (*optimizer.Result, error)
	Generate(ctx context.Context, scheduleID string, opts *service.Options) (*optimizer.Result, error)
	Validate(ctx context.Context, req *service.CheckRequest) ([]validator.Conflict, error)
	Stats(ctx context.Context, req *service.CheckRequest) (*stats.Report, error)
}

// ScheduleHandler 排班处理器
type ScheduleHandler struct {
	svc     ScheduleService
	maxBody int64
}

// NewScheduleHandler 创建排班处理器，maxBody 为请求体上限（字节）
func NewScheduleHandler(svc ScheduleService, maxBody int64) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, maxBody: maxBody}
}

// OptimizeResponse 优化响应
type OptimizeResponse struct {
	*optimizer.Result
	ScheduleID   string `json:"schedule_id,omitempty"`
	Partial      bool   `json:"partial"`
	FullyCovered bool   `json:"fully_covered"`
}

// ValidateResponse 校验响应
type ValidateResponse struct {
	Valid     bool                 `json:"valid"`
	Errors    int                  `json:"errors"`
	Warnings  int                  `json:"warnings"`
	Conflicts []validator.Conflict `json:"conflicts"`
}

// Optimize 对请求体内联的员工与班次执行优化
func (h *ScheduleHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req service.OptimizeRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if len(req.Shifts) == 0 {
		respondError(w, r, errors.InvalidInput("shifts", "至少需要一个班次"))
		return
	}

	res, err := h.svc.Optimize(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newOptimizeResponse("", res))
}

// Generate 按已保存的排班表生成并持久化分配
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	scheduleID := strings.TrimSpace(chi.URLParam(r, "scheduleID"))
	if scheduleID == "" {
		respondError(w, r, errors.InvalidInput("scheduleID", "不能为空"))
		return
	}

	// 请求体可省略，省略时使用默认参数
	var opts service.Options
	if r.ContentLength != 0 {
		if err := h.decode(w, r, &opts); err != nil {
			respondError(w, r, err)
			return
		}
	}

	res, err := h.svc.Generate(r.Context(), scheduleID, &opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newOptimizeResponse(scheduleID, res))
}

// Validate 校验一组已有分配
func (h *ScheduleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req service.CheckRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	conflicts, err := h.svc.Validate(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := ValidateResponse{Conflicts: conflicts}
	for _, c := range conflicts {
		if c.Severity == validator.SeverityError {
			resp.Errors++
		} else {
			resp.Warnings++
		}
	}
	resp.Valid = resp.Errors == 0
	respondJSON(w, http.StatusOK, resp)
}

func newOptimizeResponse(scheduleID string, res *optimizer.Result) OptimizeResponse {
	resp := OptimizeResponse{
		Result:     res,
		ScheduleID: scheduleID,
		Partial:    res.TerminalState.Partial(),
	}
	if res.Statistics != nil {
		resp.FullyCovered = res.Statistics.FullyCovered()
	}
	return resp
}

func (h *ScheduleHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应，验证错误附带字段列表
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errors.From(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("请求处理失败")
	}

	body := map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		body["request_id"] = id
	}
	respondJSON(w, appErr.HTTPStatus, body)
}
