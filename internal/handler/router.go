package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/paiban/shiftopt/internal/constraints"
	"github.com/paiban/shiftopt/internal/metrics"
	"github.com/paiban/shiftopt/internal/middleware"
	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
)

// BuildInfo 构建信息（通过 ldflags 注入）
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// RouterConfig 路由配置
type RouterConfig struct {
	Service        ScheduleService
	Metrics        *metrics.Metrics
	MetricsPath    string // 为空时不暴露指标
	Build          BuildInfo
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	RateLimit      int                // 每客户端每秒请求数，0 不限流
	Weights        constraint.Weights // 约束库展示的软约束权重，零值使用默认权重
}

// NewRouter 组装全部路由与中间件
// 中间件执行顺序：recoverer -> requestID -> logging -> rateLimit -> timeout -> handler
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Metrics))
	if cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit, time.Second)))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "shiftopt"})
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, cfg.Build)
	})
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics.Handler())
	}

	h := NewScheduleHandler(cfg.Service, cfg.MaxBodyBytes)
	weights := cfg.Weights
	if weights == (constraint.Weights{}) {
		weights = constraint.DefaultWeights()
	}
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		r.Post("/schedules/optimize", h.Optimize)
		r.Post("/schedules/validate", h.Validate)
		r.Post("/schedules/{scheduleID}/generate", h.Generate)
		r.Post("/stats", h.Stats)
		r.Get("/constraints", func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(w, http.StatusOK, constraints.LibraryResponse{Library: constraints.GetLibrary(weights)})
		})
	})

	return r
}
