// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level" env:"LEVEL" envDefault:"info"`
	Format     string `yaml:"format" json:"format" env:"FORMAT" envDefault:"console"` // json/console
	Output     string `yaml:"output" json:"output" env:"OUTPUT" envDefault:"stdout"`  // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty" env:"FILE_PATH"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty" env:"TIME_FORMAT" envDefault:"2006-01-02T15:04:05Z07:00"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化全局日志器，只有第一次调用生效
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))
		logger = New(openOutput(cfg), cfg)
	})
}

// New 基于给定输出创建独立日志器
func New(w io.Writer, cfg Config) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: cfg.TimeFormat}
	}
	return zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

func openOutput(cfg Config) io.Writer {
	switch cfg.Output {
	case "stderr":
		return os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return os.Stdout
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

type ctxKey struct{}

// ContextWithRequestID 将请求ID写入上下文
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestIDFromContext 读取请求ID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}
	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// OptimizerLogger 优化引擎专用日志器
type OptimizerLogger struct {
	base zerolog.Logger
}

// NewOptimizerLogger 创建优化引擎日志器
func NewOptimizerLogger() *OptimizerLogger {
	return NewOptimizerLoggerFrom(*Get())
}

// NewOptimizerLoggerFrom 基于已有日志器创建
func NewOptimizerLoggerFrom(base zerolog.Logger) *OptimizerLogger {
	return &OptimizerLogger{base: base.With().Str("component", "optimizer").Logger()}
}

// NopOptimizerLogger 不输出任何内容
func NopOptimizerLogger() *OptimizerLogger {
	return &OptimizerLogger{base: zerolog.Nop()}
}

// StartOptimize 记录优化开始
func (l *OptimizerLogger) StartOptimize(employees, shifts, maxIterations int, seed uint64) {
	l.base.Info().
		Int("employees", employees).
		Int("shifts", shifts).
		Int("max_iterations", maxIterations).
		Uint64("seed", seed).
		Msg("开始排班优化")
}

// InitialSolution 记录初始解
func (l *OptimizerLogger) InitialSolution(assigned, uncovered int, cost float64) {
	l.base.Info().
		Int("assigned", assigned).
		Int("uncovered_shifts", uncovered).
		Float64("cost", cost).
		Msg("贪心初始解构建完成")
}

// BestImproved 记录发现更优解
func (l *OptimizerLogger) BestImproved(iteration int, cost float64) {
	l.base.Debug().
		Int("iteration", iteration).
		Float64("cost", cost).
		Msg("发现更优解")
}

// ForcedAddSkipped 记录强制补位失败
func (l *OptimizerLogger) ForcedAddSkipped(iteration int) {
	l.base.Debug().
		Int("iteration", iteration).
		Msg("无可行邻域移动且无法补位，提前结束")
}

// SearchFinished 记录搜索结束
func (l *OptimizerLogger) SearchFinished(state string, iterations int, duration time.Duration, cost float64) {
	l.base.Info().
		Str("terminal_state", state).
		Int("iterations", iterations).
		Dur("duration", duration).
		Float64("best_cost", cost).
		Msg("排班优化完成")
}

// Warn 记录引擎警告
func (l *OptimizerLogger) Warn(msg string, fields map[string]interface{}) {
	l.base.Warn().Fields(fields).Msg(msg)
}
