// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shiftopt"

// Metrics 服务指标集合
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	optimizeTotal    *prometheus.CounterVec
	optimizeDuration *prometheus.HistogramVec
	iterations       prometheus.Counter
	coverageRate     prometheus.Gauge
	fairnessScore    prometheus.Gauge
	activeJobs       prometheus.Gauge
	cacheLookups     *prometheus.CounterVec
	events           *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default 获取进程级指标集合
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New 创建使用独立注册表的指标集合
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		// 请求计数器
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"method", "path", "status"}),

		// 请求延迟直方图
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "path"}),

		optimizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizations_total",
			Help:      "排班优化次数",
		}, []string{"terminal_state"}),

		optimizeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimization_duration_seconds",
			Help:      "排班优化耗时",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 300.0},
		}, []string{"terminal_state"}),

		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_iterations_total",
			Help:      "模拟退火累计迭代次数",
		}),

		coverageRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_rate",
			Help:      "最近一次排班的覆盖率（百分比）",
		}),

		fairnessScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fairness_score",
			Help:      "最近一次排班的公平性得分",
		}),

		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "正在运行的优化任务数",
		}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "结果缓存查询次数",
		}, []string{"result"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "事件发布次数",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.httpRequests, m.httpDuration,
		m.optimizeTotal, m.optimizeDuration, m.iterations,
		m.coverageRate, m.fairnessScore, m.activeJobs,
		m.cacheLookups, m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回Prometheus格式的指标HTTP处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest 记录请求指标
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOptimization 记录一次优化的结束状态、耗时与结果质量
func (m *Metrics) RecordOptimization(terminalState string, duration time.Duration, iterations int, coverage, fairness float64) {
	m.optimizeTotal.WithLabelValues(terminalState).Inc()
	m.optimizeDuration.WithLabelValues(terminalState).Observe(duration.Seconds())
	m.iterations.Add(float64(iterations))
	m.coverageRate.Set(coverage)
	m.fairnessScore.Set(fairness)
}

// RecordCache 记录缓存命中或未命中
func (m *Metrics) RecordCache(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordEvent 记录事件发布结果
func (m *Metrics) RecordEvent(err error) {
	if err != nil {
		m.events.WithLabelValues("error").Inc()
		return
	}
	m.events.WithLabelValues("ok").Inc()
}

// JobStarted 任务开始，返回结束回调
func (m *Metrics) JobStarted() func() {
	m.activeJobs.Inc()
	return m.activeJobs.Dec
}
