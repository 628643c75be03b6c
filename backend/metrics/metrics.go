// Package metrics 以 Prometheus 暴露 nginx 操作与进程状态指标。
//
// 使用私有 Registry，避免默认 Registry 上的全局状态影响测试。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics lifecycle 与 HTTP 层使用的指标集合。nil 接收者上的方法都是空操作。
type Metrics struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	busyRejections  prometheus.Counter
	running         prometheus.Gauge
	activeFragment  *prometheus.GaugeVec
	statusChecks    prometheus.Counter
	lastStatusCheck prometheus.Gauge
	fragments       []string
}

// New 创建指标集合；fragments 用于预先生成 active_fragment 的标签
func New(fragments []string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quicknginx_operations_total",
				Help: "Total number of lifecycle operations by command and result",
			},
			[]string{"command", "result"}, // result: "success", "error", "busy"
		),
		operationTime: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "quicknginx_operation_duration_seconds",
				Help: "Duration of lifecycle operations in seconds",
				Buckets: []float64{
					0.05, // reload / stop
					0.1,
					0.5,
					1, // start 默认的停止等待
					2,
					5,
					10,
				},
			},
			[]string{"command"},
		),
		busyRejections: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "quicknginx_busy_rejections_total",
			Help: "Commands rejected because another operation was in progress",
		}),
		running: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "quicknginx_nginx_running",
			Help: "Whether an nginx master process was observed (1) or not (0)",
		}),
		activeFragment: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quicknginx_active_fragment",
				Help: "1 for the configuration fragment currently activated, 0 otherwise",
			},
			[]string{"fragment"},
		),
		statusChecks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "quicknginx_status_checks_total",
			Help: "Total number of process table scans",
		}),
		lastStatusCheck: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "quicknginx_last_status_check_timestamp_seconds",
			Help: "Unix time of the last process table scan",
		}),
		fragments: fragments,
	}
	for _, f := range fragments {
		m.activeFragment.WithLabelValues(f).Set(0)
	}
	return m
}

// Registry 返回私有 Registry（测试用）
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation 记录一次变更操作
func (m *Metrics) ObserveOperation(command string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(command, result).Inc()
	m.operationTime.WithLabelValues(command).Observe(d.Seconds())
}

// ObserveBusy 记录一次因忙被拒绝的操作
func (m *Metrics) ObserveBusy(command string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(command, "busy").Inc()
	m.busyRejections.Inc()
}

// ObserveState 记录最近一次真实状态
func (m *Metrics) ObserveState(running bool, fragment string, at time.Time) {
	if m == nil {
		return
	}
	m.statusChecks.Inc()
	m.lastStatusCheck.Set(float64(at.Unix()))
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
	for _, f := range m.fragments {
		if f == fragment {
			m.activeFragment.WithLabelValues(f).Set(1)
		} else {
			m.activeFragment.WithLabelValues(f).Set(0)
		}
	}
}
