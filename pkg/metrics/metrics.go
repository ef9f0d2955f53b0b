package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		ModelRequestsTotal, ModelRequestDuration,
		VendorRequestsTotal, HTTPRequestsTotal,
		JobsTotal, RateLimitWaitSeconds,
		HistoryEntries,
	)
}

// ModelRequestsTotal 模型调用次数（按 provider 与结果）
var ModelRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docunexus_model_requests_total",
		Help: "模型调用次数",
	},
	[]string{"provider", "outcome"}, // ok | error
)

// ModelRequestDuration 模型调用耗时（秒）
var ModelRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "docunexus_model_request_duration_seconds",
		Help:    "模型调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// VendorRequestsTotal 第三方云服务调用次数（docusign/speech/vision/blob/...）
var VendorRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docunexus_vendor_requests_total",
		Help: "第三方云服务调用次数",
	},
	[]string{"vendor", "outcome"},
)

// HTTPRequestsTotal HTTP 请求数
var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docunexus_http_requests_total",
		Help: "HTTP 请求数",
	},
	[]string{"method", "path", "status"},
)

// JobsTotal 媒体任务（按类型与结果）
var JobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docunexus_jobs_total",
		Help: "媒体任务总数",
	},
	[]string{"kind", "outcome"}, // completed | failed
)

// RateLimitWaitSeconds 限流等待耗时
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "docunexus_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"type", "provider"},
)

// HistoryEntries 写入会话历史的条目数
var HistoryEntries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docunexus_history_entries_total",
		Help: "写入会话历史的条目数",
	},
	[]string{"mode"},
)

// Outcome 将 err 归为 ok / error 标签
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveVendor 记录一次第三方调用结果，供 defer 使用
func ObserveVendor(vendor string, err error) {
	VendorRequestsTotal.WithLabelValues(vendor, Outcome(err)).Inc()
}

// ObserveModel 记录一次模型调用的结果与耗时
func ObserveModel(provider string, start time.Time, err error) {
	ModelRequestsTotal.WithLabelValues(provider, Outcome(err)).Inc()
	ModelRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	families, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
