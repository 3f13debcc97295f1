// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーとミドルウェアから利用する。
type MetricsCollector interface {
	RecordSubmissionAccepted()
	RecordValidationFailure(fieldCount int)
	RecordRateLimited(limitType string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	accepted         prometheus.Counter
	validationFail   prometheus.Counter
	validationErrors prometheus.Counter
	rateLimited      *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secureform_submissions_accepted_total",
			Help: "保存されたフォーム送信の合計数",
		}),
		validationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secureform_submissions_rejected_total",
			Help: "検証エラーで拒否されたフォーム送信の合計数",
		}),
		validationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secureform_validation_errors_total",
			Help: "フィールド単位の検証エラーの合計数",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secureform_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"limit_type"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secureform_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.accepted,
		c.validationFail,
		c.validationErrors,
		c.rateLimited,
		c.httpStatus,
	)

	return c
}

// RecordSubmissionAccepted は送信の保存を記録する。
func (c *Collector) RecordSubmissionAccepted() {
	c.accepted.Inc()
}

// RecordValidationFailure は検証エラーによる拒否と、そのフィールドエラー数を記録する。
func (c *Collector) RecordValidationFailure(fieldCount int) {
	c.validationFail.Inc()
	c.validationErrors.Add(float64(fieldCount))
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limitType string) {
	c.rateLimited.WithLabelValues(limitType).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop は何も記録しないMetricsCollector。メトリクスを使わない構成とテスト用。
type Noop struct{}

func (Noop) RecordSubmissionAccepted() {}
func (Noop) RecordValidationFailure(int) {}
func (Noop) RecordRateLimited(string) {}
func (Noop) RecordHTTPStatus(int) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Noop{}
)
