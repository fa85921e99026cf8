// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 投票の変更操作を表すラベル値。
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordVoteMutation(operation string)
	RecordStatsRecompute(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordRateLimited(limiter string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	voteMutations  *prometheus.CounterVec
	statsRecompute prometheus.Histogram
	httpStatus     *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		voteMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitvote_vote_mutations_total",
			Help: "操作別の投票変更数",
		}, []string{"operation"}),
		statsRecompute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "habitvote_stats_recompute_seconds",
			Help:    "統計再計算の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitvote_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitvote_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"limiter"}),
	}

	reg.MustRegister(
		c.voteMutations,
		c.statsRecompute,
		c.httpStatus,
		c.rateLimited,
	)

	return c
}

// RecordVoteMutation は投票の作成・更新・削除を記録する。
func (c *Collector) RecordVoteMutation(operation string) {
	c.voteMutations.WithLabelValues(operation).Inc()
}

// RecordStatsRecompute は統計再計算の所要時間を記録する。
func (c *Collector) RecordStatsRecompute(duration time.Duration) {
	c.statsRecompute.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordVoteMutation(string)           {}
func (NopCollector) RecordStatsRecompute(time.Duration) {}
func (NopCollector) RecordHTTPStatus(int)                {}
func (NopCollector) RecordRateLimited(string)            {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
