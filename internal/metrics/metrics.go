// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// シェルフクライアントの解決処理から利用する。
type MetricsCollector interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordParseFailure(source string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordBooksNormalized(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHit        prometheus.Counter
	cacheMiss       prometheus.Counter
	fetchSuccess    prometheus.Counter
	fetchFail       *prometheus.CounterVec
	parseFail       *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	booksNormalized prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfman_cache_hit_total",
			Help: "キャッシュファイルから解決した回数",
		}),
		cacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfman_cache_miss_total",
			Help: "キャッシュが存在しないか期限切れだった回数",
		}),
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfman_fetch_success_total",
			Help: "上流APIからの取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfman_fetch_fail_total",
			Help: "上流APIからの取得失敗の合計数",
		}, []string{"reason"}),
		parseFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfman_parse_fail_total",
			Help: "ドキュメント解析失敗の合計数",
		}, []string{"source"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfman_http_status_total",
			Help: "上流APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelfman_fetch_latency_seconds",
			Help:    "上流APIからの取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		booksNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfman_books_normalized_total",
			Help: "正規化した本の合計数",
		}),
	}

	reg.MustRegister(
		c.cacheHit,
		c.cacheMiss,
		c.fetchSuccess,
		c.fetchFail,
		c.parseFail,
		c.httpStatus,
		c.fetchLatency,
		c.booksNormalized,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHit.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMiss.Inc()
}

// RecordFetchSuccess は取得成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure は取得失敗を理由別に記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordParseFailure は解析失敗を解析対象別に記録する。
func (c *Collector) RecordParseFailure(source string) {
	c.parseFail.WithLabelValues(source).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordBooksNormalized は正規化した本の数を記録する。
func (c *Collector) RecordBooksNormalized(count int) {
	c.booksNormalized.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordCacheHit()                  {}
func (Nop) RecordCacheMiss()                 {}
func (Nop) RecordFetchSuccess()              {}
func (Nop) RecordFetchFailure(string)        {}
func (Nop) RecordParseFailure(string)        {}
func (Nop) RecordHTTPStatus(int)             {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordBooksNormalized(int)        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
