// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// アップロード結果のラベル値。
const (
	UploadSuccess       = "success"
	UploadInvalid       = "invalid"
	UploadNotConfigured = "not_configured"
	UploadFailed        = "failed"
	UploadTooLarge      = "too_large"
	UploadRateLimited   = "rate_limited"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordUpload(outcome string)
	RecordUploadBytes(n int64)
	RecordBlobLatency(duration time.Duration)
	RecordSessionResolution(source string)
	RecordLibraryLoad(ok bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	uploads      *prometheus.CounterVec
	uploadBytes  prometheus.Counter
	blobLatency  prometheus.Histogram
	sessions     *prometheus.CounterVec
	libraryLoads *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackbox_uploads_total",
			Help: "結果別のアップロード数",
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackbox_upload_bytes_total",
			Help: "保存に成功した音声ファイルの合計バイト数",
		}),
		blobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trackbox_blob_put_latency_seconds",
			Help:    "Blob Storageへの書き込みレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackbox_session_resolutions_total",
			Help: "ユーザー情報の取得元別のセッション解決数",
		}, []string{"source"}),
		libraryLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackbox_library_loads_total",
			Help: "結果別のライブラリ読み込み数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackbox_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.uploads,
		c.uploadBytes,
		c.blobLatency,
		c.sessions,
		c.libraryLoads,
		c.httpStatus,
	)

	return c
}

// RecordUpload はアップロード結果を記録する。
func (c *Collector) RecordUpload(outcome string) {
	c.uploads.WithLabelValues(outcome).Inc()
}

// RecordUploadBytes は保存したファイルサイズを記録する。
func (c *Collector) RecordUploadBytes(n int64) {
	c.uploadBytes.Add(float64(n))
}

// RecordBlobLatency はBlob書き込みのレイテンシを記録する。
func (c *Collector) RecordBlobLatency(duration time.Duration) {
	c.blobLatency.Observe(duration.Seconds())
}

// RecordSessionResolution はセッション解決の結果を記録する。
func (c *Collector) RecordSessionResolution(source string) {
	c.sessions.WithLabelValues(source).Inc()
}

// RecordLibraryLoad はライブラリ読み込みの結果を記録する。
func (c *Collector) RecordLibraryLoad(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	c.libraryLoads.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
