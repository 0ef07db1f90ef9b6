package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約系操作の総数（operation: reserve/complete/cancel, status: success/conflict/invalid_state/forbidden/not_found/error）
	ReservationsTotal *prometheus.CounterVec

	// 楽観的ロック競合によるリトライ回数（transient: 一時的なストレージ障害起因かどうか）
	ConflictRetriesTotal *prometheus.CounterVec

	// 出品の状態別件数（status: approved, reserved, sold）
	ListingsByStatus *prometheus.GaugeVec

	// 予約中トランザクション数
	ActiveTransactions prometheus.Gauge
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of reservation engine operations",
			},
			[]string{"operation", "status"},
		),
		ConflictRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_conflict_retries_total",
				Help: "Retries caused by optimistic lock conflicts or transient storage errors",
			},
			[]string{"operation", "transient"},
		),
		ListingsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "listings_by_status",
				Help: "Current number of active listings per status",
			},
			[]string{"status"},
		),
		ActiveTransactions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_transactions",
				Help: "Current number of reserved transactions",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.ConflictRetriesTotal,
		m.ListingsByStatus,
		m.ActiveTransactions,
	)

	return m
}

// RecordReservation は予約系操作の結果を記録する
// レシーバーが nil の場合は何もしない（メトリクス無効時）
func (m *Metrics) RecordReservation(operation, status string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordConflictRetry はリトライの発生を記録する
func (m *Metrics) RecordConflictRetry(operation string, transient bool) {
	if m == nil {
		return
	}
	label := "false"
	if transient {
		label = "true"
	}
	m.ConflictRetriesTotal.WithLabelValues(operation, label).Inc()
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
