// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// gateway.Metrics と realtime.Metrics を満たす。
type Collector struct {
	apiCalls       *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	authPurges     prometheus.Counter
	hubConnections prometheus.Gauge
	hubPushes      *prometheus.CounterVec
	hubDropped     prometheus.Counter
	rateLimited    *prometheus.CounterVec
	sessionsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perfreview_backend_calls_total",
			Help: "バックエンドAPI呼び出しの合計数（メソッド・ステータス別）",
		}, []string{"method", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perfreview_backend_call_duration_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		authPurges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perfreview_auth_purges_total",
			Help: "401によりセッションの認証情報を破棄した回数",
		}),
		hubConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perfreview_hub_connections",
			Help: "接続中のリアルタイム通知クライアント数",
		}),
		hubPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perfreview_hub_pushes_total",
			Help: "クライアントに配信したイベント数（種別ごと）",
		}, []string{"target"}),
		hubDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perfreview_hub_dropped_total",
			Help: "送信キューが満杯で破棄したイベント数",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perfreview_rate_limited_total",
			Help: "レート制限で拒否したリクエスト数",
		}, []string{"scope"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perfreview_sessions_purged_total",
			Help: "期限切れで削除したセッション数",
		}),
	}

	reg.MustRegister(
		c.apiCalls,
		c.apiLatency,
		c.authPurges,
		c.hubConnections,
		c.hubPushes,
		c.hubDropped,
		c.rateLimited,
		c.sessionsPurged,
	)

	return c
}

// RecordAPICall はバックエンド呼び出しを記録する。通信失敗はステータス0として記録する。
func (c *Collector) RecordAPICall(method string, status int, duration time.Duration) {
	c.apiCalls.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.apiLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAuthPurge は401による認証情報の破棄を記録する。
func (c *Collector) RecordAuthPurge() {
	c.authPurges.Inc()
}

// RecordHubConnection は接続数を増減する。
func (c *Collector) RecordHubConnection(delta int) {
	c.hubConnections.Add(float64(delta))
}

// RecordHubPush は配信したイベントを記録する。
func (c *Collector) RecordHubPush(target string, delivered int) {
	c.hubPushes.WithLabelValues(target).Add(float64(delivered))
}

// RecordHubDrop は破棄したイベントを記録する。
func (c *Collector) RecordHubDrop() {
	c.hubDropped.Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// RecordSessionsPurged は削除したセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
