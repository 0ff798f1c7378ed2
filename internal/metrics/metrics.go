// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 状態コンテナ、ライブフィード、価格トラッカー、HTTP層から利用する。
type MetricsCollector interface {
	RecordAction(container, action string)
	RecordAuthAttempt(op, result string)
	RecordFeedEvent(eventType string)
	RecordFeedDrop()
	RecordHTTPStatus(statusCode int)
	RecordPriceFetch(duration time.Duration, err error)
	SetPrice(usd float64)
	SetBalance(confirmed, unconfirmed btcutil.Amount)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	actions      *prometheus.CounterVec
	authAttempts *prometheus.CounterVec
	feedEvents   *prometheus.CounterVec
	feedDrops    prometheus.Counter
	httpStatus   *prometheus.CounterVec
	priceLatency prometheus.Histogram
	priceFail    prometheus.Counter
	price        prometheus.Gauge
	balance      *prometheus.GaugeVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniwallet_actions_total",
			Help: "状態コンテナに適用されたアクション数",
		}, []string{"container", "action"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniwallet_auth_attempts_total",
			Help: "ログイン・登録の試行数",
		}, []string{"op", "result"}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniwallet_feed_events_total",
			Help: "ライブフィードが生成したイベント数",
		}, []string{"type"}),
		feedDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miniwallet_feed_dropped_total",
			Help: "リングバッファから押し出されたイベント数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniwallet_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		priceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "miniwallet_price_fetch_latency_seconds",
			Help:    "価格取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		priceFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miniwallet_price_fetch_fail_total",
			Help: "価格取得失敗の合計数",
		}),
		price: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "miniwallet_btc_price_usd",
			Help: "直近のBTC価格（USD）",
		}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "miniwallet_balance_btc",
			Help: "ウォレット残高（BTC）",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.actions,
		c.authAttempts,
		c.feedEvents,
		c.feedDrops,
		c.httpStatus,
		c.priceLatency,
		c.priceFail,
		c.price,
		c.balance,
	)

	return c
}

// RecordAction はアクションの適用を記録する。
func (c *Collector) RecordAction(container, action string) {
	c.actions.WithLabelValues(container, action).Inc()
}

// RecordAuthAttempt は認証試行の結果を記録する。
func (c *Collector) RecordAuthAttempt(op, result string) {
	c.authAttempts.WithLabelValues(op, result).Inc()
}

// RecordFeedEvent はライブフィードイベントの生成を記録する。
func (c *Collector) RecordFeedEvent(eventType string) {
	c.feedEvents.WithLabelValues(eventType).Inc()
}

// RecordFeedDrop はバッファから押し出されたイベントを記録する。
func (c *Collector) RecordFeedDrop() {
	c.feedDrops.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPriceFetch は価格取得のレイテンシと失敗を記録する。
func (c *Collector) RecordPriceFetch(duration time.Duration, err error) {
	c.priceLatency.Observe(duration.Seconds())
	if err != nil {
		c.priceFail.Inc()
	}
}

// SetPrice は直近価格を更新する。
func (c *Collector) SetPrice(usd float64) {
	c.price.Set(usd)
}

// SetBalance は残高ゲージを更新する。
func (c *Collector) SetBalance(confirmed, unconfirmed btcutil.Amount) {
	c.balance.WithLabelValues("confirmed").Set(confirmed.ToBTC())
	c.balance.WithLabelValues("unconfirmed").Set(unconfirmed.ToBTC())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
