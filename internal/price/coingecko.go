package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/miniwallet/internal/model"
)

const (
	// DefaultCoinGeckoEndpoint はBTCの市場チャートAPIのエンドポイント。
	DefaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/coins/bitcoin/market_chart"
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
)

// CoinGecko はCoinGeckoの市場チャートAPIから価格を取得するProvider。
type CoinGecko struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewCoinGecko はCoinGeckoを生成する。endpointが空なら既定のエンドポイントを使う。
// httpClientには内部ネットワークへの接続を拒否するクライアントを渡すこと。
func NewCoinGecko(httpClient *http.Client, endpoint string, logger *slog.Logger) *CoinGecko {
	if endpoint == "" {
		endpoint = DefaultCoinGeckoEndpoint
	}
	return &CoinGecko{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

type marketChart struct {
	Prices [][2]float64 `json:"prices"` // [unixミリ秒, USD]
}

// Fetch は直近30日の日次価格を取得する。prevは使わない。
func (c *CoinGecko) Fetch(ctx context.Context, _ model.PriceData) (model.PriceData, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return model.PriceData{}, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(HistoryDays))
	q.Set("interval", "daily")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return model.PriceData{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "miniwallet/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("価格APIの呼び出しに失敗しました", slog.String("error", err.Error()))
		return model.PriceData{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("価格APIがエラーステータスを返しました", slog.Int("http_status", resp.StatusCode))
		return model.PriceData{}, fmt.Errorf("価格APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.PriceData{}, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var chart marketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		c.logger.Error("価格APIのレスポンスのパースに失敗しました", slog.String("error", err.Error()))
		return model.PriceData{}, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if len(chart.Prices) == 0 {
		return model.PriceData{}, fmt.Errorf("価格APIのレスポンスに価格が含まれていません")
	}

	history := make([]model.PricePoint, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		history = append(history, model.PricePoint{
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
			Price:     p[1],
		})
	}
	return FromHistory(history), nil
}
