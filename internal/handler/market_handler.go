package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/miniwallet/internal/format"
	"github.com/hitoshi/miniwallet/internal/livefeed"
	"github.com/hitoshi/miniwallet/internal/mockdata"
	"github.com/hitoshi/miniwallet/internal/model"
)

// recentActivityLimit は最近のアクティビティに表示する件数。
const recentActivityLimit = 5

// FeedInterface はライブフィードの接続状態と最近のイベントを返し、模擬送信を受け付ける。
// livefeed.Feedがこれを満たす。
type FeedInterface interface {
	Connected() bool
	Activity(n int) []livefeed.Activity
	Send(msg any)
}

// MarketHandler は価格・ライブフィード・統計のHTTPハンドラー。
type MarketHandler struct {
	prices PriceReaderInterface
	feed   FeedInterface
	now    func() time.Time
}

// NewMarketHandler はMarketHandlerを生成する。
func NewMarketHandler(prices PriceReaderInterface, feed FeedInterface) *MarketHandler {
	return &MarketHandler{
		prices: prices,
		feed:   feed,
		now:    time.Now,
	}
}

type priceResponse struct {
	model.PriceData
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
	Display   struct {
		Current       string `json:"current"`
		Change24h     string `json:"change24h"`
		ChangePercent string `json:"changePercent24h"`
	} `json:"display"`
}

type feedResponse struct {
	Connected bool                `json:"connected"`
	Activity  []livefeed.Activity `json:"activity"`
}

type statsResponse struct {
	Wallet  mockdata.WalletStats  `json:"wallet"`
	Network mockdata.NetworkStats `json:"network"`
}

// GetPrice は現在のBTC価格と30日分の履歴を返す。
// GET /api/price
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	s := h.prices.State()

	resp := priceResponse{
		PriceData: s.Data,
		IsLoading: s.IsLoading,
		Error:     s.Error,
	}
	if resp.History == nil {
		resp.History = []model.PricePoint{}
	}
	resp.Display.Current = format.USD(s.Data.Current, false)
	resp.Display.Change24h = format.USD(s.Data.Change24h, false)
	resp.Display.ChangePercent = format.Percentage(s.Data.ChangePercent24h, 2)

	writeJSON(w, http.StatusOK, resp)
}

// GetFeed はライブフィードの接続状態と最近のアクティビティを返す。
// GET /api/feed
func (h *MarketHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	activity := h.feed.Activity(recentActivityLimit)
	if activity == nil {
		activity = []livefeed.Activity{}
	}
	writeJSON(w, http.StatusOK, feedResponse{
		Connected: h.feed.Connected(),
		Activity:  activity,
	})
}

// SendFeed はライブフィードへの送信を受け付ける。送信は模擬のため記録されるだけ。
// 本文はJSONオブジェクトでなければならない。
// POST /api/feed/send
func (h *MarketHandler) SendFeed(w http.ResponseWriter, r *http.Request) {
	var msg map[string]any
	if !decodeJSON(w, r, &msg) {
		return
	}
	if msg == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("message must be a JSON object"))
		return
	}
	h.feed.Send(msg)
	w.WriteHeader(http.StatusAccepted)
}

// GetStats はウォレットとネットワークの統計を返す。
// GET /api/stats
func (h *MarketHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Wallet:  mockdata.MockWalletStats(h.now()),
		Network: mockdata.MockNetworkStats(),
	})
}
