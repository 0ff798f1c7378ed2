package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/miniwallet/internal/apiclient"
	"github.com/hitoshi/miniwallet/internal/format"
	"github.com/hitoshi/miniwallet/internal/middleware"
	"github.com/hitoshi/miniwallet/internal/model"
	"github.com/hitoshi/miniwallet/internal/price"
	"github.com/hitoshi/miniwallet/internal/wallet"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// QRコード画像の一辺（px）
const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// WalletServiceInterface はウォレットハンドラーが必要とするサービスインターフェース。
// wallet.Machineがこれを満たす。
type WalletServiceInterface interface {
	State() wallet.State
	RefreshBalance(ctx context.Context) error
	RefreshTransactions(ctx context.Context) error
	AddNotification(message string, severity model.Severity) (string, error)
	DismissNotification(id string)
	OpenModal(modal model.Modal) error
	CloseModal()
	SetTheme(theme model.Theme) error
}

// PriceReaderInterface は現在の価格状態を返す。price.Trackerがこれを満たす。
type PriceReaderInterface interface {
	State() price.State
}

// WalletHandler はダッシュボード操作のHTTPハンドラー。
type WalletHandler struct {
	wallet WalletServiceInterface
	prices PriceReaderInterface
	logger *slog.Logger
	now    func() time.Time
}

// NewWalletHandler はWalletHandlerを生成する。
func NewWalletHandler(w WalletServiceInterface, prices PriceReaderInterface, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		wallet: w,
		prices: prices,
		logger: logger,
		now:    time.Now,
	}
}

type modalRequest struct {
	Modal model.Modal `json:"modal"`
}

type themeRequest struct {
	Theme model.Theme `json:"theme"`
}

type notificationRequest struct {
	Message  string         `json:"message"`
	Severity model.Severity `json:"type"`
}

type notificationResponse struct {
	ID string `json:"id"`
}

// receiveResponse は受取モーダルの表示内容。
type receiveResponse struct {
	Address    string `json:"address"`
	Amount     string `json:"amount,omitempty"`
	AmountSats int64  `json:"amountSats,omitempty"`
	URI        string `json:"uri"`
	QRCode     string `json:"qrCode"` // data URL (image/png)
}

func (h *WalletHandler) currentPrice() float64 {
	return h.prices.State().Data.Current
}

// GetWallet はダッシュボード全体の状態を返す。
// GET /api/wallet
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newWalletView(h.wallet.State(), h.currentPrice(), h.now()))
}

// RefreshBalance は残高を再取得する。
// POST /api/balance/refresh
func (h *WalletHandler) RefreshBalance(w http.ResponseWriter, r *http.Request) {
	if err := h.wallet.RefreshBalance(r.Context()); err != nil {
		h.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalanceView(h.wallet.State().Balance, h.currentPrice()))
}

// ListTransactions はトランザクション一覧を新しい順に返す。
// ?filter=all|sent|received|pending で絞り込める。
// GET /api/transactions
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("filter")
	filter, ok := model.ParseTransactionFilter(raw)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFilterError(raw))
		return
	}
	txs := filter.Filter(h.wallet.State().Transactions)
	writeJSON(w, http.StatusOK, newTransactionViews(txs, h.now()))
}

// RefreshTransactions はトランザクション一覧を再取得して置き換える。
// POST /api/transactions/refresh
func (h *WalletHandler) RefreshTransactions(w http.ResponseWriter, r *http.Request) {
	if err := h.wallet.RefreshTransactions(r.Context()); err != nil {
		h.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionViews(h.wallet.State().Transactions, h.now()))
}

func (h *WalletHandler) writeFetchError(w http.ResponseWriter, err error) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	h.logger.Warn("wallet refresh failed", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusBadGateway, model.NewWalletFetchFailedError(h.wallet.State().Error))
}

// GetTransaction はトランザクションの詳細を現在価格での評価額付きで返す。
// GET /api/transactions/{id}
func (h *WalletHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, ok := h.wallet.State().Transaction(id)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTransactionNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, newTransactionDetailView(tx, h.currentPrice(), h.now()))
}

// OpenModal は送金または受取のモーダルを開く。
// PUT /api/modal
func (h *WalletHandler) OpenModal(w http.ResponseWriter, r *http.Request) {
	var req modalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.wallet.OpenModal(req.Modal); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidModalError(string(req.Modal)))
		return
	}
	writeJSON(w, http.StatusOK, h.wallet.State().UI)
}

// CloseModal はモーダルを閉じる。
// DELETE /api/modal
func (h *WalletHandler) CloseModal(w http.ResponseWriter, r *http.Request) {
	h.wallet.CloseModal()
	w.WriteHeader(http.StatusNoContent)
}

// SetTheme は画面テーマを切り替える。
// PUT /api/theme
func (h *WalletHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.wallet.SetTheme(req.Theme); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidThemeError(string(req.Theme)))
		return
	}
	writeJSON(w, http.StatusOK, h.wallet.State().UI)
}

// AddNotification は通知を追加する。
// POST /api/notifications
func (h *WalletHandler) AddNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.wallet.AddNotification(req.Message, req.Severity)
	switch {
	case errors.Is(err, wallet.ErrInvalidSeverity):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidSeverityError(string(req.Severity)))
		return
	case errors.Is(err, wallet.ErrEmptyMessage):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("message is empty"))
		return
	case err != nil:
		h.logger.Error("failed to add notification", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusCreated, notificationResponse{ID: id})
}

// DismissNotification は通知を取り除く。存在しないIDでも204を返す。
// DELETE /api/notifications/{id}
func (h *WalletHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.wallet.DismissNotification(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// Receive は入金アドレスとそのQRコードを返す。
// ?amount=<BTC> を指定するとBIP21の金額付きURIにする。
// ?format=png の場合はPNG画像そのものを返す。
// GET /api/receive
func (h *WalletHandler) Receive(w http.ResponseWriter, r *http.Request) {
	address := h.wallet.State().Profile.Address
	if address == "" {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewNoDepositAddressError())
		return
	}

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minQRSize || n > maxQRSize {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("size must be between 128 and 1024"))
			return
		}
		size = n
	}

	uri := "bitcoin:" + address
	var amount btcutil.Amount
	if raw := r.URL.Query().Get("amount"); raw != "" {
		btc, err := decimal.NewFromString(raw)
		if err == nil {
			amount = format.BTCToSatoshi(btc)
		}
		if err != nil || amount <= 0 || amount > btcutil.MaxSatoshi {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("amount must be a positive BTC value"))
			return
		}
		uri += "?amount=" + format.BTC(amount)
	}

	png, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		h.logger.Error("failed to encode QR code", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if r.URL.Query().Get("format") == "png" {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
		return
	}

	writeJSON(w, http.StatusOK, receiveResponse{
		Address:    address,
		Amount:     formatOptionalBTC(amount),
		AmountSats: int64(amount),
		URI:        uri,
		QRCode:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func formatOptionalBTC(amount btcutil.Amount) string {
	if amount == 0 {
		return ""
	}
	return format.BTC(amount)
}
