package handler

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/hitoshi/miniwallet/internal/format"
	"github.com/hitoshi/miniwallet/internal/model"
	"github.com/hitoshi/miniwallet/internal/wallet"
	"github.com/shopspring/decimal"
)

// balanceView は残高のAPIレスポンス。金額はBTC表記の文字列。
type balanceView struct {
	Confirmed       string `json:"confirmed"`
	Unconfirmed     string `json:"unconfirmed"`
	Total           string `json:"total"`
	ConfirmedSats   int64  `json:"confirmedSats"`
	UnconfirmedSats int64  `json:"unconfirmedSats"`
	USDValue        string `json:"usdValue"`
}

func newBalanceView(b model.Balance, price float64) balanceView {
	total := b.Confirmed + b.Unconfirmed
	return balanceView{
		Confirmed:       format.BTC(b.Confirmed),
		Unconfirmed:     format.BTC(b.Unconfirmed),
		Total:           format.BTC(total),
		ConfirmedSats:   int64(b.Confirmed),
		UnconfirmedSats: int64(b.Unconfirmed),
		USDValue:        format.USD(usdValue(b.Confirmed, price), false),
	}
}

// transactionView はトランザクション1件のAPIレスポンス。
type transactionView struct {
	ID            string                    `json:"id"`
	Type          model.TransactionType     `json:"type"`
	Amount        string                    `json:"amount"`
	AmountSats    int64                     `json:"amountSats"`
	Address       string                    `json:"address"`
	ShortAddress  string                    `json:"shortAddress"`
	Confirmations int                       `json:"confirmations"`
	Timestamp     time.Time                 `json:"timestamp"`
	RelativeTime  string                    `json:"relativeTime"`
	TxHash        string                    `json:"txHash"`
	ShortTxHash   string                    `json:"shortTxHash"`
	ExplorerURL   string                    `json:"explorerUrl"`
	Status        model.TransactionStatus   `json:"status"`
	BlockHeight   *int32                    `json:"blockHeight,omitempty"`
	Fee           string                    `json:"fee"`
	Size          *int                      `json:"size,omitempty"`
	Category      model.TransactionCategory `json:"category,omitempty"`
}

func newTransactionView(tx model.Transaction, now time.Time) transactionView {
	return transactionView{
		ID:            tx.ID,
		Type:          tx.Type,
		Amount:        format.BTC(tx.Amount),
		AmountSats:    int64(tx.Amount),
		Address:       tx.CounterpartyAddress,
		ShortAddress:  format.Address(tx.CounterpartyAddress),
		Confirmations: tx.DisplayConfirmations(),
		Timestamp:     tx.Timestamp,
		RelativeTime:  format.RelativeTime(tx.Timestamp, now),
		TxHash:        tx.TxHash,
		ShortTxHash:   format.TxHash(tx.TxHash),
		ExplorerURL:   tx.ExplorerURL(),
		Status:        tx.Status,
		BlockHeight:   tx.BlockHeight,
		Fee:           format.BTC(tx.Fee),
		Size:          tx.Size,
		Category:      tx.Category,
	}
}

func newTransactionViews(txs []model.Transaction, now time.Time) []transactionView {
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, newTransactionView(tx, now))
	}
	return views
}

// transactionDetailView は詳細モーダル用に現在価格での評価額を加えたもの。
type transactionDetailView struct {
	transactionView
	USDValue string  `json:"usdValue"`
	FeeUSD   string  `json:"feeUsd"`
	Price    float64 `json:"price"`
}

func newTransactionDetailView(tx model.Transaction, price float64, now time.Time) transactionDetailView {
	amount := tx.Amount
	if amount < 0 {
		amount = -amount
	}
	return transactionDetailView{
		transactionView: newTransactionView(tx, now),
		USDValue:        format.USD(usdValue(amount, price), false),
		FeeUSD:          format.USD(usdValue(tx.Fee, price), false),
		Price:           price,
	}
}

// walletView はダッシュボード全体のAPIレスポンス。
type walletView struct {
	Profile      model.Profile     `json:"profile"`
	Balance      balanceView       `json:"balance"`
	Transactions []transactionView `json:"transactions"`
	Addresses    []string          `json:"addresses"`
	Loading      bool              `json:"loading"`
	Error        string            `json:"error,omitempty"`
	UI           wallet.UIState    `json:"ui"`
}

func newWalletView(s wallet.State, price float64, now time.Time) walletView {
	addresses := s.Addresses
	if addresses == nil {
		addresses = []string{}
	}
	ui := s.UI
	if ui.Notifications == nil {
		ui.Notifications = []model.Notification{}
	}
	return walletView{
		Profile:      s.Profile,
		Balance:      newBalanceView(s.Balance, price),
		Transactions: newTransactionViews(s.Transactions, now),
		Addresses:    addresses,
		Loading:      s.Loading,
		Error:        s.Error,
		UI:           ui,
	}
}

func usdValue(amount btcutil.Amount, price float64) float64 {
	v, _ := format.SatoshiToBTC(amount).Mul(decimal.NewFromFloat(price)).Round(2).Float64()
	return v
}
