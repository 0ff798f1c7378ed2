// Package livefeed はウォレットのライブ通知を模擬するフィードを提供する。
// 3種類のイベントを一定間隔で生成し、直近Capacity件だけを保持する。
package livefeed

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"github.com/hitoshi/miniwallet/internal/format"
	"github.com/hitoshi/miniwallet/internal/model"
)

// EventType はフィードイベントの種類。
type EventType string

const (
	EventBalanceUpdate        EventType = "balance_update"
	EventTransactionConfirmed EventType = "transaction_confirmed"
	EventNewTransaction       EventType = "new_transaction"
)

// BalanceUpdate は残高更新イベントの内容。
type BalanceUpdate struct {
	Balance     btcutil.Amount
	Unconfirmed btcutil.Amount
}

// Confirmation は承認イベントの内容。
type Confirmation struct {
	TxHash        string
	Confirmations int
}

// IncomingTransaction は新規トランザクションイベントの内容。Amountは常に正。
type IncomingTransaction struct {
	Type    model.TransactionType
	Amount  btcutil.Amount
	Address string
	TxHash  string
}

// Message はフィードの1イベント。Typeに対応するフィールドだけが設定される。
type Message struct {
	Type         EventType
	Timestamp    time.Time
	Balance      *BalanceUpdate
	Confirmation *Confirmation
	Transaction  *IncomingTransaction
}

// PendingTransaction は新規トランザクションイベントを未承認のトランザクションに変換する。
// 他の種類のイベントではfalseを返す。
func (m Message) PendingTransaction() (model.Transaction, bool) {
	if m.Type != EventNewTransaction || m.Transaction == nil {
		return model.Transaction{}, false
	}
	in := m.Transaction
	amount := in.Amount
	if in.Type == model.TransactionSent {
		amount = -amount
	}
	return model.Transaction{
		ID:                  uuid.New().String(),
		Type:                in.Type,
		Amount:              amount,
		CounterpartyAddress: in.Address,
		Timestamp:           m.Timestamp,
		TxHash:              in.TxHash,
		Status:              model.TransactionPending,
		Category:            model.CategoryTransfer,
	}, true
}

// Activity は最近のアクティビティ欄に表示する1行。
type Activity struct {
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Time        string    `json:"time"`
}

// Describe はイベントを表示用の文言にする。
func Describe(m Message, now time.Time) Activity {
	a := Activity{Type: m.Type, Time: format.RelativeTime(m.Timestamp, now)}

	switch {
	case m.Type == EventBalanceUpdate && m.Balance != nil:
		a.Title = "Balance Updated"
		a.Description = fmt.Sprintf("New balance: %s BTC", format.BTC(m.Balance.Balance))
	case m.Type == EventTransactionConfirmed && m.Confirmation != nil:
		a.Title = "Transaction Confirmed"
		a.Description = fmt.Sprintf("%d confirmations received", m.Confirmation.Confirmations)
	case m.Type == EventNewTransaction && m.Transaction != nil:
		if m.Transaction.Type == model.TransactionReceived {
			a.Title = "Bitcoin Received"
			a.Description = fmt.Sprintf("+%s BTC", format.BTC(m.Transaction.Amount))
		} else {
			a.Title = "Bitcoin Sent"
			a.Description = fmt.Sprintf("-%s BTC", format.BTC(m.Transaction.Amount))
		}
	default:
		a.Title = "Unknown Activity"
		a.Description = "Something happened..."
		a.Time = format.RelativeTime(now, now)
	}
	return a
}
