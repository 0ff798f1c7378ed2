package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// TransactionType はトランザクションの方向を表す。
type TransactionType string

const (
	// TransactionSent は送金。金額は負になる。
	TransactionSent TransactionType = "sent"
	// TransactionReceived は受金。
	TransactionReceived TransactionType = "received"
)

// TransactionStatus はトランザクションの承認状態を表す。
type TransactionStatus string

const (
	// TransactionPending は未承認。
	TransactionPending TransactionStatus = "pending"
	// TransactionConfirmed はブロックに取り込まれた状態。
	TransactionConfirmed TransactionStatus = "confirmed"
)

// TransactionCategory は一覧表示用の分類。
type TransactionCategory string

const (
	// CategoryExchange は取引所との入出金。
	CategoryExchange TransactionCategory = "exchange"
	CategoryPayment  TransactionCategory = "payment"
	CategoryTransfer TransactionCategory = "transfer"
)

// MaxDisplayConfirmations は画面上で表示する承認数の上限。
const MaxDisplayConfirmations = 6

// ExplorerTxBaseURL はtestnetのブロックエクスプローラーのトランザクションURL。
const ExplorerTxBaseURL = "https://mempool.space/testnet/tx/"

// TransactionFilter は一覧の絞り込み条件。
type TransactionFilter string

const (
	FilterAll      TransactionFilter = "all"
	FilterSent     TransactionFilter = "sent"
	FilterReceived TransactionFilter = "received"
	FilterPending  TransactionFilter = "pending"
)

// ParseTransactionFilter は絞り込み指定を解釈する。空文字はallとして扱う。
func ParseTransactionFilter(s string) (TransactionFilter, bool) {
	switch f := TransactionFilter(s); f {
	case "":
		return FilterAll, true
	case FilterAll, FilterSent, FilterReceived, FilterPending:
		return f, true
	default:
		return "", false
	}
}

// Matches はトランザクションが絞り込み条件に合うかを返す。
// pendingは方向を問わず未承認のものを対象とする。
func (f TransactionFilter) Matches(t Transaction) bool {
	switch f {
	case FilterSent:
		return t.Type == TransactionSent
	case FilterReceived:
		return t.Type == TransactionReceived
	case FilterPending:
		return t.Status == TransactionPending
	default:
		return true
	}
}

// Filter は条件に合うトランザクションを元の順序のまま返す。
func (f TransactionFilter) Filter(txs []Transaction) []Transaction {
	if f == FilterAll || f == "" {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Transaction はウォレットのトランザクション履歴の1件を表す。
// 生成後は変更しない。
type Transaction struct {
	ID                  string
	Type                TransactionType
	Amount              btcutil.Amount // 送金は負
	CounterpartyAddress string
	Confirmations       int
	Timestamp           time.Time
	TxHash              string
	Status              TransactionStatus
	BlockHeight         *int32 // confirmedの場合のみ
	Fee                 btcutil.Amount
	Size                *int // バイト数（任意）
	Category            TransactionCategory
}

// DisplayConfirmations は表示用に上限を適用した承認数を返す。
func (t Transaction) DisplayConfirmations() int {
	if t.Confirmations > MaxDisplayConfirmations {
		return MaxDisplayConfirmations
	}
	return t.Confirmations
}

// ExplorerURL はブロックエクスプローラーでトランザクションを表示するURLを返す。
func (t Transaction) ExplorerURL() string {
	return ExplorerTxBaseURL + t.TxHash
}

// Validate はトランザクションの不変条件を検証する。
//   - confirmed ならblockHeightが存在し、承認数が1以上
//   - pending ならblockHeightは存在しない
//   - 送金は負、受金は非負、手数料は非負
func (t Transaction) Validate() error {
	if t.ID == "" {
		return errors.New("transaction id is required")
	}
	if t.Confirmations < 0 {
		return fmt.Errorf("transaction %s: negative confirmations", t.ID)
	}
	if t.Fee < 0 {
		return fmt.Errorf("transaction %s: negative fee", t.ID)
	}

	switch t.Type {
	case TransactionSent:
		if t.Amount > 0 {
			return fmt.Errorf("transaction %s: sent amount must not be positive", t.ID)
		}
	case TransactionReceived:
		if t.Amount < 0 {
			return fmt.Errorf("transaction %s: received amount must not be negative", t.ID)
		}
	default:
		return fmt.Errorf("transaction %s: unknown type %q", t.ID, t.Type)
	}

	switch t.Status {
	case TransactionConfirmed:
		if t.BlockHeight == nil {
			return fmt.Errorf("transaction %s: confirmed without block height", t.ID)
		}
		if t.Confirmations < 1 {
			return fmt.Errorf("transaction %s: confirmed with %d confirmations", t.ID, t.Confirmations)
		}
	case TransactionPending:
		if t.BlockHeight != nil {
			return fmt.Errorf("transaction %s: pending with block height", t.ID)
		}
	default:
		return fmt.Errorf("transaction %s: unknown status %q", t.ID, t.Status)
	}

	return nil
}
