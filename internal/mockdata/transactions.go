package mockdata

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/hitoshi/miniwallet/internal/model"
)

const (
	pendingCount    = 3
	baseBlockHeight = 2450000
	historyWindow   = 30 * 24 * time.Hour
)

// BTC はBTC建ての浮動小数点値をsatoshiに丸める。
func BTC(v float64) btcutil.Amount {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	a, _ := btcutil.NewAmount(v)
	return a
}

// GenerateTransactions は直近30日分の模擬トランザクションをcount件生成する。
// 先頭3件はpending、残りはconfirmed。結果は新しい順に並ぶ。
func GenerateTransactions(r Rand, count int, now time.Time) []model.Transaction {
	txs := make([]model.Transaction, 0, count)

	for i := 0; i < count; i++ {
		tx := model.Transaction{
			ID:                  fmt.Sprintf("tx_%d", i+1),
			CounterpartyAddress: AddressBook[r.IntN(len(AddressBook))],
			Timestamp:           now.Add(-time.Duration(r.Float64() * float64(historyWindow))),
			TxHash:              RandomTxHash(r),
			Fee:                 BTC(r.Float64()*0.001 + 0.00001),
		}

		if r.IntN(2) == 0 {
			tx.Type = model.TransactionSent
			tx.Amount = -BTC(r.Float64()*0.1 + 0.001)
		} else {
			tx.Type = model.TransactionReceived
			tx.Amount = BTC(r.Float64()*0.05 + 0.0001)
		}

		if i < pendingCount {
			tx.Status = model.TransactionPending
			tx.Confirmations = r.IntN(2)
		} else {
			tx.Status = model.TransactionConfirmed
			tx.Confirmations = r.IntN(100) + 6
			height := int32(baseBlockHeight + r.IntN(1000))
			tx.BlockHeight = &height
		}

		size := r.IntN(300) + 200
		tx.Size = &size

		switch {
		case r.Float64() > 0.7:
			tx.Category = model.CategoryExchange
		case r.Float64() > 0.5:
			tx.Category = model.CategoryPayment
		default:
			tx.Category = model.CategoryTransfer
		}

		txs = append(txs, tx)
	}

	slices.SortStableFunc(txs, func(a, b model.Transaction) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return txs
}
