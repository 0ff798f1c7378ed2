package wallet

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/hitoshi/miniwallet/internal/mockdata"
	"github.com/hitoshi/miniwallet/internal/model"
)

// BalanceSource は残高を取得する。
type BalanceSource interface {
	FetchBalance(ctx context.Context) (model.Balance, error)
}

// TransactionSource はトランザクション一覧を新しい順で取得する。
type TransactionSource interface {
	FetchTransactions(ctx context.Context) ([]model.Transaction, error)
}

// デモ残高
const (
	DemoConfirmed   btcutil.Amount = 2468135
	DemoUnconfirmed btcutil.Amount = 98765
)

// SimulatedBalanceSource は一定の遅延の後に固定の残高を返す。
type SimulatedBalanceSource struct {
	Delay time.Duration
}

// FetchBalance は遅延の後にデモ残高を返す。
func (s SimulatedBalanceSource) FetchBalance(ctx context.Context) (model.Balance, error) {
	if err := wait(ctx, s.Delay); err != nil {
		return model.Balance{}, err
	}
	return model.Balance{Confirmed: DemoConfirmed, Unconfirmed: DemoUnconfirmed}, nil
}

// SimulatedTransactionSource は一定の遅延の後に模擬トランザクションを生成して返す。
type SimulatedTransactionSource struct {
	Delay time.Duration
	Count int
	Rand  mockdata.Rand
}

// FetchTransactions は遅延の後にCount件の模擬トランザクションを返す。
func (s SimulatedTransactionSource) FetchTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := wait(ctx, s.Delay); err != nil {
		return nil, err
	}
	r := s.Rand
	if r == nil {
		r = mockdata.Default
	}
	return mockdata.GenerateTransactions(r, s.Count, time.Now()), nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
