// Package price はBTC/USD価格の取得と定期更新を提供する。
package price

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/miniwallet/internal/mockdata"
	"github.com/hitoshi/miniwallet/internal/model"
)

// HistoryDays は取得する価格履歴の日数。
const HistoryDays = 30

// Provider は価格データを取得する。
// prevは直前に保持していたデータで、初回はHistoryが空になる。
type Provider interface {
	Fetch(ctx context.Context, prev model.PriceData) (model.PriceData, error)
}

// Simulated は乱数で価格を動かすProvider。
// 初回はDelayの後に30日分の履歴を生成し、以降は直前の価格を±1%の範囲で動かす。
type Simulated struct {
	Delay time.Duration

	mu  sync.Mutex
	rng mockdata.Rand
	now func() time.Time
}

// NewSimulated はSimulatedを生成する。rがnilならパッケージの乱数源を使う。
func NewSimulated(delay time.Duration, r mockdata.Rand) *Simulated {
	if r == nil {
		r = mockdata.Default
	}
	return &Simulated{Delay: delay, rng: r, now: time.Now}
}

// Fetch は価格データを返す。
func (s *Simulated) Fetch(ctx context.Context, prev model.PriceData) (model.PriceData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(prev.History) == 0 {
		if err := sleep(ctx, s.Delay); err != nil {
			return model.PriceData{}, err
		}
		return FromHistory(mockdata.GeneratePriceHistory(s.rng, HistoryDays, s.now())), nil
	}
	return tick(prev, s.rng.Float64()), nil
}

// FromHistory は履歴の最後の2点から現在値と24時間変化を求める。
func FromHistory(history []model.PricePoint) model.PriceData {
	current := mockdata.BasePrice
	yesterday := mockdata.BasePrice - 1000
	if n := len(history); n > 0 {
		current = history[n-1].Price
		if n > 1 {
			yesterday = history[n-2].Price
		}
	}

	change := current - yesterday
	return model.PriceData{
		Current:          current,
		Change24h:        change,
		ChangePercent24h: change / yesterday * 100,
		History:          history,
	}
}

// tick は直前の価格を±1%動かす。変化量は履歴の前日値を基準にし、変化率は直前の価格を基準にする。
func tick(prev model.PriceData, roll float64) model.PriceData {
	volatility := (roll - 0.5) * 0.02
	next := prev.Current * (1 + volatility)

	base := prev.Current
	if n := len(prev.History); n > 1 {
		base = prev.History[n-2].Price
	}
	change := next - base

	return model.PriceData{
		Current:          mockdata.RoundCents(next),
		Change24h:        change,
		ChangePercent24h: change / prev.Current * 100,
		History:          prev.History,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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
