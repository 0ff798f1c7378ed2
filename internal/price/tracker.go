package price

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/miniwallet/internal/metrics"
	"github.com/hitoshi/miniwallet/internal/model"
	"github.com/hitoshi/miniwallet/internal/source"
)

// State は価格表示の状態。
type State struct {
	Data      model.PriceData `json:"data"`
	IsLoading bool            `json:"isLoading"`
	Error     string          `json:"error,omitempty"`
}

// InitialState は取得前に表示する値を返す。
func InitialState() State {
	return State{
		Data: model.PriceData{
			Current:          43250,
			Change24h:        2.34,
			ChangePercent24h: 5.41,
			History:          []model.PricePoint{},
		},
		IsLoading: true,
	}
}

// Tracker は開始直後に1回、以降は一定間隔で価格を取得して保持する。
type Tracker struct {
	provider Provider
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	periodic *source.Periodic[model.PriceData]

	mu    sync.RWMutex
	state State

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker はTrackerを生成する。metricsはnilでもよい。
func NewTracker(provider Provider, interval time.Duration, logger *slog.Logger, mc metrics.MetricsCollector) *Tracker {
	t := &Tracker{
		provider: provider,
		logger:   logger,
		metrics:  mc,
		state:    InitialState(),
	}
	t.periodic = source.NewPeriodic("price", interval, t.fetch, logger, source.WithImmediate())
	return t
}

// State は現在の状態を返す。
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Start は取得を開始する。実行中なら何もしない。
func (t *Tracker) Start(ctx context.Context) {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	ch := t.periodic.Start(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for data := range ch {
			t.mu.Lock()
			t.state = State{Data: data}
			t.mu.Unlock()
		}
	}()
}

// Stop は取得を止める。保持中の値は残す。
func (t *Tracker) Stop() {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	if t.cancel == nil {
		return
	}
	t.cancel()
	t.periodic.Stop()
	t.wg.Wait()
	t.cancel = nil
}

func (t *Tracker) fetch(ctx context.Context) (model.PriceData, bool, error) {
	start := time.Now()
	data, err := t.provider.Fetch(ctx, t.State().Data)
	if ctx.Err() != nil {
		return model.PriceData{}, false, ctx.Err()
	}
	if t.metrics != nil {
		t.metrics.RecordPriceFetch(time.Since(start), err)
	}
	if err != nil {
		t.mu.Lock()
		t.state.IsLoading = false
		t.state.Error = err.Error()
		t.mu.Unlock()
		return model.PriceData{}, false, err
	}

	if t.metrics != nil {
		t.metrics.SetPrice(data.Current)
	}
	return data, true, nil
}
