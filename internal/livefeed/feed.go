package livefeed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/miniwallet/internal/metrics"
	"github.com/hitoshi/miniwallet/internal/mockdata"
	"github.com/hitoshi/miniwallet/internal/model"
	"github.com/hitoshi/miniwallet/internal/source"
	"github.com/hitoshi/miniwallet/internal/store"
)

// Capacity は保持するイベントの最大件数。
const Capacity = 10

// newTransactionChance は新規トランザクションイベントが発生する確率。
const newTransactionChance = 0.2

// Config はイベントごとの生成間隔。
type Config struct {
	BalanceInterval     time.Duration
	ConfirmInterval     time.Duration
	TransactionInterval time.Duration
}

// DefaultConfig は標準の生成間隔を返す。
func DefaultConfig() Config {
	return Config{
		BalanceInterval:     45 * time.Second,
		ConfirmInterval:     60 * time.Second,
		TransactionInterval: 30 * time.Second,
	}
}

// Feed は模擬ライブフィード。
type Feed struct {
	store   *store.Store[[]Message, Message]
	sources []*source.Periodic[Message]
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	rngMu sync.Mutex
	rng   mockdata.Rand

	pushMu sync.Mutex

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	connected bool
}

// Option はFeedの設定を変更する。
type Option func(*Feed)

// WithRand は乱数源を差し替える。
func WithRand(r mockdata.Rand) Option {
	return func(f *Feed) { f.rng = r }
}

// New はFeedを生成する。metricsはnilでもよい。
func New(cfg Config, logger *slog.Logger, mc metrics.MetricsCollector, opts ...Option) *Feed {
	f := &Feed{
		store:   store.New[[]Message, Message](nil, appendBounded),
		logger:  logger,
		metrics: mc,
		now:     time.Now,
		rng:     mockdata.Default,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.sources = []*source.Periodic[Message]{
		source.NewPeriodic("feed_balance_update", cfg.BalanceInterval, f.balanceUpdate, logger),
		source.NewPeriodic("feed_transaction_confirmed", cfg.ConfirmInterval, f.transactionConfirmed, logger),
		source.NewPeriodic("feed_new_transaction", cfg.TransactionInterval, f.newTransaction, logger),
	}
	return f
}

// appendBounded は末尾に追加し、古いものから捨ててCapacity件に収める。
func appendBounded(msgs []Message, m Message) []Message {
	keep := msgs[max(0, len(msgs)-(Capacity-1)):]
	out := make([]Message, 0, len(keep)+1)
	out = append(out, keep...)
	return append(out, m)
}

// Start は接続状態にしてイベント生成を始める。接続中なら何もしない。
func (f *Feed) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connected {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.connected = true

	for _, src := range f.sources {
		ch := src.Start(ctx)
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			for m := range ch {
				f.push(m)
			}
		}()
	}

	f.logger.Info("live feed connected")
}

// Stop はイベント生成を止めて切断状態にする。保持済みのイベントは残す。
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected {
		return
	}
	f.cancel()
	for _, src := range f.sources {
		src.Stop()
	}
	f.wg.Wait()
	f.connected = false

	f.logger.Info("live feed disconnected")
}

// Connected は接続中かを返す。
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Messages は保持中のイベントを古い順に返す。
func (f *Feed) Messages() []Message {
	return slices.Clone(f.store.State())
}

// Recent は新しい順に最大n件のイベントを返す。
func (f *Feed) Recent(n int) []Message {
	msgs := f.store.State()
	n = min(max(n, 0), len(msgs))
	out := slices.Clone(msgs[len(msgs)-n:])
	slices.Reverse(out)
	return out
}

// Activity は新しい順に最大n件を表示用の文言にして返す。
func (f *Feed) Activity(n int) []Activity {
	now := f.now()
	recent := f.Recent(n)
	out := make([]Activity, 0, len(recent))
	for _, m := range recent {
		out = append(out, Describe(m, now))
	}
	return out
}

// Subscribe はイベントを受け取るたびに呼ばれるリスナーを登録する。
// リスナーからStart/Stopを呼んではならない。
func (f *Feed) Subscribe(fn func(Message)) (unsubscribe func()) {
	return f.store.Subscribe(func(_ []Message, m Message) { fn(m) })
}

// Send は送信を模擬する。内容はログに出すだけで、どこにも送らない。
func (f *Feed) Send(msg any) {
	f.logger.Info("live feed send (mock)", slog.Any("message", msg))
}

func (f *Feed) push(m Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = f.now()
	}

	f.pushMu.Lock()
	defer f.pushMu.Unlock()

	dropped := len(f.store.State()) >= Capacity
	f.store.Dispatch(m)

	if f.metrics != nil {
		f.metrics.RecordFeedEvent(string(m.Type))
		if dropped {
			f.metrics.RecordFeedDrop()
		}
	}
	f.logger.Debug("live feed event", slog.String("type", string(m.Type)))
}

func (f *Feed) roll() float64 {
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	return f.rng.Float64()
}

func (f *Feed) withRand(fn func(r mockdata.Rand)) {
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	fn(f.rng)
}

func (f *Feed) balanceUpdate(context.Context) (Message, bool, error) {
	var u BalanceUpdate
	f.withRand(func(r mockdata.Rand) {
		u.Balance = mockdata.BTC(r.Float64()*0.1 + 0.01)
		u.Unconfirmed = mockdata.BTC(r.Float64() * 0.01)
	})
	return Message{Type: EventBalanceUpdate, Timestamp: f.now(), Balance: &u}, true, nil
}

func (f *Feed) transactionConfirmed(context.Context) (Message, bool, error) {
	var c Confirmation
	f.withRand(func(r mockdata.Rand) {
		c.TxHash = mockdata.RandomTxHash(r)
		c.Confirmations = r.IntN(model.MaxDisplayConfirmations) + 1
	})
	return Message{Type: EventTransactionConfirmed, Timestamp: f.now(), Confirmation: &c}, true, nil
}

func (f *Feed) newTransaction(context.Context) (Message, bool, error) {
	if f.roll() >= newTransactionChance {
		return Message{}, false, nil
	}

	var in IncomingTransaction
	f.withRand(func(r mockdata.Rand) {
		in.Type = model.TransactionSent
		if r.Float64() > 0.5 {
			in.Type = model.TransactionReceived
		}
		in.Amount = mockdata.BTC(r.Float64()*0.01 + 0.001)
		in.Address = mockdata.RandomTestnetAddress(r)
		in.TxHash = mockdata.RandomTxHash(r)
	})
	return Message{Type: EventNewTransaction, Timestamp: f.now(), Transaction: &in}, true, nil
}
