package gate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/miniwallet/internal/auth"
	"github.com/hitoshi/miniwallet/internal/livefeed"
	"github.com/hitoshi/miniwallet/internal/model"
)

// fakeAuth は状態を直接差し替えられるAuthSource。
type fakeAuth struct {
	mu        sync.Mutex
	state     auth.State
	listeners []func(auth.State)
}

func (a *fakeAuth) State() auth.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *fakeAuth) Subscribe(fn func(auth.State)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
	return func() {}
}

func (a *fakeAuth) set(user *model.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = auth.State{User: user, Checked: true}
	for _, l := range a.listeners {
		l(a.state)
	}
}

// fakeWallet は呼び出しを記録する。
type fakeWallet struct {
	mu      sync.Mutex
	started []string
	stops   int
	resets  int
	added   []model.Transaction
}

func (w *fakeWallet) Start(_ context.Context, user *model.User) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = append(w.started, user.ID)
}

func (w *fakeWallet) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stops++
}

func (w *fakeWallet) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resets++
}

func (w *fakeWallet) AddTransaction(tx model.Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.added = append(w.added, tx)
	return nil
}

func (w *fakeWallet) snapshot() (started []string, stops, resets int, added []model.Transaction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.started...), w.stops, w.resets, append([]model.Transaction(nil), w.added...)
}

// fakeRunner は開始・停止の回数を数える。
type fakeRunner struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (r *fakeRunner) Start(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
}

func (r *fakeRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *fakeRunner) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}

// fakeFeed は購読関数を保持し、テストからイベントを流せるようにする。
type fakeFeed struct {
	fakeRunner
	fnMu sync.Mutex
	fn   func(livefeed.Message)
}

func (f *fakeFeed) Subscribe(fn func(livefeed.Message)) func() {
	f.fnMu.Lock()
	defer f.fnMu.Unlock()
	f.fn = fn
	return func() {
		f.fnMu.Lock()
		defer f.fnMu.Unlock()
		f.fn = nil
	}
}

func (f *fakeFeed) emit(m livefeed.Message) {
	f.fnMu.Lock()
	fn := f.fn
	f.fnMu.Unlock()
	if fn != nil {
		fn(m)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type fixture struct {
	auth   *fakeAuth
	wallet *fakeWallet
	feed   *fakeFeed
	price  *fakeRunner
	gate   *Gate
	cancel context.CancelFunc
	done   chan struct{}
}

func start(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:   &fakeAuth{state: auth.InitialState()},
		wallet: &fakeWallet{},
		feed:   &fakeFeed{},
		price:  &fakeRunner{},
		done:   make(chan struct{}),
	}
	f.gate = New(f.auth, f.wallet, f.feed, f.price, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		defer close(f.done)
		f.gate.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-f.done
	})

	// 購読が済むまで待つ
	waitFor(t, func() bool {
		f.auth.mu.Lock()
		defer f.auth.mu.Unlock()
		return len(f.auth.listeners) == 1
	})
	return f
}

func TestGate_StaysIdleWhileUnauthenticated(t *testing.T) {
	f := start(t)
	time.Sleep(10 * time.Millisecond)

	if f.gate.Active() {
		t.Error("Active() should be false")
	}
	if started, _, _, _ := f.wallet.snapshot(); len(started) != 0 {
		t.Errorf("wallet started for %v", started)
	}
}

func TestGate_LoginStartsAndLogoutStops(t *testing.T) {
	f := start(t)

	f.auth.set(&model.User{ID: "1", Email: "demo@wallet.com"})
	waitFor(t, f.gate.Active)

	started, _, _, _ := f.wallet.snapshot()
	if len(started) != 1 || started[0] != "1" {
		t.Errorf("wallet started = %v, want [1]", started)
	}
	if s, _ := f.feed.counts(); s != 1 {
		t.Errorf("feed starts = %d, want 1", s)
	}
	if s, _ := f.price.counts(); s != 1 {
		t.Errorf("price starts = %d, want 1", s)
	}

	f.auth.set(nil)
	waitFor(t, func() bool { return !f.gate.Active() })

	_, stops, resets, _ := f.wallet.snapshot()
	if stops != 1 || resets != 1 {
		t.Errorf("wallet stops=%d resets=%d, want 1 and 1", stops, resets)
	}
	if _, s := f.feed.counts(); s != 1 {
		t.Errorf("feed stops = %d, want 1", s)
	}
	if _, s := f.price.counts(); s != 1 {
		t.Errorf("price stops = %d, want 1", s)
	}
}

func TestGate_UserSwitchRestarts(t *testing.T) {
	f := start(t)

	f.auth.set(&model.User{ID: "1"})
	waitFor(t, f.gate.Active)
	f.auth.set(&model.User{ID: "2"})

	waitFor(t, func() bool {
		started, _, _, _ := f.wallet.snapshot()
		return len(started) == 2
	})
	started, stops, resets, _ := f.wallet.snapshot()
	if started[1] != "2" || stops != 1 || resets != 1 {
		t.Errorf("started=%v stops=%d resets=%d", started, stops, resets)
	}
}

func TestGate_ForwardsNewTransactions(t *testing.T) {
	f := start(t)

	f.feed.emit(livefeed.Message{Type: livefeed.EventBalanceUpdate, Balance: &livefeed.BalanceUpdate{Balance: 1}})
	f.feed.emit(livefeed.Message{
		Type:      livefeed.EventNewTransaction,
		Timestamp: time.Now(),
		Transaction: &livefeed.IncomingTransaction{
			Type: model.TransactionReceived, Amount: 250000, Address: "tb1qsender", TxHash: "ff",
		},
	})

	_, _, _, added := f.wallet.snapshot()
	if len(added) != 1 {
		t.Fatalf("added %d transactions, want 1", len(added))
	}
	if added[0].Status != model.TransactionPending || added[0].Amount != 250000 {
		t.Errorf("added = %+v", added[0])
	}
}

func TestGate_CancelStopsEverything(t *testing.T) {
	f := start(t)

	f.auth.set(&model.User{ID: "1"})
	waitFor(t, f.gate.Active)

	f.cancel()
	<-f.done

	if f.gate.Active() {
		t.Error("Active() should be false after Run returns")
	}
	if _, stops, _, _ := f.wallet.snapshot(); stops != 1 {
		t.Errorf("wallet stops = %d, want 1", stops)
	}
}
