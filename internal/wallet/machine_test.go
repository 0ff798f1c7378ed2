package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/miniwallet/internal/mockdata"
	"github.com/hitoshi/miniwallet/internal/model"
	"github.com/hitoshi/miniwallet/internal/security"
)

// mockBalanceSource はテスト用のBalanceSourceモック。
type mockBalanceSource struct {
	fetchFn func(ctx context.Context) (model.Balance, error)
}

func (m *mockBalanceSource) FetchBalance(ctx context.Context) (model.Balance, error) {
	return m.fetchFn(ctx)
}

// mockTransactionSource はテスト用のTransactionSourceモック。
type mockTransactionSource struct {
	fetchFn func(ctx context.Context) ([]model.Transaction, error)
}

func (m *mockTransactionSource) FetchTransactions(ctx context.Context) ([]model.Transaction, error) {
	return m.fetchFn(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestMachine(balances BalanceSource, txs TransactionSource, drift time.Duration) *Machine {
	if balances == nil {
		balances = SimulatedBalanceSource{}
	}
	if txs == nil {
		txs = SimulatedTransactionSource{Count: 15, Rand: mockdata.NewSeeded(1)}
	}
	return NewMachine(balances, txs, security.NewTextSanitizer(),
		Config{DriftInterval: drift, InitialTransactions: 15}, discardLogger(), nil)
}

func TestMachine_RefreshBalance(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)

	var sawLoading bool
	unsubscribe := m.Subscribe(func(s State) {
		if s.Loading {
			sawLoading = true
		}
	})
	defer unsubscribe()

	if err := m.RefreshBalance(context.Background()); err != nil {
		t.Fatalf("RefreshBalance() error = %v", err)
	}

	s := m.State()
	if s.Balance.Confirmed != DemoConfirmed || s.Balance.Unconfirmed != DemoUnconfirmed {
		t.Errorf("Balance = %+v, want demo balance", s.Balance)
	}
	if s.Loading {
		t.Error("Loading should be cleared")
	}
	if !sawLoading {
		t.Error("Loading should be set while fetching")
	}
}

func TestMachine_RefreshBalance_FailureSetsError(t *testing.T) {
	m := newTestMachine(&mockBalanceSource{
		fetchFn: func(ctx context.Context) (model.Balance, error) {
			return model.Balance{}, errors.New("node unreachable")
		},
	}, nil, time.Hour)

	if err := m.RefreshBalance(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	s := m.State()
	if s.Error == "" {
		t.Error("Error should be set on fetch failure")
	}
	if s.Loading {
		t.Error("Loading should be cleared after failure")
	}
}

func TestMachine_RefreshBalance_SuccessClearsError(t *testing.T) {
	fail := true
	m := newTestMachine(&mockBalanceSource{
		fetchFn: func(ctx context.Context) (model.Balance, error) {
			if fail {
				return model.Balance{}, errors.New("temporary")
			}
			return model.Balance{Confirmed: 1}, nil
		},
	}, nil, time.Hour)

	_ = m.RefreshBalance(context.Background())
	fail = false
	if err := m.RefreshBalance(context.Background()); err != nil {
		t.Fatalf("RefreshBalance() error = %v", err)
	}
	if m.State().Error != "" {
		t.Errorf("Error = %q, want cleared", m.State().Error)
	}
}

func TestMachine_RefreshBalance_CanceledDoesNotSetError(t *testing.T) {
	m := newTestMachine(SimulatedBalanceSource{Delay: time.Hour}, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.RefreshBalance(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("RefreshBalance() error = %v, want context.Canceled", err)
	}
	if m.State().Error != "" {
		t.Errorf("Error = %q, want empty on cancellation", m.State().Error)
	}
}

func TestMachine_RefreshTransactions(t *testing.T) {
	calls := 0
	m := newTestMachine(nil, &mockTransactionSource{
		fetchFn: func(ctx context.Context) ([]model.Transaction, error) {
			calls++
			if calls == 1 {
				return []model.Transaction{{ID: "a"}, {ID: "b"}}, nil
			}
			return []model.Transaction{{ID: "c"}}, nil
		},
	}, time.Hour)

	_ = m.RefreshTransactions(context.Background())
	if err := m.RefreshTransactions(context.Background()); err != nil {
		t.Fatalf("RefreshTransactions() error = %v", err)
	}

	txs := m.State().Transactions
	if len(txs) != 1 || txs[0].ID != "c" {
		t.Errorf("Transactions = %+v, want wholesale replacement", txs)
	}
}

func TestMachine_RefreshTransactions_Failure(t *testing.T) {
	m := newTestMachine(nil, &mockTransactionSource{
		fetchFn: func(ctx context.Context) ([]model.Transaction, error) {
			return nil, errors.New("timeout")
		},
	}, time.Hour)

	if err := m.RefreshTransactions(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if m.State().Error == "" {
		t.Error("Error should be set")
	}
}

func TestMachine_Notifications(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)

	id, err := m.AddNotification("Address copied to clipboard!", model.SeveritySuccess)
	if err != nil {
		t.Fatalf("AddNotification() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected an id")
	}

	n, ok := m.State().Notification(id)
	if !ok {
		t.Fatal("notification not stored")
	}
	if n.Severity != model.SeveritySuccess || n.Message != "Address copied to clipboard!" {
		t.Errorf("notification = %+v", n)
	}

	m.DismissNotification("unknown")
	if len(m.State().UI.Notifications) != 1 {
		t.Error("dismissing an unknown id should be a no-op")
	}

	m.DismissNotification(id)
	if len(m.State().UI.Notifications) != 0 {
		t.Error("notification should be removed")
	}
}

func TestMachine_AddNotification_DefaultsAndValidation(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)

	id, err := m.AddNotification("QR Scanner coming soon!", "")
	if err != nil {
		t.Fatalf("AddNotification() error = %v", err)
	}
	if n, _ := m.State().Notification(id); n.Severity != model.SeverityInfo {
		t.Errorf("Severity = %q, want info", n.Severity)
	}

	if _, err := m.AddNotification("x", "critical"); !errors.Is(err, ErrInvalidSeverity) {
		t.Errorf("error = %v, want ErrInvalidSeverity", err)
	}
	if _, err := m.AddNotification("<script></script>", model.SeverityInfo); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("error = %v, want ErrEmptyMessage", err)
	}
}

func TestMachine_AddNotification_Sanitizes(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)

	id, _ := m.AddNotification("<b>Sent</b><script>alert(1)</script>", model.SeverityWarning)
	n, _ := m.State().Notification(id)
	if n.Message != "Sent" {
		t.Errorf("Message = %q, want %q", n.Message, "Sent")
	}
}

func TestMachine_Modal(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)

	if err := m.OpenModal(model.ModalSend); err != nil {
		t.Fatalf("OpenModal() error = %v", err)
	}
	if m.State().UI.ActiveModal != model.ModalSend {
		t.Errorf("ActiveModal = %q, want send", m.State().UI.ActiveModal)
	}

	m.CloseModal()
	if m.State().UI.ActiveModal != model.ModalNone {
		t.Errorf("ActiveModal = %q, want none", m.State().UI.ActiveModal)
	}

	for _, bad := range []model.Modal{model.ModalNone, "settings"} {
		if err := m.OpenModal(bad); !errors.Is(err, ErrInvalidModal) {
			t.Errorf("OpenModal(%q) error = %v, want ErrInvalidModal", bad, err)
		}
	}
}

func TestMachine_SetTheme(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)

	if err := m.SetTheme(model.ThemeDark); err != nil {
		t.Fatalf("SetTheme() error = %v", err)
	}
	if m.State().UI.Theme != model.ThemeDark {
		t.Errorf("Theme = %q, want dark", m.State().UI.Theme)
	}
	if err := m.SetTheme("sepia"); !errors.Is(err, ErrInvalidTheme) {
		t.Errorf("SetTheme(sepia) error = %v, want ErrInvalidTheme", err)
	}
}

func TestMachine_AddTransaction_Validates(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)

	bad := model.Transaction{ID: "x", Type: model.TransactionReceived, Status: model.TransactionConfirmed}
	if err := m.AddTransaction(bad); err == nil {
		t.Error("expected validation error for confirmed tx without block height")
	}

	good := model.Transaction{ID: "y", Type: model.TransactionReceived, Amount: 1000, Status: model.TransactionPending}
	if err := m.AddTransaction(good); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if m.State().Transactions[0].ID != "y" {
		t.Error("transaction should be prepended")
	}
}

func TestMachine_StartLoadsDashboardAndStops(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)
	user := &model.User{ID: "1", Email: "demo@wallet.com", DepositAddress: mockdata.DemoAddress}

	m.Start(context.Background(), user)
	defer m.Stop()

	s := m.State()
	if !s.Profile.IsAuthenticated || s.Profile.Email != "demo@wallet.com" || s.Profile.Address != mockdata.DemoAddress {
		t.Errorf("Profile = %+v", s.Profile)
	}
	if len(s.Transactions) != 15 {
		t.Errorf("len(Transactions) = %d, want 15", len(s.Transactions))
	}

	waitFor(t, func() bool { return m.State().Balance.Confirmed == DemoConfirmed })

	m.Stop()
	if m.isRunning() {
		t.Error("isRunning() should be false after Stop")
	}
}

func TestMachine_DriftStaysWithinBounds(t *testing.T) {
	m := newTestMachine(nil, nil, time.Millisecond)
	m.rng = mockdata.NewSeeded(5)

	var violations []string
	samples := 0
	m.Subscribe(func(s State) {
		b := s.Balance
		if b.Confirmed == 0 {
			return
		}
		if b.Confirmed < driftFloor {
			violations = append(violations, "confirmed below floor")
		}
		if b.Unconfirmed < 0 || b.Unconfirmed >= maxDriftUnconfirmed {
			violations = append(violations, "unconfirmed out of range")
		}
		samples++
	})

	m.Start(context.Background(), &model.User{ID: "1"})
	waitFor(t, func() bool { return m.State().Balance.Confirmed != 0 })
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if samples < 2 {
		t.Fatalf("expected several drift samples, got %d", samples)
	}
	for _, v := range violations {
		t.Error(v)
	}
}

func TestMachine_NextDrift(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)
	m.rng = mockdata.NewSeeded(9)

	t.Run("直近の確定残高から±0.0005 BTC以内で動く", func(t *testing.T) {
		m.store.Dispatch(SetBalance{Balance: model.Balance{Confirmed: DemoConfirmed}})
		for i := 0; i < 200; i++ {
			b, ok, err := m.nextDrift(context.Background())
			if err != nil || !ok {
				t.Fatalf("nextDrift() = (%v, %v, %v)", b, ok, err)
			}
			if diff := b.Confirmed - DemoConfirmed; diff > driftSpan/2 || diff < -driftSpan/2 {
				t.Fatalf("Confirmed moved by %d", diff)
			}
			if b.Unconfirmed < 0 || b.Unconfirmed >= maxDriftUnconfirmed {
				t.Fatalf("Unconfirmed = %d out of range", b.Unconfirmed)
			}
		}
	})

	t.Run("下限を下回らない", func(t *testing.T) {
		m.store.Dispatch(SetBalance{Balance: model.Balance{Confirmed: 0}})
		for i := 0; i < 200; i++ {
			b, _, _ := m.nextDrift(context.Background())
			if b.Confirmed < driftFloor {
				t.Fatalf("Confirmed = %d, below floor", b.Confirmed)
			}
		}
	})
}

func TestMachine_StopWithoutStart(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)
	m.Stop()
}

func TestMachine_Reset(t *testing.T) {
	m := newTestMachine(nil, nil, time.Hour)
	m.Start(context.Background(), &model.User{ID: "1", Email: "a@b.c"})
	m.Stop()
	m.Reset()

	s := m.State()
	if s.Profile.Email != "" || len(s.Transactions) != 0 || s.Balance != (model.Balance{}) {
		t.Errorf("state not reset: %+v", s)
	}
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

// isRunning は背景処理が実行中かを返す。
func (m *Machine) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
