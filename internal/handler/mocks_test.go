package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/hitoshi/miniwallet/internal/auth"
	"github.com/hitoshi/miniwallet/internal/livefeed"
	"github.com/hitoshi/miniwallet/internal/model"
	"github.com/hitoshi/miniwallet/internal/price"
	"github.com/hitoshi/miniwallet/internal/wallet"
)

// --- モック定義 ---

type mockAuthService struct {
	stateFn        func() auth.State
	loginFn        func(ctx context.Context, email, password string) error
	registerFn     func(ctx context.Context, email, password string) error
	logoutFn       func()
	clearErrorFn   func()
	checkFn        func(ctx context.Context)
	sessionTokenFn func(ctx context.Context) (string, error)
}

func (m *mockAuthService) State() auth.State {
	if m.stateFn != nil {
		return m.stateFn()
	}
	return auth.InitialState()
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) error {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) error {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return nil
}

func (m *mockAuthService) Logout() {
	if m.logoutFn != nil {
		m.logoutFn()
	}
}

func (m *mockAuthService) ClearError() {
	if m.clearErrorFn != nil {
		m.clearErrorFn()
	}
}

func (m *mockAuthService) CheckExistingSession(ctx context.Context) {
	if m.checkFn != nil {
		m.checkFn(ctx)
	}
}

func (m *mockAuthService) SessionToken(ctx context.Context) (string, error) {
	if m.sessionTokenFn != nil {
		return m.sessionTokenFn(ctx)
	}
	return "", nil
}

type mockWalletService struct {
	stateFn               func() wallet.State
	refreshBalanceFn      func(ctx context.Context) error
	refreshTransactionsFn func(ctx context.Context) error
	addNotificationFn     func(message string, severity model.Severity) (string, error)
	dismissFn             func(id string)
	openModalFn           func(modal model.Modal) error
	closeModalFn          func()
	setThemeFn            func(theme model.Theme) error
}

func (m *mockWalletService) State() wallet.State {
	if m.stateFn != nil {
		return m.stateFn()
	}
	return wallet.InitialState()
}

func (m *mockWalletService) RefreshBalance(ctx context.Context) error {
	if m.refreshBalanceFn != nil {
		return m.refreshBalanceFn(ctx)
	}
	return nil
}

func (m *mockWalletService) RefreshTransactions(ctx context.Context) error {
	if m.refreshTransactionsFn != nil {
		return m.refreshTransactionsFn(ctx)
	}
	return nil
}

func (m *mockWalletService) AddNotification(message string, severity model.Severity) (string, error) {
	if m.addNotificationFn != nil {
		return m.addNotificationFn(message, severity)
	}
	return "n1", nil
}

func (m *mockWalletService) DismissNotification(id string) {
	if m.dismissFn != nil {
		m.dismissFn(id)
	}
}

func (m *mockWalletService) OpenModal(modal model.Modal) error {
	if m.openModalFn != nil {
		return m.openModalFn(modal)
	}
	return nil
}

func (m *mockWalletService) CloseModal() {
	if m.closeModalFn != nil {
		m.closeModalFn()
	}
}

func (m *mockWalletService) SetTheme(theme model.Theme) error {
	if m.setThemeFn != nil {
		return m.setThemeFn(theme)
	}
	return nil
}

type mockPriceReader struct {
	state price.State
}

func (m *mockPriceReader) State() price.State { return m.state }

func fixedPrice(current float64) *mockPriceReader {
	return &mockPriceReader{state: price.State{Data: model.PriceData{Current: current}}}
}

type mockFeedReader struct {
	connected bool
	activity  []livefeed.Activity
	lastN     int
	sent      []any
}

func (m *mockFeedReader) Send(msg any) { m.sent = append(m.sent, msg) }

func (m *mockFeedReader) Connected() bool { return m.connected }

func (m *mockFeedReader) Activity(n int) []livefeed.Activity {
	m.lastN = n
	return m.activity
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
