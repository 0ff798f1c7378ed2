package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"github.com/hitoshi/miniwallet/internal/metrics"
	"github.com/hitoshi/miniwallet/internal/mockdata"
	"github.com/hitoshi/miniwallet/internal/model"
	"github.com/hitoshi/miniwallet/internal/security"
	"github.com/hitoshi/miniwallet/internal/source"
	"github.com/hitoshi/miniwallet/internal/store"
)

// ウォレット操作のエラー
var (
	ErrInvalidModal    = errors.New("invalid modal")
	ErrInvalidSeverity = errors.New("invalid notification severity")
	ErrInvalidTheme    = errors.New("invalid theme")
	ErrEmptyMessage    = errors.New("notification message is empty")
)

// 残高変動の範囲（satoshi）
const (
	driftFloor          btcutil.Amount = 100000 // 0.001 BTC
	driftSpan                          = 100000 // 幅0.001 BTC、中心0
	maxDriftUnconfirmed btcutil.Amount = 500000 // 0.005 BTC（含まない）
)

// Config はMachineの設定。
type Config struct {
	DriftInterval       time.Duration
	InitialTransactions int
}

// Machine はウォレット状態コンテナと、それを更新する操作・背景処理をまとめる。
type Machine struct {
	store     *store.Store[State, Action]
	balances  BalanceSource
	txs       TransactionSource
	sanitizer security.TextSanitizer
	cfg       Config
	rng       mockdata.Rand
	logger    *slog.Logger
	metrics   metrics.MetricsCollector

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	drift   *source.Periodic[model.Balance]
	running bool
}

// NewMachine はMachineを生成する。metricsはnilでもよい。
func NewMachine(
	balances BalanceSource,
	txs TransactionSource,
	sanitizer security.TextSanitizer,
	cfg Config,
	logger *slog.Logger,
	mc metrics.MetricsCollector,
) *Machine {
	m := &Machine{
		store:     store.New(InitialState(), Reduce),
		balances:  balances,
		txs:       txs,
		sanitizer: sanitizer,
		cfg:       cfg,
		rng:       mockdata.Default,
		logger:    logger,
		metrics:   mc,
	}
	m.drift = source.NewPeriodic("balance_drift", cfg.DriftInterval, m.nextDrift, logger)
	return m
}

// State は現在のウォレット状態を返す。
func (m *Machine) State() State {
	return m.store.State()
}

// Subscribe は状態遷移ごとに呼ばれるリスナーを登録する。
func (m *Machine) Subscribe(fn func(State)) (unsubscribe func()) {
	return m.store.Subscribe(func(s State, _ Action) { fn(s) })
}

func (m *Machine) dispatch(a Action) State {
	s := m.store.Dispatch(a)
	if m.metrics != nil {
		m.metrics.RecordAction("wallet", a.Name())
		if _, ok := a.(SetBalance); ok {
			m.metrics.SetBalance(s.Balance.Confirmed, s.Balance.Unconfirmed)
		}
	}
	return s
}

// RefreshBalance は残高を取得して反映する。
// 取得に失敗した場合はErrorに理由を設定し、成功すればErrorを消す。
func (m *Machine) RefreshBalance(ctx context.Context) error {
	m.dispatch(SetLoading{Loading: true})
	defer m.dispatch(SetLoading{Loading: false})

	b, err := m.balances.FetchBalance(ctx)
	if err != nil {
		m.fail("balance", err)
		return fmt.Errorf("failed to fetch balance: %w", err)
	}

	m.dispatch(SetBalance{Balance: b})
	m.dispatch(SetError{})
	return nil
}

// RefreshTransactions はトランザクション一覧を取得し、丸ごと置き換える。
func (m *Machine) RefreshTransactions(ctx context.Context) error {
	txs, err := m.txs.FetchTransactions(ctx)
	if err != nil {
		m.fail("transactions", err)
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}

	m.dispatch(SetTransactions{Transactions: txs})
	m.dispatch(SetError{})
	return nil
}

func (m *Machine) fail(what string, err error) {
	// キャンセルは利用者の操作なので画面には出さない
	if errors.Is(err, context.Canceled) {
		return
	}
	m.logger.Warn("wallet fetch failed",
		slog.String("target", what),
		slog.String("error", err.Error()),
	)
	m.dispatch(SetError{Message: err.Error()})
}

// AddTransaction は検証済みのトランザクションを一覧の先頭に追加する。
func (m *Machine) AddTransaction(tx model.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	m.dispatch(AddTransaction{Transaction: tx})
	return nil
}

// AddNotification は通知を追加し、そのIDを返す。重要度が空ならinfoになる。
func (m *Machine) AddNotification(message string, severity model.Severity) (string, error) {
	if severity == "" {
		severity = model.SeverityInfo
	}
	if !severity.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, severity)
	}

	clean := m.sanitizer.SanitizeText(message)
	if clean == "" {
		return "", ErrEmptyMessage
	}

	id := uuid.New().String()
	m.dispatch(AddNotification{Notification: model.Notification{
		ID:       id,
		Message:  clean,
		Severity: severity,
	}})
	return id, nil
}

// DismissNotification は通知を取り除く。存在しないIDは無視する。
func (m *Machine) DismissNotification(id string) {
	m.dispatch(RemoveNotification{ID: id})
}

// OpenModal は送金または受取のモーダルを開く。
func (m *Machine) OpenModal(modal model.Modal) error {
	if modal == model.ModalNone || !modal.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidModal, modal)
	}
	m.dispatch(SetModal{Modal: modal})
	return nil
}

// CloseModal はモーダルを閉じる。
func (m *Machine) CloseModal() {
	m.dispatch(SetModal{Modal: model.ModalNone})
}

// SetTheme は画面テーマを切り替える。
func (m *Machine) SetTheme(theme model.Theme) error {
	if theme != model.ThemeLight && theme != model.ThemeDark {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	m.dispatch(SetTheme{Theme: theme})
	return nil
}

// SetProfile は認証ユーザーの情報をプロフィールに反映する。
func (m *Machine) SetProfile(user *model.User) {
	if user == nil {
		m.dispatch(SetUser{Profile: model.Profile{IsAuthenticated: false}})
		return
	}
	m.dispatch(SetUser{Profile: model.Profile{
		IsAuthenticated: true,
		Address:         user.DepositAddress,
		Email:           user.Email,
	}})
}

// Start はダッシュボードの初期データを読み込み、残高の定期変動を開始する。
// プロフィールと模擬トランザクションは即座に反映し、残高は非同期で取得する。
// 実行中に呼んだ場合は何もしない。Subscribeのリスナーから呼んではならない。
func (m *Machine) Start(ctx context.Context, user *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.SetProfile(user)
	m.dispatch(SetTransactions{
		Transactions: mockdata.GenerateTransactions(m.rng, m.cfg.InitialTransactions, time.Now()),
	})

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		if err := m.RefreshBalance(ctx); err != nil {
			m.logger.Debug("initial balance load ended", slog.String("error", err.Error()))
		}
	}()

	ch := m.drift.Start(ctx)
	go func() {
		defer m.wg.Done()
		for b := range ch {
			m.dispatch(SetBalance{Balance: b})
		}
	}()

	m.logger.Info("wallet started", slog.Duration("drift_interval", m.cfg.DriftInterval))
}

// Stop は背景処理を止め、終了を待つ。未開始なら何もしない。
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.cancel()
	m.drift.Stop()
	m.wg.Wait()
	m.running = false

	m.logger.Info("wallet stopped")
}

// Reset は状態を初期状態に戻す。Stopの後に呼ぶ。
func (m *Machine) Reset() {
	m.dispatch(Reset{})
}

// nextDrift は直近の確定残高を±0.0005 BTCの範囲で揺らした残高を作る。
// 確定残高は0.001 BTCを下回らず、未確定残高は[0, 0.005) BTCから選ぶ。
func (m *Machine) nextDrift(context.Context) (model.Balance, bool, error) {
	last := m.store.State().Balance.Confirmed
	change := btcutil.Amount(math.Round((m.rng.Float64() - 0.5) * driftSpan))

	confirmed := max(last+change, driftFloor)
	unconfirmed := min(
		btcutil.Amount(m.rng.Float64()*float64(maxDriftUnconfirmed)),
		maxDriftUnconfirmed-1,
	)

	return model.Balance{Confirmed: confirmed, Unconfirmed: unconfirmed}, true, nil
}
