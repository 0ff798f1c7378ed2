package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/miniwallet/internal/metrics"
	"github.com/hitoshi/miniwallet/internal/model"
	"github.com/hitoshi/miniwallet/internal/store"
	"github.com/hitoshi/miniwallet/internal/tokenstore"
)

// 画面に表示する認証エラーメッセージ
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgRegistrationFailed = "Registration failed"
	MsgSessionStoreFailed = "Unable to start session"
)

// Machine は認証状態コンテナと、それを更新する非同期操作をまとめる。
type Machine struct {
	store   *store.Store[State, Action]
	authn   Authenticator
	issuer  *TokenIssuer
	tokens  *tokenstore.Tokens
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewMachine はchecking状態のMachineを生成する。metricsはnilでもよい。
func NewMachine(
	authn Authenticator,
	issuer *TokenIssuer,
	tokens *tokenstore.Tokens,
	logger *slog.Logger,
	mc metrics.MetricsCollector,
) *Machine {
	return &Machine{
		store:   store.New(InitialState(), Reduce),
		authn:   authn,
		issuer:  issuer,
		tokens:  tokens,
		logger:  logger,
		metrics: mc,
		now:     time.Now,
	}
}

// State は現在の認証状態を返す。
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
		m.metrics.RecordAction("auth", a.Name())
	}
	return s
}

// Login はデモ資格情報でログインする。
// 失敗時はStateのErrorに表示用メッセージを設定し、ErrInvalidCredentialsを返す。
// ctxがキャンセルされた場合はエラーを設定せずctx.Err()を返す。
func (m *Machine) Login(ctx context.Context, email, password string) error {
	return m.attempt(ctx, "login", MsgInvalidCredentials, func(ctx context.Context) (*model.User, error) {
		return m.authn.Login(ctx, email, password)
	})
}

// Register は新しいアカウントを作成してログインする。
// 必須項目が欠けている場合はErrorを設定し、ErrRegistrationFailedを返す。
func (m *Machine) Register(ctx context.Context, email, password string) error {
	return m.attempt(ctx, "register", MsgRegistrationFailed, func(ctx context.Context) (*model.User, error) {
		return m.authn.Register(ctx, email, password)
	})
}

func (m *Machine) attempt(
	ctx context.Context,
	op string,
	failureMsg string,
	call func(ctx context.Context) (*model.User, error),
) error {
	m.dispatch(SetLoading{Loading: true})
	m.dispatch(ClearError{})
	defer m.dispatch(SetLoading{Loading: false})

	user, err := call(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			m.record(op, "canceled")
			return err
		}
		m.record(op, "failure")
		m.logger.Info("auth attempt rejected",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		m.dispatch(SetError{Message: failureMsg})
		return err
	}

	token, err := m.issuer.Issue(user)
	if err == nil {
		err = m.tokens.SetAuthTokens(ctx, token, "")
	}
	if err != nil {
		m.record(op, "error")
		m.logger.Error("failed to persist session token",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		m.dispatch(SetError{Message: MsgSessionStoreFailed})
		return err
	}

	m.record(op, "success")
	m.logger.Info("user authenticated",
		slog.String("op", op),
		slog.String("user_id", user.ID),
	)
	m.dispatch(SetUser{User: user})
	return nil
}

func (m *Machine) record(op, result string) {
	if m.metrics != nil {
		m.metrics.RecordAuthAttempt(op, result)
	}
}

// Logout は保存済みトークンを削除し、未認証状態に戻す。
func (m *Machine) Logout() {
	if err := m.tokens.RemoveAuthTokens(context.Background()); err != nil {
		m.logger.Error("failed to remove auth tokens", slog.String("error", err.Error()))
	}
	m.dispatch(Logout{})
}

// ClearError はエラーのみを消す。
func (m *Machine) ClearError() {
	m.dispatch(ClearError{})
}

// CheckExistingSession は保存済みトークンからセッションを復元する。
// トークンがない、読めない、期限切れ、署名不正のいずれの場合も未認証として扱い、
// 該当トークンを削除する。エラーは返さずログにのみ残す。
func (m *Machine) CheckExistingSession(ctx context.Context) {
	defer m.dispatch(SetLoading{Loading: false})

	token, err := m.tokens.AuthToken(ctx)
	if err != nil {
		m.logger.Warn("failed to read stored session", slog.String("error", err.Error()))
		m.discardTokens(ctx)
		return
	}
	if token == "" {
		return
	}

	if IsTokenExpired(token, m.now()) {
		m.logger.Info("stored session expired")
		m.discardTokens(ctx)
		return
	}

	claims, err := m.issuer.Parse(token)
	if err != nil {
		m.logger.Warn("stored session rejected", slog.String("error", err.Error()))
		m.discardTokens(ctx)
		return
	}

	m.dispatch(SetUser{User: claims.User()})
}

func (m *Machine) discardTokens(ctx context.Context) {
	if err := m.tokens.RemoveAuthTokens(ctx); err != nil {
		m.logger.Error("failed to remove auth tokens", slog.String("error", err.Error()))
	}
}

// ErrNotAuthenticated は現在のセッションに一致しないトークンを表す。
var ErrNotAuthenticated = errors.New("not authenticated")

// SessionToken は現在のセッショントークンを返す。未認証なら空文字を返す。
func (m *Machine) SessionToken(ctx context.Context) (string, error) {
	if m.State().User == nil {
		return "", nil
	}
	return m.tokens.AuthToken(ctx)
}

// Authorize はリクエストのトークンが現在のセッションのものかを確かめ、ユーザーを返す。
// 署名と期限が正しくても、ログアウト済みや別セッションのトークンは拒否する。
func (m *Machine) Authorize(ctx context.Context, raw string) (*model.User, error) {
	user := m.State().User
	if user == nil || raw == "" {
		return nil, ErrNotAuthenticated
	}

	stored, err := m.tokens.AuthToken(ctx)
	if err != nil {
		return nil, err
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(raw)) != 1 {
		return nil, ErrNotAuthenticated
	}

	claims, err := m.issuer.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if claims.UserID != user.ID {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}
