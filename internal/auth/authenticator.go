package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/miniwallet/internal/mockdata"
	"github.com/hitoshi/miniwallet/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// デモアカウントの資格情報
const (
	DemoEmail    = "demo@wallet.com"
	DemoPassword = "Password123!"
	DemoUserID   = "1"
)

// 認証エラー
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRegistrationFailed = errors.New("registration failed")
)

// Authenticator は資格情報を検証し、ユーザーを返す。
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Register(ctx context.Context, email, password string) (*model.User, error)
}

// SimulatedConfig は模擬認証の設定。
type SimulatedConfig struct {
	LoginDelay    time.Duration
	RegisterDelay time.Duration
	BcryptCost    int // 0以下ならbcrypt.DefaultCost
}

// SimulatedAuthenticator は固定のデモアカウントだけを受け付ける模擬認証。
// 登録は必須項目が揃っていれば常に成功する。
type SimulatedAuthenticator struct {
	cfg      SimulatedConfig
	demoHash []byte
	rng      mockdata.Rand
	now      func() time.Time
}

// NewSimulatedAuthenticator はデモパスワードのハッシュを作成してSimulatedAuthenticatorを生成する。
func NewSimulatedAuthenticator(cfg SimulatedConfig) (*SimulatedAuthenticator, error) {
	cost := cfg.BcryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}

	return &SimulatedAuthenticator{
		cfg:      cfg,
		demoHash: hash,
		rng:      mockdata.Default,
		now:      time.Now,
	}, nil
}

// Login は遅延の後、デモアカウントの資格情報と一致すればユーザーを返す。
func (a *SimulatedAuthenticator) Login(ctx context.Context, email, password string) (*model.User, error) {
	if err := sleep(ctx, a.cfg.LoginDelay); err != nil {
		return nil, err
	}

	if email != DemoEmail {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.demoHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &model.User{
		ID:             DemoUserID,
		Email:          DemoEmail,
		DepositAddress: mockdata.DemoAddress,
		CreatedAt:      a.now().UTC(),
	}, nil
}

// Register は遅延の後、新しいIDとtestnetアドレスを持つユーザーを返す。
// 空でなければ内容は問わず、メールアドレスも送られたまま保持する。
func (a *SimulatedAuthenticator) Register(ctx context.Context, email, password string) (*model.User, error) {
	if err := sleep(ctx, a.cfg.RegisterDelay); err != nil {
		return nil, err
	}

	if email == "" || password == "" {
		return nil, ErrRegistrationFailed
	}

	return &model.User{
		ID:             uuid.New().String(),
		Email:          email,
		DepositAddress: mockdata.RandomTestnetAddress(a.rng),
		CreatedAt:      a.now().UTC(),
	}, nil
}

// sleep はdだけ待つ。コンテキストがキャンセルされた場合はその時点でエラーを返す。
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
