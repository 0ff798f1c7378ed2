// Package gate は認証状態に応じてダッシュボードの構成要素を開始・停止する。
// 認証済みになればウォレット・ライブフィード・価格を開始し、未認証に戻れば止めて状態を破棄する。
package gate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/miniwallet/internal/auth"
	"github.com/hitoshi/miniwallet/internal/livefeed"
	"github.com/hitoshi/miniwallet/internal/model"
)

// AuthSource は認証状態の読み取りと購読を提供する。
type AuthSource interface {
	State() auth.State
	Subscribe(fn func(auth.State)) (unsubscribe func())
}

// Wallet はゲートが操作するウォレットの操作。
type Wallet interface {
	Start(ctx context.Context, user *model.User)
	Stop()
	Reset()
	AddTransaction(tx model.Transaction) error
}

// Feed はゲートが操作するライブフィードの操作。
type Feed interface {
	Start(ctx context.Context)
	Stop()
	Subscribe(fn func(livefeed.Message)) (unsubscribe func())
}

// Runner は開始・停止だけを持つ背景処理。
type Runner interface {
	Start(ctx context.Context)
	Stop()
}

// Gate は認証状態とダッシュボードの構成要素をつなぐ。
type Gate struct {
	auth   AuthSource
	wallet Wallet
	feed   Feed
	price  Runner
	logger *slog.Logger

	mu     sync.Mutex
	active bool
	userID string
}

// New はGateを生成する。
func New(authSource AuthSource, wallet Wallet, feed Feed, price Runner, logger *slog.Logger) *Gate {
	return &Gate{
		auth:   authSource,
		wallet: wallet,
		feed:   feed,
		price:  price,
		logger: logger,
	}
}

// Active はダッシュボードの構成要素が動いているかを返す。
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Run はctxが終了するまで認証状態を監視する。終了時にはすべて停止する。
// 認証状態のリスナーでは通知だけを行い、開始・停止はこのgoroutineで行う。
func (g *Gate) Run(ctx context.Context) {
	wake := make(chan struct{}, 1)
	unsubscribeAuth := g.auth.Subscribe(func(auth.State) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribeAuth()

	unsubscribeFeed := g.feed.Subscribe(g.forward)
	defer unsubscribeFeed()

	g.sync(ctx)
	for {
		select {
		case <-ctx.Done():
			g.deactivate()
			return
		case <-wake:
			g.sync(ctx)
		}
	}
}

func (g *Gate) sync(ctx context.Context) {
	s := g.auth.State()

	g.mu.Lock()
	active, userID := g.active, g.userID
	g.mu.Unlock()

	switch {
	case s.User != nil && !active:
		g.activate(ctx, s.User)
	case s.User != nil && s.User.ID != userID:
		g.deactivate()
		g.activate(ctx, s.User)
	case s.User == nil && active:
		g.deactivate()
	}
}

func (g *Gate) activate(ctx context.Context, user *model.User) {
	g.wallet.Start(ctx, user)
	g.feed.Start(ctx)
	g.price.Start(ctx)

	g.mu.Lock()
	g.active = true
	g.userID = user.ID
	g.mu.Unlock()

	g.logger.Info("dashboard activated", slog.String("user_id", user.ID))
}

func (g *Gate) deactivate() {
	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return
	}
	g.active = false
	g.userID = ""
	g.mu.Unlock()

	g.price.Stop()
	g.feed.Stop()
	g.wallet.Stop()
	g.wallet.Reset()

	g.logger.Info("dashboard deactivated")
}

// forward は新規トランザクションのイベントをウォレットの一覧に未承認として追加する。
func (g *Gate) forward(m livefeed.Message) {
	tx, ok := m.PendingTransaction()
	if !ok {
		return
	}
	if err := g.wallet.AddTransaction(tx); err != nil {
		g.logger.Warn("failed to add feed transaction",
			slog.String("tx_id", tx.ID),
			slog.String("error", err.Error()),
		)
	}
}
