package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/miniwallet/internal/apiclient"
	"github.com/hitoshi/miniwallet/internal/auth"
	"github.com/hitoshi/miniwallet/internal/config"
	"github.com/hitoshi/miniwallet/internal/database"
	"github.com/hitoshi/miniwallet/internal/gate"
	"github.com/hitoshi/miniwallet/internal/handler"
	"github.com/hitoshi/miniwallet/internal/livefeed"
	"github.com/hitoshi/miniwallet/internal/metrics"
	"github.com/hitoshi/miniwallet/internal/middleware"
	"github.com/hitoshi/miniwallet/internal/mockdata"
	"github.com/hitoshi/miniwallet/internal/price"
	"github.com/hitoshi/miniwallet/internal/security"
	"github.com/hitoshi/miniwallet/internal/tokenstore"
	"github.com/hitoshi/miniwallet/internal/wallet"
	"github.com/hitoshi/miniwallet/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// initialTransactionCount はダッシュボード初期表示で生成するトランザクション件数。
	initialTransactionCount = 15
	// simulatedPriceDelay は模擬価格取得の遅延。
	simulatedPriceDelay = 500 * time.Millisecond
	// storePingTimeout はRedis接続確認のタイムアウト。
	storePingTimeout = 5 * time.Second
	// tokenCleanupInterval はPostgreSQLトークンストアの期限切れ行を削除する間隔。
	tokenCleanupInterval = time.Hour
)

// Application はサーバーを構成する状態コンテナとHTTPハンドラーを保持する。
type Application struct {
	Auth    *auth.Machine
	Wallet  *wallet.Machine
	Feed    *livefeed.Feed
	Prices  *price.Tracker
	Gate    *gate.Gate
	Handler http.Handler

	rateLimiter  *middleware.RateLimiter
	tokenCleanup *cleanup.CleanupJob
	closers      []func() error
}

// tokenStore はTOKEN_STOREに応じて開いたストアと、その後始末をまとめる。
type tokenStore struct {
	store tokenstore.Store
	db    *sql.DB // postgresの場合のみ
	close func() error
}

// New は設定から全依存関係をワイヤリングしてApplicationを生成する。
// 背景処理はまだ動かさない。開始はRunで行う。
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	a := &Application{}

	// 1. トークンストア
	ts, err := openTokenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ts.close)
	tokens := tokenstore.NewTokens(ts.store)
	if ts.db != nil {
		a.tokenCleanup = cleanup.NewCleanupJob(ts.db, time.Duration(cfg.SessionMaxAge)*time.Second, logger)
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(reg)

	// 3. 外部通信の制限
	guard := security.NewOutboundGuard()

	// 4. 認証
	authn, err := auth.NewSimulatedAuthenticator(auth.SimulatedConfig{
		LoginDelay:    cfg.LoginDelay,
		RegisterDelay: cfg.RegisterDelay,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	issuer := auth.NewTokenIssuer(cfg.SessionSecret, time.Duration(cfg.SessionMaxAge)*time.Second)
	a.Auth = auth.NewMachine(authn, issuer, tokens, logger, mc)

	// 5. ウォレット（WALLET_API_URLがあればリモートAPIから取得）
	balances, txs, err := walletSources(cfg, guard, tokens, a.Auth, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Wallet = wallet.NewMachine(balances, txs, security.NewTextSanitizer(), wallet.Config{
		DriftInterval:       cfg.DriftInterval,
		InitialTransactions: initialTransactionCount,
	}, logger, mc)

	// 6. ライブフィードと価格
	a.Feed = livefeed.New(livefeed.Config{
		BalanceInterval:     cfg.FeedBalanceInterval,
		ConfirmInterval:     cfg.FeedConfirmInterval,
		TransactionInterval: cfg.FeedTxInterval,
	}, logger, mc)

	provider, err := priceProvider(cfg, guard, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Prices = price.NewTracker(provider, cfg.PriceInterval, logger, mc)

	// 7. 認証状態とダッシュボードの連動
	a.Gate = gate.New(a.Auth, a.Wallet, a.Feed, a.Prices, logger)

	// 8. ルーター
	a.rateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitAuth))
	a.Handler = handler.NewRouter(&handler.RouterDeps{
		Authorizer:        a.Auth,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       a.rateLimiter,
		Logger:            logger,
		Metrics:           mc,
		MetricsHandler:    metrics.Handler(reg),
		Auth:              a.Auth,
		Wallet:            a.Wallet,
		Prices:            a.Prices,
		Feed:              a.Feed,
	})

	return a, nil
}

// Run は保存済みセッションを復元し、ctxが終了するまで認証状態に合わせて
// ダッシュボードの構成要素を開始・停止する。
// PostgreSQLトークンストアでは期限切れトークンの定期削除も行う。
func (a *Application) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if a.tokenCleanup != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.tokenCleanup.Start(ctx, tokenCleanupInterval)
		}()
	}

	a.Auth.CheckExistingSession(ctx)
	a.Gate.Run(ctx)
	wg.Wait()
}

// Close はレート制限のクリーンアップを止め、ストアの接続を閉じる。
func (a *Application) Close() error {
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}

	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openTokenStore はTOKEN_STOREに応じたトークンストアを開く。
func openTokenStore(ctx context.Context, cfg *config.Config) (*tokenStore, error) {
	switch cfg.TokenStore {
	case config.TokenStorePostgres:
		db, err := database.OpenAndPing(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		version, err := database.SchemaVersion(cfg.DatabaseURL)
		if err == nil && version == 0 {
			err = errors.New("token store schema is not migrated; run the migrate command first")
		}
		if err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("token store: postgres", slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)))
		return &tokenStore{
			store: tokenstore.NewPostgresStore(db, cfg.AppOrigin),
			db:    db,
			close: db.Close,
		}, nil

	case config.TokenStoreRedis:
		client, err := tokenstore.Connect(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, storePingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("token store: redis")
		return &tokenStore{
			store: tokenstore.NewRedisStore(client, cfg.AppOrigin),
			close: client.Close,
		}, nil

	default:
		slog.Info("token store: memory")
		return &tokenStore{
			store: tokenstore.NewMemoryStore(),
			close: func() error { return nil },
		}, nil
	}
}

func walletSources(
	cfg *config.Config,
	guard security.OutboundGuard,
	tokens *tokenstore.Tokens,
	authMachine *auth.Machine,
	logger *slog.Logger,
) (wallet.BalanceSource, wallet.TransactionSource, error) {
	if cfg.WalletAPIURL == "" {
		return wallet.SimulatedBalanceSource{Delay: cfg.BalanceDelay},
			wallet.SimulatedTransactionSource{
				Delay: cfg.TransactionsDelay,
				Count: initialTransactionCount,
				Rand:  mockdata.Default,
			}, nil
	}

	if err := guard.ValidateURL(cfg.WalletAPIURL); err != nil {
		return nil, nil, fmt.Errorf("invalid WALLET_API_URL: %w", err)
	}
	client, err := apiclient.New(
		guard.Client(cfg.PriceTimeout),
		cfg.WalletAPIURL,
		tokens,
		logger,
		apiclient.WithUnauthorizedHook(authMachine.Logout),
	)
	if err != nil {
		return nil, nil, err
	}
	remote := wallet.NewRemoteSource(client)
	return remote, remote, nil
}

func priceProvider(cfg *config.Config, guard security.OutboundGuard, logger *slog.Logger) (price.Provider, error) {
	if cfg.PriceSource != config.PriceSourceCoinGecko {
		return price.NewSimulated(simulatedPriceDelay, mockdata.Default), nil
	}

	if err := guard.ValidateURL(cfg.PriceAPIURL); err != nil {
		return nil, fmt.Errorf("invalid PRICE_API_URL: %w", err)
	}
	return price.NewCoinGecko(guard.Client(cfg.PriceTimeout), cfg.PriceAPIURL, logger), nil
}
