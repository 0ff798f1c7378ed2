package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/miniwallet/internal/metrics"
	"github.com/hitoshi/miniwallet/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authorizer        middleware.SessionAuthorizer
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler

	// 状態コンテナ
	Auth   AuthServiceInterface
	Wallet WalletServiceInterface
	Prices PriceReaderInterface
	Feed   FeedInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → BearerAuth → RateLimit(General)
//
// /health、/metrics、認証ルート（/auth/*）はBearer認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	walletHandler := NewWalletHandler(deps.Wallet, deps.Prices, deps.Logger)
	marketHandler := NewMarketHandler(deps.Prices, deps.Feed)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/state", authHandler.State)
		r.Post("/check", authHandler.Check)
		r.Post("/logout", authHandler.Logout)
		r.Delete("/error", authHandler.ClearError)
		r.Post("/validate", authHandler.Validate)

		// ログイン・登録はクライアント単位のレート制限を追加
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: BearerAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.Authorizer))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api", func(r chi.Router) {
			r.Get("/wallet", walletHandler.GetWallet)
			r.Post("/balance/refresh", walletHandler.RefreshBalance)

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", walletHandler.ListTransactions)
				r.Post("/refresh", walletHandler.RefreshTransactions)
				r.Get("/{id}", walletHandler.GetTransaction)
			})

			r.Put("/modal", walletHandler.OpenModal)
			r.Delete("/modal", walletHandler.CloseModal)
			r.Put("/theme", walletHandler.SetTheme)

			r.Post("/notifications", walletHandler.AddNotification)
			r.Delete("/notifications/{id}", walletHandler.DismissNotification)

			r.Get("/receive", walletHandler.Receive)
			r.Get("/price", marketHandler.GetPrice)
			r.Get("/feed", marketHandler.GetFeed)
			r.Post("/feed/send", marketHandler.SendFeed)
			r.Get("/stats", marketHandler.GetStats)
		})
	})

	return r
}
