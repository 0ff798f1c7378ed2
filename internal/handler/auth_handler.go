package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/miniwallet/internal/auth"
	"github.com/hitoshi/miniwallet/internal/middleware"
	"github.com/hitoshi/miniwallet/internal/model"
	"github.com/hitoshi/miniwallet/internal/validation"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
// auth.Machineがこれを満たす。
type AuthServiceInterface interface {
	State() auth.State
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, password string) error
	Logout()
	ClearError()
	CheckExistingSession(ctx context.Context)
	SessionToken(ctx context.Context) (string, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// authStateResponse は認証状態のAPIレスポンス。
type authStateResponse struct {
	Phase           auth.Phase  `json:"phase"`
	View            auth.View   `json:"view"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	User            *model.User `json:"user"`
	IsLoading       bool        `json:"isLoading"`
	Error           string      `json:"error,omitempty"`
}

func newAuthStateResponse(s auth.State) authStateResponse {
	return authStateResponse{
		Phase:           s.Phase(),
		View:            s.View(),
		IsAuthenticated: s.IsAuthenticated(),
		User:            s.User,
		IsLoading:       s.IsLoading,
		Error:           s.Error,
	}
}

// sessionResponse はログイン・登録成功時のレスポンス。
type sessionResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
}

// credentialsRequest はログイン・登録リクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// validateRequest はフォーム検証リクエストのボディ。
type validateRequest struct {
	Form            string `json:"form"` // login | register
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// validateResponse はフォーム検証の結果。
type validateResponse struct {
	Valid    bool                `json:"valid"`
	Errors   validation.Errors   `json:"errors"`
	Strength validation.Strength `json:"strength"`
}

// State は現在の認証状態を返す。
// GET /auth/state
func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newAuthStateResponse(h.service.State()))
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAttemptError(w, r, err)
		return
	}

	h.writeSession(w, r, http.StatusOK)
}

// Register は新しいアカウントを作成してログインする。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAttemptError(w, r, err)
		return
	}

	h.writeSession(w, r, http.StatusCreated)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, status int) {
	token, err := h.service.SessionToken(r.Context())
	if err != nil {
		h.logger.Error("failed to read session token", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	resp := sessionResponse{
		User:  h.service.State().User,
		Token: token,
	}
	if exp, ok := auth.TokenExpiry(token); ok {
		resp.ExpiresAt = &exp
	}
	writeJSON(w, status, resp)
}

func (h *AuthHandler) writeAttemptError(w http.ResponseWriter, r *http.Request, err error) {
	msg := h.service.State().Error
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError(msg))
	case errors.Is(err, auth.ErrRegistrationFailed):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRegistrationFailedError(msg))
	case r.Context().Err() != nil:
		// クライアントが切断済みのため応答しない
		h.logger.Info("auth request canceled", slog.String("path", r.URL.Path))
	default:
		h.logger.Error("auth attempt failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// Logout は保存済みトークンを削除して未認証状態に戻す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// Check は保存済みトークンからセッションを復元し、結果の状態を返す。
// POST /auth/check
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	h.service.CheckExistingSession(r.Context())
	writeJSON(w, http.StatusOK, newAuthStateResponse(h.service.State()))
}

// ClearError は認証エラーの表示を消す。
// DELETE /auth/error
func (h *AuthHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.service.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

// Validate はログイン・登録フォームのフィールドを検証する。
// 認証状態のエラーには書き込まない。
// POST /auth/validate
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var errs validation.Errors
	switch req.Form {
	case "login":
		errs = validation.LoginForm(req.Email, req.Password)
	case "register", "":
		errs = validation.RegisterForm(req.Email, req.Password, req.ConfirmPassword)
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("form must be login or register"))
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Strength: validation.PasswordStrength(req.Password),
	})
}
