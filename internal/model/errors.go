package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, wallet, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeRegistrationFailed  = "REGISTRATION_FAILED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidModal        = "INVALID_MODAL"
	ErrCodeInvalidSeverity     = "INVALID_SEVERITY"
	ErrCodeInvalidTheme        = "INVALID_THEME"
	ErrCodeInvalidFilter       = "INVALID_FILTER"
	ErrCodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	ErrCodeNoDepositAddress    = "NO_DEPOSIT_ADDRESS"
	ErrCodeWalletFetchFailed   = "WALLET_FETCH_FAILED"
)

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  message,
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewRegistrationFailedError は登録失敗エラーを生成する。
func NewRegistrationFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeRegistrationFailed,
		Message:  message,
		Category: "auth",
		Action:   "Fill in both email and password.",
	}
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewValidationFailedError はフィールド検証エラーを生成する。
func NewValidationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "One or more fields are invalid.",
		Category: "validation",
		Action:   "Fix the highlighted fields and submit again.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewInvalidModalError は未知のモーダル指定エラーを生成する。
func NewInvalidModalError(modal string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidModal,
		Message:  fmt.Sprintf("Unknown modal: %s", modal),
		Category: "validation",
		Action:   "Use send, receive or an empty value.",
	}
}

// NewInvalidSeverityError は未知の通知重要度エラーを生成する。
func NewInvalidSeverityError(severity string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSeverity,
		Message:  fmt.Sprintf("Unknown notification type: %s", severity),
		Category: "validation",
		Action:   "Use info, success, warning or error.",
	}
}

// NewInvalidThemeError は未知のテーマ指定エラーを生成する。
func NewInvalidThemeError(theme string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTheme,
		Message:  fmt.Sprintf("Unknown theme: %s", theme),
		Category: "validation",
		Action:   "Use light or dark.",
	}
}

// NewInvalidFilterError は未知のトランザクション絞り込み指定エラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("Unknown transaction filter: %s", filter),
		Category: "validation",
		Action:   "Use all, sent, received or pending.",
	}
}

// NewTransactionNotFoundError はトランザクション未検出エラーを生成する。
func NewTransactionNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTransactionNotFound,
		Message:  fmt.Sprintf("Transaction not found: %s", id),
		Category: "wallet",
		Action:   "Refresh the transaction list.",
	}
}

// NewNoDepositAddressError は入金アドレス未設定エラーを生成する。
func NewNoDepositAddressError() *APIError {
	return &APIError{
		Code:     ErrCodeNoDepositAddress,
		Message:  "The wallet has no deposit address yet.",
		Category: "wallet",
		Action:   "Wait for the wallet to finish loading.",
	}
}

// NewWalletFetchFailedError はウォレットデータ取得失敗エラーを生成する。
func NewWalletFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeWalletFetchFailed,
		Message:  fmt.Sprintf("Failed to load wallet data: %s", reason),
		Category: "wallet",
		Action:   "Try again in a moment.",
	}
}
