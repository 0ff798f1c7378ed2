// Package tokenstore はオリジン単位のキーバリューストアにトークン文字列を保持する。
// 保持するのはアクセストークンと任意のリフレッシュトークンの2キーのみ。
package tokenstore

import (
	"context"
	"fmt"
)

// 永続化キー
const (
	KeyAuthToken    = "bitcoin_wallet_token"
	KeyRefreshToken = "bitcoin_wallet_refresh_token"
)

// Store はオリジンにスコープされた文字列キーバリューストアのインターフェース。
// 未設定のキーはok=falseで返す。
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Tokens は認証トークンの読み書きを行うヘルパー。
type Tokens struct {
	store Store
}

// NewTokens はTokensを生成する。
func NewTokens(store Store) *Tokens {
	return &Tokens{store: store}
}

// SetAuthTokens はアクセストークンを保存する。refreshが空でなければリフレッシュトークンも保存する。
func (t *Tokens) SetAuthTokens(ctx context.Context, token, refresh string) error {
	if err := t.store.Set(ctx, KeyAuthToken, token); err != nil {
		return fmt.Errorf("failed to store auth token: %w", err)
	}
	if refresh != "" {
		if err := t.store.Set(ctx, KeyRefreshToken, refresh); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	}
	return nil
}

// AuthToken は保存済みのアクセストークンを返す。未設定の場合は空文字を返す。
func (t *Tokens) AuthToken(ctx context.Context) (string, error) {
	v, _, err := t.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", fmt.Errorf("failed to read auth token: %w", err)
	}
	return v, nil
}

// RemoveAuthTokens は両方のトークンを削除する。
// 片方の削除に失敗しても、もう片方の削除は試みる。
func (t *Tokens) RemoveAuthTokens(ctx context.Context) error {
	errAuth := t.store.Delete(ctx, KeyAuthToken)
	errRefresh := t.store.Delete(ctx, KeyRefreshToken)
	if errAuth != nil {
		return fmt.Errorf("failed to remove auth token: %w", errAuth)
	}
	if errRefresh != nil {
		return fmt.Errorf("failed to remove refresh token: %w", errRefresh)
	}
	return nil
}
