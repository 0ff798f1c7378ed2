// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証済みセッションのユーザーを表す。
// AuthStateが保持し、ログアウトで破棄される。
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DepositAddress   string    `json:"address"`
	CreatedAt        time.Time `json:"createdAt"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
}

// Profile はダッシュボードが表示するウォレット所有者の情報。
// WalletStateのSetUserアクションで部分的にマージされる。
type Profile struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Address         string `json:"address"`
	PublicKey       string `json:"publicKey"`
	Email           string `json:"email"`
}
