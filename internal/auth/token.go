package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/miniwallet/internal/model"
)

// Claims はセッショントークンに含めるクレーム。
// セッション確認時はこの内容からユーザーを復元する。
type Claims struct {
	UserID           string           `json:"user_id"`
	Email            string           `json:"email"`
	Address          string           `json:"address"`
	CreatedAt        *jwt.NumericDate `json:"created_at,omitempty"`
	TwoFactorEnabled bool             `json:"two_factor_enabled,omitempty"`
	jwt.RegisteredClaims
}

// User はクレームからユーザーを復元する。
func (c *Claims) User() *model.User {
	u := &model.User{
		ID:               c.UserID,
		Email:            c.Email,
		DepositAddress:   c.Address,
		TwoFactorEnabled: c.TwoFactorEnabled,
	}
	if c.CreatedAt != nil {
		u.CreatedAt = c.CreatedAt.Time.UTC()
	}
	return u
}

// TokenIssuer はHS256で署名したセッショントークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はユーザーのセッショントークンを発行する。
func (i *TokenIssuer) Issue(user *model.User) (string, error) {
	if user == nil {
		return "", errors.New("user is required")
	}

	now := i.now()
	claims := Claims{
		UserID:           user.ID,
		Email:            user.Email,
		Address:          user.DepositAddress,
		TwoFactorEnabled: user.TwoFactorEnabled,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	if !user.CreatedAt.IsZero() {
		claims.CreatedAt = jwt.NewNumericDate(user.CreatedAt)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse は署名と有効期限を検証し、クレームを返す。
func (i *TokenIssuer) Parse(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user_id")
	}
	return claims, nil
}

// IsTokenExpired は署名を検証せずにexpを読み、期限切れかどうかを返す。
// 空文字、形式不正、expなしはいずれも期限切れとして扱う。
func IsTokenExpired(raw string, now time.Time) bool {
	exp, ok := TokenExpiry(raw)
	return !ok || exp.Before(now)
}

// TokenExpiry は署名を検証せずにexpを返す。読めない場合やexpがない場合はfalseを返す。
func TokenExpiry(raw string) (time.Time, bool) {
	payload := TokenPayload(raw)
	if payload == nil {
		return time.Time{}, false
	}
	exp, err := jwt.MapClaims(payload).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenPayload は署名を検証せずにペイロードを返す。読めない場合はnilを返す。
func TokenPayload(raw string) map[string]any {
	if raw == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil
	}
	return claims
}
