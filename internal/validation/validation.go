// Package validation はログイン・登録フォームの入力検証と、パスワード強度の判定を提供する。
// 検証結果はフィールド単位で返し、認証状態のエラーとは混ぜない。
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

// specialChars はパスワードに含めるべき記号の集合。
const specialChars = "@$!%*?&"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// フィールド検証エラー
var (
	ErrEmailRequired          = errors.New("Email is required")
	ErrEmailInvalid           = errors.New("Please enter a valid email address")
	ErrPasswordRequired       = errors.New("Password is required")
	ErrPasswordTooShort       = fmt.Errorf("Password must be at least %d characters", MinPasswordLength)
	ErrPasswordNoLower        = errors.New("Password must contain lowercase letters")
	ErrPasswordNoUpper        = errors.New("Password must contain uppercase letters")
	ErrPasswordNoDigit        = errors.New("Password must contain numbers")
	ErrPasswordNoSpecial      = errors.New("Password must contain special characters")
	ErrConfirmPasswordMissing = errors.New("Please confirm your password")
	ErrPasswordMismatch       = errors.New("Passwords do not match")
)

// Email はメールアドレスの形式を検証する。
func Email(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

// Password はパスワードのポリシーを検証し、最初に満たさなかった条件を返す。
func Password(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	c := classify(password)
	switch {
	case !c.lower:
		return ErrPasswordNoLower
	case !c.upper:
		return ErrPasswordNoUpper
	case !c.digit:
		return ErrPasswordNoDigit
	case !c.special:
		return ErrPasswordNoSpecial
	}
	return nil
}

// ConfirmPassword は確認用パスワードが一致するかを検証する。
func ConfirmPassword(password, confirm string) error {
	if confirm == "" {
		return ErrConfirmPasswordMissing
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// Required は空白のみの値を未入力として扱う。
func Required(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

type charClasses struct {
	lower, upper, digit, special bool
}

func classify(s string) charClasses {
	var c charClasses
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= '0' && r <= '9':
			c.digit = true
		case strings.ContainsRune(specialChars, r):
			c.special = true
		}
	}
	return c
}

// Strength はパスワード強度の判定結果。
type Strength struct {
	Score    int      `json:"score"` // 0〜5
	Level    string   `json:"level"`
	Color    string   `json:"color"`
	Feedback []string `json:"feedback"`
}

var (
	strengthLevels = [...]string{"Very Weak", "Weak", "Fair", "Good", "Strong"}
	strengthColors = [...]string{"red", "orange", "yellow", "blue", "green"}
)

// PasswordStrength は満たした条件の数でスコアを付け、足りない条件をFeedbackに並べる。
// スコア4と5は同じ表示段階になる。
func PasswordStrength(password string) Strength {
	c := classify(password)
	checks := []struct {
		ok   bool
		hint string
	}{
		{len([]rune(password)) >= MinPasswordLength, "At least 8 characters"},
		{c.lower, "Lowercase letters"},
		{c.upper, "Uppercase letters"},
		{c.digit, "Numbers"},
		{c.special, "Special characters"},
	}

	s := Strength{Feedback: []string{}}
	for _, ch := range checks {
		if ch.ok {
			s.Score++
		} else {
			s.Feedback = append(s.Feedback, ch.hint)
		}
	}

	idx := min(s.Score, len(strengthLevels)-1)
	s.Level = strengthLevels[idx]
	s.Color = strengthColors[idx]
	return s
}

// Errors はフィールド名からエラーメッセージへの対応。
type Errors map[string]string

func (e Errors) add(field string, err error) {
	if err != nil {
		e[field] = err.Error()
	}
}

// LoginForm はログインフォームを検証する。問題がなければ空のErrorsを返す。
func LoginForm(email, password string) Errors {
	errs := Errors{}
	errs.add("email", Email(email))
	errs.add("password", Required(password, "Password"))
	return errs
}

// RegisterForm は登録フォームを検証する。
func RegisterForm(email, password, confirm string) Errors {
	errs := Errors{}
	errs.add("email", Email(email))
	errs.add("password", Password(password))
	errs.add("confirmPassword", ConfirmPassword(password, confirm))
	return errs
}
