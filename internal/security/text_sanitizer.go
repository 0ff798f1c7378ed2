// Package security は外部入力の無害化と外部通信先の制限を提供する。
package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxTextLength は無害化後のテキストの最大文字数。
const MaxTextLength = 280

// TextSanitizer は画面にそのまま表示する短いテキストを無害化する。
type TextSanitizer interface {
	// SanitizeText はタグをすべて取り除き、HTMLとして安全な文字列を返す。
	SanitizeText(raw string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はタグを一切許可しないポリシーでTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去し、前後の空白を落とし、MaxTextLength文字で切り詰める。
func (s *textSanitizer) SanitizeText(raw string) string {
	clean := strings.TrimSpace(s.policy.Sanitize(raw))
	if utf8.RuneCountInString(clean) <= MaxTextLength {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:MaxTextLength])
}
