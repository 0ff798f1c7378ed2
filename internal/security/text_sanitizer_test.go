package security

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "プレーンテキスト", input: "Address copied to clipboard", want: "Address copied to clipboard"},
		{name: "scriptタグ除去", input: "Sent<script>alert(1)</script>", want: "Sent"},
		{name: "装飾タグ除去", input: "<b>Received</b> 0.01 BTC", want: "Received 0.01 BTC"},
		{name: "イベント属性除去", input: `<img src=x onerror="alert(1)">Done`, want: "Done"},
		{name: "前後の空白", input: "  hello  ", want: "hello"},
		{name: "空文字", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_NoMarkupSurvives(t *testing.T) {
	s := NewTextSanitizer()

	payloads := []string{
		`<svg onload=alert(1)>`,
		`<a href="javascript:alert(1)">x</a>`,
		`<iframe src="https://evil.example"></iframe>`,
	}
	for _, p := range payloads {
		got := s.SanitizeText(p)
		if strings.Contains(got, "<") {
			t.Errorf("SanitizeText(%q) = %q, still contains markup", p, got)
		}
	}
}

func TestSanitizeText_Truncates(t *testing.T) {
	s := NewTextSanitizer()

	got := s.SanitizeText(strings.Repeat("あ", MaxTextLength+10))
	if n := len([]rune(got)); n != MaxTextLength {
		t.Errorf("length = %d, want %d", n, MaxTextLength)
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	once := s.SanitizeText("<p>Balance updated</p>")
	if twice := s.SanitizeText(once); twice != once {
		t.Errorf("not idempotent: %q -> %q", once, twice)
	}
}
