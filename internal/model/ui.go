package model

// Modal はダッシュボードで開いているモーダルの種類。空文字は「なし」を表す。
type Modal string

const (
	ModalNone    Modal = ""
	ModalSend    Modal = "send"
	ModalReceive Modal = "receive"
)

// Valid はモーダル種別が既知の値かを返す。
func (m Modal) Valid() bool {
	switch m {
	case ModalNone, ModalSend, ModalReceive:
		return true
	}
	return false
}

// Severity は通知の重要度。
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid は重要度が既知の値かを返す。
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Notification は画面に表示するトースト通知。
type Notification struct {
	ID       string   `json:"id"`
	Message  string   `json:"message"`
	Severity Severity `json:"type"`
}

// Theme は画面テーマ。
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)
