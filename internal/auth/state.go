// Package auth は認証セッションの状態コンテナと、その状態を操作するログイン・登録・
// ログアウト・セッション確認の各操作を提供する。
package auth

import "github.com/hitoshi/miniwallet/internal/model"

// Phase は認証ゲートの段階。
type Phase string

const (
	PhaseChecking        Phase = "checking"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

// View はゲートが表示する画面。
type View string

const (
	ViewLoading   View = "loading"
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
)

// State は認証セッションの状態。
// Userが非nilであることと認証済みであることは同値。
type State struct {
	User      *model.User `json:"user"`
	IsLoading bool        `json:"isLoading"`
	Error     string      `json:"error,omitempty"`
	// Checked は起動時のセッション確認が終わったかどうか。
	Checked bool `json:"-"`
}

// InitialState はアプリケーション起動直後の状態を返す。
func InitialState() State {
	return State{IsLoading: true}
}

// IsAuthenticated はユーザーが認証済みかを返す。
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// Phase は現在の段階を返す。
func (s State) Phase() Phase {
	switch {
	case s.User != nil:
		return PhaseAuthenticated
	case !s.Checked:
		return PhaseChecking
	default:
		return PhaseUnauthenticated
	}
}

// View は表示すべき画面を返す。ロード中はどの段階でもローディング画面になる。
func (s State) View() View {
	switch {
	case s.IsLoading:
		return ViewLoading
	case s.IsAuthenticated():
		return ViewDashboard
	default:
		return ViewLogin
	}
}

// Action は認証状態に適用するアクション。
type Action interface {
	// Name はログとメトリクスで使うアクション名を返す。
	Name() string
	isAuthAction()
}

// SetLoading はロード中フラグを設定する。falseにするとセッション確認済みとして扱う。
type SetLoading struct{ Loading bool }

// SetUser はユーザーを設定し、エラーを消す。
type SetUser struct{ User *model.User }

// SetError はエラーを設定し、ロードを終了する。
type SetError struct{ Message string }

// ClearError はエラーのみを消す。
type ClearError struct{}

// Logout はユーザーとエラーを消す。
type Logout struct{}

func (SetLoading) Name() string { return "SetLoading" }
func (SetUser) Name() string    { return "SetUser" }
func (SetError) Name() string   { return "SetError" }
func (ClearError) Name() string { return "ClearError" }
func (Logout) Name() string     { return "Logout" }

func (SetLoading) isAuthAction() {}
func (SetUser) isAuthAction()    {}
func (SetError) isAuthAction()   {}
func (ClearError) isAuthAction() {}
func (Logout) isAuthAction()     {}

// Reduce は状態にアクションを適用した新しい状態を返す。副作用は持たない。
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetLoading:
		s.IsLoading = a.Loading
		if !a.Loading {
			s.Checked = true
		}
	case SetUser:
		s.User = a.User
		s.Error = ""
		s.Checked = true
	case SetError:
		s.Error = a.Message
		s.IsLoading = false
		s.Checked = true
	case ClearError:
		s.Error = ""
	case Logout:
		s.User = nil
		s.Error = ""
		s.Checked = true
	}
	return s
}
