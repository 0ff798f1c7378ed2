// Package wallet はウォレット画面の状態コンテナと、残高・トランザクションの取得、
// 通知やモーダルなどのUI操作、残高の定期変動を提供する。
package wallet

import (
	"slices"

	"github.com/hitoshi/miniwallet/internal/model"
)

// UIState は画面の一時的な状態。
type UIState struct {
	ActiveModal   model.Modal          `json:"activeModal"`
	Notifications []model.Notification `json:"notifications"`
	Theme         model.Theme          `json:"theme"`
}

// State はウォレットの状態。トランザクションは新しい順に並ぶ。
type State struct {
	Profile      model.Profile
	Balance      model.Balance
	Transactions []model.Transaction
	Addresses    []string
	Loading      bool
	Error        string
	UI           UIState
}

// InitialState は空のウォレット状態を返す。
func InitialState() State {
	return State{
		UI: UIState{Theme: model.ThemeLight},
	}
}

// Notification はIDで通知を探す。
func (s State) Notification(id string) (model.Notification, bool) {
	for _, n := range s.UI.Notifications {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// Transaction はIDでトランザクションを探す。
func (s State) Transaction(id string) (model.Transaction, bool) {
	for _, tx := range s.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return model.Transaction{}, false
}

// Action はウォレット状態に適用するアクション。
type Action interface {
	Name() string
	isWalletAction()
}

type (
	// SetLoading は取得中フラグを設定する。
	SetLoading struct{ Loading bool }
	// SetBalance は残高を置き換える。値は変換せずそのまま保持する。
	SetBalance struct{ Balance model.Balance }
	// SetTransactions はトランザクション一覧を丸ごと置き換える。
	SetTransactions struct{ Transactions []model.Transaction }
	// AddTransaction はトランザクションを先頭に追加する。
	AddTransaction struct{ Transaction model.Transaction }
	// SetUser はプロフィールにマージする。空文字のフィールドは既存値を残す。
	SetUser struct{ Profile model.Profile }
	// SetModal は表示中のモーダルを切り替える。ModalNoneで閉じる。
	SetModal struct{ Modal model.Modal }
	// AddNotification は通知を末尾に追加する。
	AddNotification struct{ Notification model.Notification }
	// RemoveNotification はIDが一致する通知を取り除く。
	RemoveNotification struct{ ID string }
	// SetError は取得エラーを設定する。空文字で消す。
	SetError struct{ Message string }
	// SetTheme は画面テーマを切り替える。
	SetTheme struct{ Theme model.Theme }
	// Reset は初期状態に戻す。ログアウト時に使う。
	Reset struct{}
)

func (SetLoading) Name() string         { return "SetLoading" }
func (SetBalance) Name() string         { return "SetBalance" }
func (SetTransactions) Name() string    { return "SetTransactions" }
func (AddTransaction) Name() string     { return "AddTransaction" }
func (SetUser) Name() string            { return "SetUser" }
func (SetModal) Name() string           { return "SetModal" }
func (AddNotification) Name() string    { return "AddNotification" }
func (RemoveNotification) Name() string { return "RemoveNotification" }
func (SetError) Name() string           { return "SetError" }
func (SetTheme) Name() string           { return "SetTheme" }
func (Reset) Name() string              { return "Reset" }

func (SetLoading) isWalletAction()         {}
func (SetBalance) isWalletAction()         {}
func (SetTransactions) isWalletAction()    {}
func (AddTransaction) isWalletAction()     {}
func (SetUser) isWalletAction()            {}
func (SetModal) isWalletAction()           {}
func (AddNotification) isWalletAction()    {}
func (RemoveNotification) isWalletAction() {}
func (SetError) isWalletAction()           {}
func (SetTheme) isWalletAction()           {}
func (Reset) isWalletAction()              {}

// Reduce は状態にアクションを適用した新しい状態を返す。
// スライスは常に新しく確保し、以前の状態と共有しない。
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetLoading:
		s.Loading = a.Loading
	case SetBalance:
		s.Balance = a.Balance
	case SetTransactions:
		s.Transactions = slices.Clone(a.Transactions)
	case AddTransaction:
		txs := make([]model.Transaction, 0, len(s.Transactions)+1)
		txs = append(txs, a.Transaction)
		s.Transactions = append(txs, s.Transactions...)
	case SetUser:
		s.Profile = mergeProfile(s.Profile, a.Profile)
		if a.Profile.Address != "" && !slices.Contains(s.Addresses, a.Profile.Address) {
			s.Addresses = append(slices.Clone(s.Addresses), a.Profile.Address)
		}
	case SetModal:
		s.UI.ActiveModal = a.Modal
	case AddNotification:
		n := make([]model.Notification, 0, len(s.UI.Notifications)+1)
		n = append(n, s.UI.Notifications...)
		s.UI.Notifications = append(n, a.Notification)
	case RemoveNotification:
		s.UI.Notifications = slices.DeleteFunc(slices.Clone(s.UI.Notifications), func(n model.Notification) bool {
			return n.ID == a.ID
		})
	case SetError:
		s.Error = a.Message
	case SetTheme:
		s.UI.Theme = a.Theme
	case Reset:
		return InitialState()
	}
	return s
}

func mergeProfile(cur, patch model.Profile) model.Profile {
	cur.IsAuthenticated = patch.IsAuthenticated
	if patch.Address != "" {
		cur.Address = patch.Address
	}
	if patch.PublicKey != "" {
		cur.PublicKey = patch.PublicKey
	}
	if patch.Email != "" {
		cur.Email = patch.Email
	}
	return cur
}
