package model

import "github.com/btcsuite/btcd/btcutil"

// Balance はウォレット残高のスナップショット。
// 値はsatoshi単位で保持し、変換による誤差を持ち込まない。
type Balance struct {
	Confirmed   btcutil.Amount
	Unconfirmed btcutil.Amount
}
