// Package format は画面表示用の金額・時刻・ハッシュの整形関数を提供する。
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

const satoshiExp = -8

// BTC はsatoshi額をBTC表記にする。小数部の末尾の0は省く。
func BTC(amount btcutil.Amount) string {
	return SatoshiToBTC(amount).String()
}

// BTCFixed は小数点以下をplaces桁に固定したBTC表記を返す。
func BTCFixed(amount btcutil.Amount, places int32) string {
	return SatoshiToBTC(amount).StringFixed(places)
}

// BTCToSatoshi はBTC額をsatoshiに換算する。端数は四捨五入する。
func BTCToSatoshi(btc decimal.Decimal) btcutil.Amount {
	return btcutil.Amount(btc.Shift(-satoshiExp).Round(0).IntPart())
}

// SatoshiToBTC はsatoshi額をBTC額に換算する。
func SatoshiToBTC(sats btcutil.Amount) decimal.Decimal {
	return decimal.New(int64(sats), satoshiExp)
}

// USD は米ドル表記にする。compactが真なら1000以上をK、100万以上をMで短縮する。
func USD(amount float64, compact bool) string {
	d := decimal.NewFromFloat(amount)
	switch {
	case compact && amount >= 1_000_000:
		return "$" + d.Shift(-6).StringFixed(1) + "M"
	case compact && amount >= 1_000:
		return "$" + d.Shift(-3).StringFixed(1) + "K"
	}

	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Percentage は小数点以下places桁のパーセント表記にする。
func Percentage(value float64, places int32) string {
	return decimal.NewFromFloat(value).StringFixed(places) + "%"
}

// RelativeTime はnowからの経過時間を短く表す。7日以上前は日付を返す。
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff/(24*time.Hour)))
	}
	return t.Format("1/2/2006")
}

// TxHash はトランザクションハッシュを先頭と末尾8文字に省略する。
func TxHash(hash string) string {
	if hash == "" {
		return ""
	}
	return ellipsize(hash, 8)
}

// Address はアドレスを先頭と末尾6文字に省略する。十分短ければそのまま返す。
func Address(address string) string {
	if len(address) <= 12 {
		return address
	}
	return ellipsize(address, 6)
}

func ellipsize(s string, n int) string {
	return s[:min(n, len(s))] + "..." + s[max(0, len(s)-n):]
}
