package mockdata

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// DemoAddress はデモアカウントの入金アドレス。
const DemoAddress = "tb1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"

// AddressBook はトランザクション履歴の相手先として使う表示用アドレス。
var AddressBook = []string{
	DemoAddress,
	"tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
	"tb1qrp33g7q2c8z8jmzx9p2m5y8d7z3k8n4p5q6r7s8t9u0v1w2x3y4z5",
	"tb1q9vza2e8x573nczrlzms0wvx3gsqjx7vaxqfnuyzt",
}

// TestnetAddress は20バイトの公開鍵ハッシュからtestnetのP2WPKHアドレスを作る。
func TestnetAddress(hash160 []byte) (string, error) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash160, &chaincfg.TestNet3Params)
	if err != nil {
		return "", fmt.Errorf("failed to build testnet address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// RandomTestnetAddress は乱数から新しいtestnetアドレスを作る。
// 鍵ペアは存在しないため、このアドレス宛ての資金は使えない。
func RandomTestnetAddress(r Rand) string {
	var h [20]byte
	fillBytes(r, h[:])
	// 長さ20なら失敗しない
	addr, _ := TestnetAddress(h[:])
	return addr
}

// RandomTxHash は乱数からトランザクションハッシュ（表示順の16進64文字）を作る。
func RandomTxHash(r Rand) string {
	var h chainhash.Hash
	fillBytes(r, h[:])
	return h.String()
}
