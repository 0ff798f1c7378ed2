package mockdata

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// WalletStats はウォレット全体の統計値。
type WalletStats struct {
	TotalTransactions      int            `json:"totalTransactions"`
	TotalReceived          btcutil.Amount `json:"totalReceived"`
	TotalSent              btcutil.Amount `json:"totalSent"`
	AverageTransactionSize btcutil.Amount `json:"averageTransactionSize"`
	FirstTransactionDate   time.Time      `json:"firstTransactionDate"`
	LargestTransaction     btcutil.Amount `json:"largestTransaction"`
	SmallestTransaction    btcutil.Amount `json:"smallestTransaction"`
	UniqueAddresses        int            `json:"uniqueAddresses"`
}

// NetworkStats はBitcoinネットワーク全体の統計値。
type NetworkStats struct {
	MarketCap         float64 `json:"marketCap"`
	Volume24h         float64 `json:"volume24h"`
	Dominance         float64 `json:"dominance"`
	CirculatingSupply float64 `json:"circulatingSupply"`
	MaxSupply         float64 `json:"maxSupply"`
	HashRate          string  `json:"hashRate"`
	Difficulty        float64 `json:"difficulty"`
	BlockHeight       int64   `json:"blockHeight"`
	Mempool           int     `json:"mempool"`
}

// MockWalletStats は固定のウォレット統計を返す。初回取引日はnowの180日前。
func MockWalletStats(now time.Time) WalletStats {
	return WalletStats{
		TotalTransactions:      156,
		TotalReceived:          45678901,
		TotalSent:              31234567,
		AverageTransactionSize: 892345,
		FirstTransactionDate:   now.AddDate(0, 0, -180),
		LargestTransaction:     12345678,
		SmallestTransaction:    1234,
		UniqueAddresses:        23,
	}
}

// MockNetworkStats は固定のネットワーク統計を返す。
func MockNetworkStats() NetworkStats {
	return NetworkStats{
		MarketCap:         847000000000,
		Volume24h:         28500000000,
		Dominance:         51.2,
		CirculatingSupply: 19678234.5,
		MaxSupply:         21000000,
		HashRate:          "450.5 EH/s",
		Difficulty:        62463471666973.55,
		BlockHeight:       815234,
		Mempool:           1234,
	}
}
