package model

import "time"

// PricePoint は価格履歴の1点。
type PricePoint struct {
	Timestamp time.Time `json:"date"`
	Price     float64   `json:"price"`
}

// PriceData はBTC/USD価格のスナップショット。
type PriceData struct {
	Current          float64      `json:"current"`
	Change24h        float64      `json:"change24h"`
	ChangePercent24h float64      `json:"changePercent24h"`
	History          []PricePoint `json:"priceHistory"`
}
