package mockdata

import (
	"math"
	"time"

	"github.com/hitoshi/miniwallet/internal/model"
)

// BasePrice は模擬価格の起点（USD）。
const BasePrice = 43250.0

// GeneratePriceHistory はdays日前から今日までの日次価格をdays+1点生成する。
// 各点は前日比±2.5%以内のランダムウォークで、セント単位に丸める。
func GeneratePriceHistory(r Rand, days int, now time.Time) []model.PricePoint {
	if days < 0 {
		days = 0
	}

	points := make([]model.PricePoint, 0, days+1)
	price := BasePrice
	for i := days; i >= 0; i-- {
		volatility := (r.Float64() - 0.5) * 0.05
		price += price * volatility
		points = append(points, model.PricePoint{
			Timestamp: now.AddDate(0, 0, -i),
			Price:     RoundCents(price),
		})
	}
	return points
}

// RoundCents はUSD値をセント単位に丸める。
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
