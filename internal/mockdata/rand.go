// Package mockdata はダッシュボード表示用の模擬データを生成する。
// 値はすべて乱数由来で、実際のブロックチェーンとは無関係。
package mockdata

import "math/rand/v2"

// Rand は生成処理が使う乱数源。*rand.Rand はこれを満たす。
type Rand interface {
	Float64() float64
	IntN(n int) int
	Uint64() uint64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Uint64() uint64   { return rand.Uint64() }

// Default はパッケージレベルの乱数源。複数goroutineから同時に使える。
var Default Rand = globalRand{}

// NewSeeded は決定的な乱数源を返す。単一goroutineからのみ使うこと。
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func fillBytes(r Rand, b []byte) {
	for i := 0; i < len(b); i += 8 {
		v := r.Uint64()
		for j := 0; j < 8 && i+j < len(b); j++ {
			b[i+j] = byte(v >> (8 * j))
		}
	}
}
