// Package source は一定間隔で値を生成するデータソースを提供する。
// 模擬データ生成器と実ネットワーククライアントを同じ開始・停止の契約で差し替えられる。
package source

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Producer は1回分の値を生成する。okがfalseの場合はその回は何も送らない。
type Producer[T any] func(ctx context.Context) (value T, ok bool, err error)

// Periodic は一定間隔でProducerを呼び、結果をチャネルへ送るデータソース。
type Periodic[T any] struct {
	name      string
	interval  time.Duration
	immediate bool
	produce   Producer[T]
	logger    *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Option はPeriodicの設定を変更する。
type Option func(*options)

type options struct {
	immediate bool
}

// WithImmediate は開始直後にも1回生成する。
func WithImmediate() Option {
	return func(o *options) { o.immediate = true }
}

// NewPeriodic はPeriodicを生成する。
// intervalが正でない場合、Startは生成を行わず閉じたチャネルを返す。
func NewPeriodic[T any](name string, interval time.Duration, produce Producer[T], logger *slog.Logger, opts ...Option) *Periodic[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Periodic[T]{
		name:      name,
		interval:  interval,
		immediate: o.immediate,
		produce:   produce,
		logger:    logger,
	}
}

// Start はティッカーを起動し、生成値を受け取るチャネルを返す。
// チャネルはStopまたはctxのキャンセルで閉じられる。実行中に呼んだ場合はnilを返す。
// 間隔が正でない場合は何も生成せず、すでに閉じたチャネルを返す。
func (p *Periodic[T]) Start(ctx context.Context) <-chan T {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if p.interval <= 0 {
		p.logger.Error("データソースの間隔が不正なため開始しません",
			slog.String("source", p.name),
			slog.Duration("interval", p.interval),
		)
		out := make(chan T)
		close(out)
		return out
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T)
	done := make(chan struct{})

	p.cancel = cancel
	p.done = done
	p.running = true

	go p.loop(ctx, out, done)
	return out
}

func (p *Periodic[T]) loop(ctx context.Context, out chan<- T, done chan struct{}) {
	defer close(done)
	defer close(out)
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.running = false
		}
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug("データソースを開始しました",
		slog.String("source", p.name),
		slog.Duration("interval", p.interval),
	)

	if p.immediate && !p.emit(ctx, out) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("データソースを停止しました", slog.String("source", p.name))
			return
		case <-ticker.C:
			if !p.emit(ctx, out) {
				return
			}
		}
	}
}

// emit は1回生成して送る。ctxが終了していればfalseを返す。
func (p *Periodic[T]) emit(ctx context.Context, out chan<- T) bool {
	v, ok, err := p.produce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Warn("データソースの生成に失敗しました",
			slog.String("source", p.name),
			slog.String("error", err.Error()),
		)
		return true
	}
	if !ok {
		return true
	}

	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop は生成を止め、ループの終了を待つ。未開始なら何もしない。
func (p *Periodic[T]) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.running = false
	p.mu.Unlock()

	cancel()
	<-done
}

