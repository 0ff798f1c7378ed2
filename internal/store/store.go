// Package store はreducer形式の状態コンテナを提供する。
// 状態遷移はDispatchの呼び出し順に1つずつ適用され、途中状態は観測されない。
package store

import "sync"

// Reducer は現在の状態とアクションから次の状態を返す純関数。
type Reducer[S, A any] func(state S, action A) S

// Listener は状態遷移後に呼ばれる購読関数。
type Listener[S, A any] func(state S, action A)

// Store は単一の状態と、それを更新するReducerを保持する。
type Store[S, A any] struct {
	mu        sync.Mutex
	state     S
	reduce    Reducer[S, A]
	listeners map[int]Listener[S, A]
	nextID    int
}

// New は初期状態とReducerからStoreを生成する。
func New[S, A any](initial S, reduce Reducer[S, A]) *Store[S, A] {
	return &Store[S, A]{
		state:     initial,
		reduce:    reduce,
		listeners: make(map[int]Listener[S, A]),
	}
}

// State は現在の状態のスナップショットを返す。
func (s *Store[S, A]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch はアクションを適用し、遷移後の状態を返す。
// リスナーは遷移ごとに登録順とは無関係に呼ばれる。リスナー内からDispatchしてはならない。
func (s *Store[S, A]) Dispatch(action A) S {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.reduce(s.state, action)
	for _, l := range s.listeners {
		l(s.state, action)
	}
	return s.state
}

// Subscribe はリスナーを登録し、解除関数を返す。
func (s *Store[S, A]) Subscribe(l Listener[S, A]) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
