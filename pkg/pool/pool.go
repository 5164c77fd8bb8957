package pool

import (
	"sync/atomic"
)

// pool is a lock-free Pool backed by a buffered channel of idle
// resources plus an outstanding counter.
type pool[T Poolable] struct {
	idle   chan T
	create func() (T, error)

	cap  int64
	size atomic.Int64 // size < 0 means closed
}

func NewPool[T Poolable](cap int64, create func() (T, error)) Pool[T] {
	return &pool[T]{
		idle:   make(chan T, cap),
		create: create,
		cap:    cap,
	}
}

func (p *pool[T]) Get() (T, error) {
	if p.isClosed() {
		return *new(T), ErrPoolClosed
	}

	select {
	case t, ok := <-p.idle:
		if !ok { // isClosed above makes this unreachable
			return *new(T), ErrPoolClosed
		}
		return t, nil
	default:
	}

	if p.size.Add(1) > p.cap {
		p.size.Add(-1)
		return *new(T), ErrPoolExhausted
	}
	t, err := p.create()
	if err != nil {
		p.size.Add(-1)
	}
	return t, err
}

func (p *pool[T]) Put(t T) error {
	if p.isClosed() {
		return t.Close()
	}

	select {
	case p.idle <- t:
		return nil
	default: // idle buffer full, drop the extra
		return p.Release(t)
	}
}

func (p *pool[T]) Release(t T) error {
	p.size.Add(-1)
	return t.Close()
}

func (p *pool[T]) Len() int {
	n := p.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func (p *pool[T]) Close() error {
	p.size.Store(-1)

	close(p.idle)
	for t := range p.idle {
		t.Close()
	}

	return nil
}

func (p *pool[T]) isClosed() bool {
	return p.size.Load() < 0
}
