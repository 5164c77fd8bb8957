package pubsub

import "sync"

const pubSubChanBufSize = 8

// pubSubChan is the in-process PubSub[T] backend: one fanout goroutine
// copies every published value to every subscriber channel.
type pubSubChan[T any] struct {
	pub chan T

	mu   sync.RWMutex
	subs []chan Result[T]
}

func NewPubSubChan[T any]() PubSub[T] {
	ps := &pubSubChan[T]{
		pub: make(chan T, pubSubChanBufSize),
	}

	go ps.run()

	return ps
}

func (ps *pubSubChan[T]) Publish(payload T) error {
	ps.mu.RLock()
	noSubs := len(ps.subs) == 0
	ps.mu.RUnlock()

	// nobody listening: drop instead of blocking the publisher
	if noSubs {
		return nil
	}

	ps.pub <- payload
	return nil
}

func (ps *pubSubChan[T]) Subscribe() <-chan Result[T] {
	ch := make(chan Result[T], pubSubChanBufSize)

	ps.mu.Lock()
	ps.subs = append(ps.subs, ch)
	ps.mu.Unlock()

	return ch
}

func (ps *pubSubChan[T]) run() {
	for msg := range ps.pub {
		ps.mu.RLock()
		for _, sub := range ps.subs {
			sub <- Result[T]{Ok: msg}
		}
		ps.mu.RUnlock()
	}
}
