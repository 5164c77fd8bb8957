// Package pubsub is a tiny publish/subscribe layer with two backends:
// an in-process go chan fanout and a redis channel. The driver uses it
// to surface events (subtitles, errors, loading) to whoever listens.
package pubsub

// PubSub[T] publishes values of T to every subscriber.
type PubSub[T any] interface {
	Publish(payload T) error
	Subscribe() <-chan Result[T]
}

// Result[T] is one delivery: the payload, or the decode error the
// backend hit producing it.
type Result[T any] struct {
	Ok  T
	Err error
}
