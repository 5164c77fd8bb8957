// Package pool is a generic pool of reusable resources (connections,
// clients). Resources are created lazily up to a fixed cap.
package pool

import (
	"errors"
	"io"
)

// Poolable resources must be closable so the pool can dispose of them.
type Poolable interface {
	io.Closer
}

type Pool[T Poolable] interface {
	// Get takes a resource from the pool, creating one if the pool is
	// empty and the cap is not reached.
	Get() (T, error)
	// Put hands a resource back for reuse.
	Put(T) error
	// Release closes a resource taken with Get without returning it.
	// Releasing a resource the pool never handed out breaks the count.
	Release(T) error
	// Len is the number of resources the pool currently accounts for.
	Len() int
	// Close shuts the pool: Get starts failing and every idle resource
	// is closed.
	Close() error
}

var (
	ErrPoolClosed    = errors.New("the pool is closed")
	ErrPoolExhausted = errors.New("the pool has been exhausted")
)
