package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// pubSubRedis is the redis-channel PubSub[T] backend. Payloads go over
// the wire as json, so T must marshal cleanly.
type pubSubRedis[T any] struct {
	name string
	rdb  *redis.Client
}

func NewPubSubRedis[T any](name string, rdb *redis.Client) PubSub[T] {
	return &pubSubRedis[T]{
		name: name,
		rdb:  rdb,
	}
}

func (ps *pubSubRedis[T]) Publish(payload T) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	return ps.rdb.Publish(context.Background(),
		ps.name, string(encoded)).Err()
}

func (ps *pubSubRedis[T]) Subscribe() <-chan Result[T] {
	sub := ps.rdb.Subscribe(context.Background(), ps.name)
	in := sub.Channel()

	out := make(chan Result[T], pubSubChanBufSize)

	go func() {
		for msg := range in {
			var payload T
			err := json.Unmarshal([]byte(msg.Payload), &payload)
			out <- Result[T]{Ok: payload, Err: err}
		}
	}()

	return out
}
