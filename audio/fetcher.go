package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"avatardriver/pkg/pool"
)

// Fetcher opens a stream of raw audio bytes for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FetchFunc is the per-utterance fetch handed to StreamPlayer.Play.
type FetchFunc func(ctx context.Context) (io.ReadCloser, error)

const DefaultFetchPoolSize = 8

// httpFetcher fetches audio over HTTP with a pool of clients, so
// concurrent utterance fetches don't grow connections without bound.
type httpFetcher struct {
	clients pool.Pool[*fetchClient]
}

type fetchClient struct {
	c *http.Client
}

func (c *fetchClient) Close() error {
	c.c.CloseIdleConnections()
	return nil
}

func NewHTTPFetcher(poolSize int64) Fetcher {
	if poolSize <= 0 {
		poolSize = DefaultFetchPoolSize
	}
	return &httpFetcher{
		clients: pool.NewPool(poolSize, func() (*fetchClient, error) {
			return &fetchClient{c: &http.Client{}}, nil
		}),
	}
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	cli, err := f.clients.Get()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.clients.Put(cli)
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	resp, err := cli.c.Do(req)
	if err != nil {
		f.clients.Release(cli)
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		f.clients.Put(cli)
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	return &pooledBody{ReadCloser: resp.Body, cli: cli, pool: f.clients}, nil
}

// pooledBody returns the client to the pool when the stream is done.
type pooledBody struct {
	io.ReadCloser
	cli  *fetchClient
	pool pool.Pool[*fetchClient]
}

func (b *pooledBody) Close() error {
	err := b.ReadCloser.Close()
	b.pool.Put(b.cli)
	return err
}
