package avatar

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"avatardriver/anim"
	"avatardriver/model"
	"avatardriver/pkg/pubsub"
)

// fakeFetcher serves canned bytes per URL and counts fetches.
type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	data, ok := f.data[url]
	if !ok {
		return nil, errors.New("no such asset")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newTestLoader(fetcher Fetcher) (*Loader, <-chan pubsub.Result[model.Event]) {
	bus := pubsub.NewPubSubChan[model.Event]()
	sub := bus.Subscribe()
	loader := NewLoader(Assets{
		ModelURL: "http://assets/model.vrm",
		ClipURLs: map[string]string{
			"wave": "http://assets/wave.vrma",
			"nod":  "http://assets/nod.vrma",
		},
	}, NewView(), bus, fetcher)
	return loader, sub
}

func TestLoader_ClipForFetchesThroughFetcher(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{
		"http://assets/wave.vrma": []byte("clip-bytes"),
	}}
	loader, _ := newTestLoader(fetcher)

	load := loader.ClipFor("wave")
	if load == nil {
		t.Fatal("ClipFor returned nil for a known clip")
	}

	clip, err := load()
	if err != nil {
		t.Fatal(err)
	}
	if clip.Name != "wave" || string(clip.Data) != "clip-bytes" {
		t.Errorf("clip = %q/%q, want wave/clip-bytes", clip.Name, clip.Data)
	}
	if clip.Duration != DefaultClipDuration {
		t.Errorf("clip duration = %v, want %v", clip.Duration, DefaultClipDuration)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher calls = %d, want 1", fetcher.calls)
	}
}

func TestLoader_ClipForUnknownName(t *testing.T) {
	loader, _ := newTestLoader(&fakeFetcher{})

	if load := loader.ClipFor("missing"); load != nil {
		t.Error("ClipFor returned a loader for an unknown clip name")
	}
}

func TestLoader_FailedLoadReportsAndClears(t *testing.T) {
	loader, events := newTestLoader(&fakeFetcher{}) // no data: every fetch fails

	if _, err := loader.ClipFor("wave")(); err == nil {
		t.Fatal("expected load failure")
	}

	kinds := map[model.EventKind]string{}
	deadline := time.After(time.Second)
	for len(kinds) < 2 {
		select {
		case ev := <-events:
			kinds[ev.Ok.Kind] = ev.Ok.Text
		case <-deadline:
			t.Fatalf("timed out; events so far: %v", kinds)
		}
	}
	if kinds[model.EventError] == "" || kinds[model.EventSubtitle] == "" {
		t.Errorf("events = %v, want error and subtitle with the failure text", kinds)
	}
}

func TestLoader_PreloadWarmsCache(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{
		"http://assets/wave.vrma": []byte("w"),
		"http://assets/nod.vrma":  []byte("n"),
	}}
	loader, _ := newTestLoader(fetcher)

	cache := anim.NewClipCache(8)
	loader.Preload(context.Background(), cache)

	for _, name := range []string{"wave", "nod"} {
		if !cache.Has(name) {
			t.Errorf("clip %q not resident after Preload", name)
		}
	}
}
