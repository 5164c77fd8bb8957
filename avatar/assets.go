package avatar

import (
	"context"
	"fmt"
	"io"
	"time"

	"avatardriver/anim"
	"avatardriver/model"
	"avatardriver/pkg/pubsub"

	"golang.org/x/exp/slog"
)

// DefaultClipDuration is assumed for clips whose container does not
// carry a length. Long enough for a gesture, short enough that the
// blender returns to idle.
const DefaultClipDuration = 3 * time.Second

// errorClearAfter: asset-load error messages auto-clear from the
// subtitle channel after this long.
const errorClearAfter = 5 * time.Second

// Assets names the avatar's remote binaries: one base model plus
// separately-addressable motion clips. All opaque to the driver.
type Assets struct {
	ModelURL string
	ClipURLs map[string]string // motion name -> url
}

// Fetcher opens a stream of asset bytes for a URL,
// typically the pooled audio.Fetcher shared with the stream player.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Loader fetches avatar assets and reports load progress on the event
// bus. A failed load leaves the avatar in its last-good state; the
// render loop never sees the error.
type Loader struct {
	assets  Assets
	view    *View
	events  pubsub.PubSub[model.Event]
	fetcher Fetcher

	logger *slog.Logger
}

func NewLoader(assets Assets, view *View, events pubsub.PubSub[model.Event], fetcher Fetcher) *Loader {
	l := &Loader{
		assets:  assets,
		view:    view,
		events:  events,
		fetcher: fetcher,
	}
	l.logger = slog.With("assetLoader", fmt.Sprintf("%p", l))
	return l
}

// ShowModel asks the views to load the base avatar.
func (l *Loader) ShowModel() {
	l.events.Publish(model.Event{Kind: model.EventLoading, Loading: true})
	l.view.ShowModel(l.assets.ModelURL)
	l.events.Publish(model.Event{Kind: model.EventLoading, Loading: false})
}

// ClipFor returns a loader for the named motion clip, or nil when the
// avatar has no clip by that name.
func (l *Loader) ClipFor(name string) anim.ClipLoader {
	url, ok := l.assets.ClipURLs[name]
	if !ok {
		return nil
	}

	return func() (*anim.Clip, error) {
		data, err := l.fetch(url)
		if err != nil {
			l.reportError(fmt.Sprintf("motion %q failed to load", name))
			return nil, err
		}
		return &anim.Clip{
			Name:     name,
			Data:     data,
			Duration: DefaultClipDuration,
		}, nil
	}
}

// Preload warms the clip cache with every known clip. Best-effort:
// a clip that fails to load is skipped and reported, the rest load.
func (l *Loader) Preload(ctx context.Context, cache *anim.ClipCache) {
	l.events.Publish(model.Event{Kind: model.EventLoading, Loading: true})
	defer l.events.Publish(model.Event{Kind: model.EventLoading, Loading: false})

	for name := range l.assets.ClipURLs {
		if ctx.Err() != nil {
			return
		}
		if _, err := cache.Ensure(name, l.ClipFor(name)); err != nil {
			l.logger.Warn("[assetLoader] preload clip failed", "name", name, "err", err)
		}
	}
	l.logger.Info("[assetLoader] preload done", "clips", cache.Len())
}

func (l *Loader) fetch(url string) ([]byte, error) {
	body, err := l.fetcher.Fetch(context.Background(), url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return io.ReadAll(body)
}

// reportError surfaces an asset error through both the error callback
// and the subtitle channel, auto-clearing the subtitle afterwards.
func (l *Loader) reportError(msg string) {
	l.events.Publish(model.Event{Kind: model.EventError, Text: msg})
	l.events.Publish(model.Event{Kind: model.EventSubtitle, Text: msg})

	time.AfterFunc(errorClearAfter, func() {
		l.events.Publish(model.Event{Kind: model.EventSubtitle, Text: ""})
	})
}
