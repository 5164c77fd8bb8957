// Package coordinator sequences segment playback: audio per segment
// through the stream player, markers fired into the blenders at the
// instant the segment's audio actually starts sounding.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"avatardriver/anim"
	"avatardriver/audio"
	"avatardriver/markup"
	"avatardriver/model"
	"avatardriver/pkg/pubsub"

	"github.com/cdfmlr/ellipsis"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const DefaultDwell = time.Second

type state int

const (
	stateIdle state = iota
	statePlaying
)

// ClipSource maps an Action marker name to a loader for its clip.
// Nil return: no such clip known (MissingMarkerTarget, non-fatal).
type ClipSource func(name string) anim.ClipLoader

// Coordinator runs one playback session at a time: Idle -> Playing ->
// Idle. Re-entrant Play calls while Playing are ignored; AppendSegment
// admits more segments into the active session.
type Coordinator struct {
	mu sync.Mutex

	queue []*model.ParsedSegment
	state state

	player     *audio.StreamPlayer
	fetcher    audio.Fetcher
	motion     *anim.MotionBlender
	expression *anim.ExpressionBlender
	clips      *anim.ClipCache
	clipSource ClipSource
	audioCache *audio.BufferCache
	events     pubsub.PubSub[model.Event]

	dwell time.Duration

	sessionID     string
	sessionCancel context.CancelFunc
	restoreExpr   string
	restoreSet    bool

	logger *slog.Logger
}

type Option func(*Coordinator)

func WithDwell(d time.Duration) Option {
	return func(c *Coordinator) { c.dwell = d }
}

func WithFetcher(f audio.Fetcher) Option {
	return func(c *Coordinator) { c.fetcher = f }
}

func WithClipSource(src ClipSource) Option {
	return func(c *Coordinator) { c.clipSource = src }
}

func NewCoordinator(
	player *audio.StreamPlayer,
	motion *anim.MotionBlender,
	expression *anim.ExpressionBlender,
	clips *anim.ClipCache,
	audioCache *audio.BufferCache,
	events pubsub.PubSub[model.Event],
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		player:     player,
		motion:     motion,
		expression: expression,
		clips:      clips,
		audioCache: audioCache,
		events:     events,
		dwell:      DefaultDwell,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = audio.NewHTTPFetcher(0)
	}
	c.logger = slog.With("coordinator", fmt.Sprintf("%p", c))
	return c
}

// SetSegments replaces the queue. A running session is stopped first.
func (c *Coordinator) SetSegments(segments []*model.AudioSegment) {
	c.Stop()

	parsed := make([]*model.ParsedSegment, 0, len(segments))
	for _, seg := range segments {
		parsed = append(parsed, markup.ParseSegment(seg))
	}
	sortSegments(parsed)

	c.mu.Lock()
	c.queue = parsed
	c.mu.Unlock()

	c.logger.Info("[coordinator] segments set", "count", len(parsed))
}

// AppendSegment admits one more segment. If no session is active,
// playback starts automatically.
func (c *Coordinator) AppendSegment(seg *model.AudioSegment) {
	parsed := markup.ParseSegment(seg)

	c.mu.Lock()
	c.queue = append(c.queue, parsed)
	sortSegments(c.queue)
	idle := c.state == stateIdle
	c.mu.Unlock()

	c.logger.Info("[coordinator] segment appended",
		"sequenceIndex", seg.SequenceIndex, "idle", idle)

	if idle {
		go func() {
			if err := c.Play(context.Background()); err != nil {
				c.logger.Error("[coordinator] auto-start play failed", "err", err)
			}
		}()
	}
}

// Play runs one session: every queued segment in SequenceIndex order.
// Blocking; returns when the queue drains or Stop cuts the session.
// A Play while already Playing returns immediately.
func (c *Coordinator) Play(ctx context.Context) error {
	c.mu.Lock()
	if c.state == statePlaying {
		c.mu.Unlock()
		return nil
	}
	c.state = statePlaying

	sessCtx, cancel := context.WithCancel(ctx)
	c.sessionCancel = cancel
	c.sessionID = uuid.NewString()

	// snapshot the pre-speech expression; an explicit State marker in
	// the session discards it (the marker's effect is authoritative)
	c.restoreExpr = c.expression.Target()
	c.restoreSet = true

	logger := c.logger.With("session", ellipsis.Ending(c.sessionID, 9))
	c.mu.Unlock()

	logger.Info("[coordinator] session start")
	defer cancel()

	for {
		c.mu.Lock()
		if sessCtx.Err() == nil && len(c.queue) > 0 {
			seg := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()

			c.playSegment(sessCtx, seg, logger)
			continue
		}

		// queue drained or session canceled: finish under the same
		// lock so a concurrent Append either saw Playing (and got
		// picked up above) or sees Idle and starts a new session
		c.finishLocked(logger)
		c.mu.Unlock()
		return nil
	}
}

// Stop halts audio, clears the remaining queue and returns the avatar
// to a neutral presentation. Idempotent, callable in any state, never
// fails.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel := c.sessionCancel
	c.sessionCancel = nil
	c.queue = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.player.Stop()
	c.motion.Stop()

	c.logger.Info("[coordinator] stopped")
}

// finishLocked ends the session. Caller holds c.mu.
func (c *Coordinator) finishLocked(logger *slog.Logger) {
	if c.restoreSet && c.restoreExpr != "" {
		if err := c.expression.Play(c.restoreExpr); err != nil {
			logger.Warn("[coordinator] restore expression failed",
				"expression", c.restoreExpr, "err", err)
		}
	}
	c.restoreSet = false
	c.audioCache.Clear()
	c.state = stateIdle
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCancel = nil
	}

	logger.Info("[coordinator] session end")
}

// playSegment plays one segment and returns when it is done (audio
// ended, dwell elapsed, or session canceled). A failing segment never
// aborts the session.
func (c *Coordinator) playSegment(ctx context.Context, seg *model.ParsedSegment, logger *slog.Logger) {
	logger = logger.With("sequenceIndex", seg.SequenceIndex,
		"text", ellipsis.Centering(seg.PlainText, 15))

	if seg.AudioURL == "" {
		// marker-only segment: fire now, hold so it stays perceptible
		c.fireSegment(seg, logger)
		c.dwellWait(ctx)
		return
	}

	identity := audio.Identity(seg.AudioURL)
	fetch := audio.FetchFunc(func(fctx context.Context) (io.ReadCloser, error) {
		return c.fetcher.Fetch(fctx, seg.AudioURL)
	})
	status, err := c.player.Play(ctx, identity, fetch)
	if err != nil {
		logger.Warn("[coordinator] audio play rejected, falling back to dwell", "err", err)
		c.fireSegment(seg, logger)
		c.dwellWait(ctx)
		return
	}

	fired := false
	for s := range status {
		switch s {
		case audio.PlayStatusStart:
			// the instant the audio actually sounds, not request time
			c.fireSegment(seg, logger)
			fired = true
		case audio.PlayStatusEnd:
			return
		case audio.PlayStatusErr:
			logger.Warn("[coordinator] segment audio failed, continuing session")
			if !fired {
				c.fireSegment(seg, logger)
				c.dwellWait(ctx)
			}
			return
		}
	}
	// status closed without End: the session was stopped
}

// fireSegment triggers the segment's markers, then surfaces its
// subtitle. Marker firing happens-before the subtitle.
func (c *Coordinator) fireSegment(seg *model.ParsedSegment, logger *slog.Logger) {
	for _, m := range seg.Markups {
		switch m.Kind {
		case model.MarkupState:
			c.mu.Lock()
			c.restoreSet = false
			c.mu.Unlock()

			if err := c.expression.Play(m.Value); err != nil {
				// no such channel set on the avatar: diagnosable, never fatal
				logger.Warn("[coordinator] State marker has no target", "value", m.Value, "err", err)
			}
		case model.MarkupAction:
			c.playAction(m.Value, logger)
		}
	}

	if err := c.events.Publish(model.Event{Kind: model.EventSubtitle, Text: seg.PlainText}); err != nil {
		logger.Error("[coordinator] publish subtitle failed", "err", err)
	}
}

// playAction resolves and plays a non-looping motion clip.
func (c *Coordinator) playAction(name string, logger *slog.Logger) {
	if !c.clips.Has(name) {
		loader := c.resolveClip(name)
		if loader == nil {
			logger.Warn("[coordinator] Action marker has no target", "value", name)
			return
		}
		if _, err := c.clips.Ensure(name, loader); err != nil {
			logger.Warn("[coordinator] motion clip load failed", "value", name, "err", err)
			return
		}
	}

	if err := c.motion.Play(name, false); err != nil {
		logger.Warn("[coordinator] motion play failed", "value", name, "err", err)
	}
}

func (c *Coordinator) resolveClip(name string) anim.ClipLoader {
	if c.clipSource == nil {
		return nil
	}
	return c.clipSource(name)
}

// dwellWait holds for the fixed dwell, or less if the session dies.
func (c *Coordinator) dwellWait(ctx context.Context) {
	timer := time.NewTimer(c.dwell)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func sortSegments(segments []*model.ParsedSegment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].SequenceIndex < segments[j].SequenceIndex
	})
}
