package anim

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// motionState: Idle -> Playing -> Transitioning -> Playing -> ...
type motionState int

const (
	motionIdle motionState = iota
	motionPlaying
	motionTransitioning
)

const DefaultTransitionDuration = 500 * time.Millisecond

type pendingPlay struct {
	key  string
	loop bool
}

// MotionBlender plays and crossfades motion clips from a ClipCache.
//
// A Play during an active transition is queued, not cancelled: starting
// a third blend while two clips are still fading would produce a
// triple-blended pose. Non-looping clips crossfade back to the idle
// clip on completion so the avatar never drops to the rest skeleton.
type MotionBlender struct {
	mu sync.Mutex

	cache      *ClipCache
	idleKey    string
	transition float64 // seconds

	state    motionState
	current  string // playing (or outgoing, while transitioning) clip key
	incoming string // valid only while transitioning
	loop     bool   // whether current loops
	elapsed  float64
	progress *Progress
	pending  []pendingPlay

	weights map[string]float64 // per-frame output: clip key -> weight

	logger *slog.Logger
}

func NewMotionBlender(cache *ClipCache, idleKey string, transition time.Duration) *MotionBlender {
	if transition <= 0 {
		transition = DefaultTransitionDuration
	}
	b := &MotionBlender{
		cache:      cache,
		idleKey:    idleKey,
		transition: transition.Seconds(),
		state:      motionIdle,
		progress:   NewProgress(transition.Seconds()),
		weights:    make(map[string]float64),
	}
	b.logger = slog.With("motionBlender", fmt.Sprintf("%p", b))
	return b
}

// Play starts key, crossfading from whatever plays now.
// The clip must already be resident in the cache (Ensure it first);
// an unknown key is a no-op error so a bad Action marker never breaks
// the session.
func (b *MotionBlender) Play(key string, loop bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.play(key, loop)
}

// play assumes b.mu is held.
func (b *MotionBlender) play(key string, loop bool) error {
	if !b.cache.Has(key) {
		return fmt.Errorf("motion %q: %w", key, ErrClipNotFound)
	}

	switch b.state {
	case motionIdle:
		b.current = key
		b.loop = loop
		b.elapsed = 0
		b.state = motionPlaying
		b.weights = map[string]float64{key: 1}
		b.cache.Pin(key)
		b.logger.Info("[motionBlender] play direct", "key", key, "loop", loop)

	case motionPlaying:
		if key == b.current {
			b.elapsed = 0 // retrigger
			b.loop = loop
			return nil
		}
		b.incoming = key
		b.loop = loop
		b.state = motionTransitioning
		b.progress.Restart()
		// the incoming clip is in active playback from this moment on:
		// evicting it mid-crossfade would drop the avatar to the rest pose
		b.cache.Pin(key)
		b.logger.Info("[motionBlender] crossfade", "from", b.current, "to", key)

	case motionTransitioning:
		// serialize: wait for the running transition, do not preempt
		b.pending = append(b.pending, pendingPlay{key: key, loop: loop})
		b.logger.Info("[motionBlender] play queued behind transition", "key", key)
	}

	return nil
}

// Stop crossfades back to the idle clip. Prefer this over Halt.
func (b *MotionBlender) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = nil
	// mid-crossfade the committed clip is the incoming one, and that is
	// what would keep playing if we returned here
	committed := b.current
	if b.state == motionTransitioning {
		committed = b.incoming
	}
	if b.state == motionIdle || committed == b.idleKey {
		return
	}
	if err := b.play(b.idleKey, true); err != nil {
		b.logger.Warn("[motionBlender] Stop: crossfade to idle failed, halting", "err", err)
		b.halt()
	}
}

// Halt cuts all motion immediately. It is the explicit fallback for
// when the crossfade path cannot run (e.g. no idle clip loaded).
func (b *MotionBlender) Halt() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halt()
}

func (b *MotionBlender) halt() {
	b.cache.Unpin(b.current)
	b.cache.Unpin(b.incoming)
	b.state = motionIdle
	b.current = ""
	b.incoming = ""
	b.pending = nil
	b.weights = make(map[string]float64)
}

// Update advances the blend by delta seconds. Call once per frame from
// the render scheduler's motion stage.
func (b *MotionBlender) Update(delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case motionIdle:
		return

	case motionPlaying:
		b.elapsed += delta
		clip, ok := b.cache.Get(b.current)
		if !ok {
			// pinned, should not happen
			b.logger.Error("[motionBlender] playing clip missing from cache", "key", b.current)
			b.halt()
			return
		}
		if !b.loop && clip.Duration > 0 && b.elapsed >= clip.Duration.Seconds() {
			// one-shot finished: same crossfade path back to idle
			if b.current != b.idleKey {
				if err := b.play(b.idleKey, true); err != nil {
					b.logger.Warn("[motionBlender] return to idle failed", "err", err)
					b.halt()
				}
			} else {
				b.loop = true
			}
		}

	case motionTransitioning:
		b.progress.Advance(delta)
		eased := b.progress.Eased()
		b.weights = map[string]float64{
			b.current:  1 - eased,
			b.incoming: eased,
		}
		if b.progress.Done() {
			b.finishTransition()
		}
	}
}

// finishTransition commits the incoming clip. Caller holds b.mu.
func (b *MotionBlender) finishTransition() {
	outgoing := b.current
	b.current = b.incoming
	b.incoming = ""
	b.elapsed = 0
	b.state = motionPlaying
	b.weights = map[string]float64{b.current: 1}

	if len(b.pending) > 0 {
		next := b.pending[0]
		b.pending = b.pending[1:]
		if err := b.play(next.key, next.loop); err != nil {
			b.logger.Warn("[motionBlender] pending play failed", "key", next.key, "err", err)
		}
	}

	// the pending play may have re-entered a crossfade involving the
	// old clip, so only unpin it once it is truly out of playback
	if outgoing != b.current && outgoing != b.incoming {
		b.cache.Unpin(outgoing)
	}
}

// Current returns the key of the clip the blender is committed to
// (the incoming clip while a transition runs).
func (b *MotionBlender) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == motionTransitioning {
		return b.incoming
	}
	return b.current
}

// Transitioning reports whether a crossfade is in progress.
func (b *MotionBlender) Transitioning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == motionTransitioning
}

// Weights returns a copy of the per-clip weights for this frame.
func (b *MotionBlender) Weights() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]float64, len(b.weights))
	for k, v := range b.weights {
		out[k] = v
	}
	return out
}
