package anim

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

const DefaultExpressionDuration = 400 * time.Millisecond

var errExpressionUnknown = fmt.Errorf("expression not defined")

// ExpressionBlender blends named facial expressions over weighted
// channels. Lip-sync and blink channels are reserved axes: they are
// written directly via SetChannel and the current/target blend never
// touches them, so the mouth keeps moving mid-transition.
type ExpressionBlender struct {
	mu sync.Mutex

	expressions map[string]map[string]float64 // name -> channel weights
	reserved    map[string]bool               // lip-sync / blink channels

	current  string
	target   string
	progress *Progress

	channels map[string]float64 // committed per-frame output

	logger *slog.Logger
}

func NewExpressionBlender(transition time.Duration) *ExpressionBlender {
	if transition <= 0 {
		transition = DefaultExpressionDuration
	}
	b := &ExpressionBlender{
		expressions: make(map[string]map[string]float64),
		reserved:    make(map[string]bool),
		progress:    NewProgress(transition.Seconds()),
		channels:    make(map[string]float64),
	}
	b.logger = slog.With("expressionBlender", fmt.Sprintf("%p", b))
	return b
}

// Define registers a named expression as a set of channel weights.
func (b *ExpressionBlender) Define(name string, channels map[string]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	weights := make(map[string]float64, len(channels))
	for ch, w := range channels {
		weights[ch] = w
	}
	b.expressions[name] = weights
}

// Reserve marks a channel as a lip-sync or blink axis, orthogonal to
// the expression blend.
func (b *ExpressionBlender) Reserve(channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved[channel] = true
}

// Play starts a transition to the named expression.
//
// No-op when name is already the committed target. Otherwise every
// non-reserved channel is zeroed first: a half-faded previous
// expression must not linger underneath the new blend.
func (b *ExpressionBlender) Play(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.expressions[name]; !ok {
		return fmt.Errorf("expression %q: %w", name, errExpressionUnknown)
	}
	if name == b.target && b.progress.Done() {
		return nil
	}

	for ch := range b.channels {
		if !b.reserved[ch] {
			b.channels[ch] = 0
		}
	}

	b.current = b.target
	b.target = name
	b.progress.Restart()

	b.logger.Info("[expressionBlender] play", "from", b.current, "to", b.target)
	return nil
}

// SetChannel writes one channel weight directly, bypassing the blend.
// Only meaningful for reserved (lip-sync / blink) channels.
func (b *ExpressionBlender) SetChannel(channel string, weight float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if weight < 0 {
		weight = 0
	} else if weight > 1 {
		weight = 1
	}
	b.channels[channel] = weight
}

// Channel returns the committed weight of one channel.
func (b *ExpressionBlender) Channel(channel string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channels[channel]
}

// Target returns the committed target expression name.
func (b *ExpressionBlender) Target() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.target
}

// Update advances the blend by delta seconds and recomputes every
// non-reserved channel: current fades 1->0 while target fades 0->1,
// both through the shared easing curve.
func (b *ExpressionBlender) Update(delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.progress.Done() && b.target == "" {
		return
	}

	b.progress.Advance(delta)
	eased := b.progress.Eased()

	cur := b.expressions[b.current] // nil map reads as 0, fine
	tgt := b.expressions[b.target]

	touched := make(map[string]bool, len(cur)+len(tgt))
	for ch := range cur {
		touched[ch] = true
	}
	for ch := range tgt {
		touched[ch] = true
	}

	for ch := range touched {
		if b.reserved[ch] {
			continue
		}
		b.channels[ch] = cur[ch]*(1-eased) + tgt[ch]*eased
	}
}

// Weights returns a copy of the committed channel weights.
func (b *ExpressionBlender) Weights() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]float64, len(b.channels))
	for ch, w := range b.channels {
		out[ch] = w
	}
	return out
}
