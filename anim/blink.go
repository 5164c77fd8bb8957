package anim

import (
	"math/rand"
	"time"
)

// ChannelBlink is the reserved eyelid channel driven by Blinker.
const ChannelBlink = "blink"

const (
	blinkCloseSeconds = 0.06
	blinkOpenSeconds  = 0.10
	blinkIntervalMin  = 2 * time.Second
	blinkIntervalMax  = 6 * time.Second
)

// Blinker periodically closes and reopens the eyelid channel.
// It writes through SetChannel, so a running expression transition
// never fights it.
type Blinker struct {
	expression *ExpressionBlender

	wait    float64 // seconds until next blink
	phase   int     // 0: idle, 1: closing, 2: opening
	elapsed float64

	rand *rand.Rand
}

func NewBlinker(expression *ExpressionBlender) *Blinker {
	expression.Reserve(ChannelBlink)
	b := &Blinker{
		expression: expression,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	b.wait = b.nextInterval()
	return b
}

func (b *Blinker) nextInterval() float64 {
	span := (blinkIntervalMax - blinkIntervalMin).Seconds()
	return blinkIntervalMin.Seconds() + b.rand.Float64()*span
}

// Update advances the blink envelope by delta seconds.
// Call once per frame from the scheduler's blink stage.
func (b *Blinker) Update(delta float64) {
	switch b.phase {
	case 0:
		b.wait -= delta
		if b.wait <= 0 {
			b.phase = 1
			b.elapsed = 0
		}
	case 1:
		b.elapsed += delta
		t := b.elapsed / blinkCloseSeconds
		if t >= 1 {
			t = 1
			b.phase = 2
			b.elapsed = 0
		}
		b.expression.SetChannel(ChannelBlink, t)
	case 2:
		b.elapsed += delta
		t := b.elapsed / blinkOpenSeconds
		if t >= 1 {
			t = 1
			b.phase = 0
			b.wait = b.nextInterval()
		}
		b.expression.SetChannel(ChannelBlink, 1-t)
	}
}
