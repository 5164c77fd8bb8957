// Package anim owns the avatar's animation state machines: the motion
// clip cache, the motion crossfade blender and the facial expression
// blender. It computes per-frame weights; rasterizing them is the
// avatarview's job.
package anim

import "math"

// EaseInOutCubic maps a linear progress t in [0,1] onto an ease-in-out
// cubic curve. Both blenders sample their transitions through this
// curve so blend start/end have no velocity discontinuity.
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// Progress is the shared transition clock of the two blenders:
// a [0,1] value advanced by delta/duration per frame.
//
// A fresh Progress starts complete (1.0). The value is monotonically
// non-decreasing while a transition runs; Restart is the only way back
// to 0, and callers must not Restart while Done() is false.
type Progress struct {
	value    float64
	duration float64 // seconds
}

func NewProgress(duration float64) *Progress {
	return &Progress{value: 1, duration: duration}
}

// Restart begins a new transition.
func (p *Progress) Restart() {
	p.value = 0
}

// Advance moves the transition forward by delta seconds.
func (p *Progress) Advance(delta float64) {
	if p.duration <= 0 {
		p.value = 1
		return
	}
	p.value += delta / p.duration
	if p.value > 1 {
		p.value = 1
	}
}

func (p *Progress) Done() bool {
	return p.value >= 1
}

// Value is the raw linear progress.
func (p *Progress) Value() float64 {
	return p.value
}

// Eased is the progress sampled through EaseInOutCubic.
func (p *Progress) Eased() float64 {
	return EaseInOutCubic(p.value)
}
