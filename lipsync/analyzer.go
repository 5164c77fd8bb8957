// Package lipsync turns the amplitude of the audio being spoken into
// mouth channel weights for the expression blender.
package lipsync

import (
	"math"
)

// Mouth channels. ChannelMouthOpen carries the primary weight; the two
// aux channels get smaller shares for visual variety.
const (
	ChannelMouthOpen = "mouth_open"
	ChannelMouthWide = "mouth_wide"
	ChannelMouthPout = "mouth_pout"
)

const (
	// DefaultSilenceThreshold 是经验值：RMS 低于它就当没在说话。
	DefaultSilenceThreshold = 0.04

	DefaultGain = 1.0

	// DefaultCap keeps the mouth from opening to a cartoonish maximum.
	DefaultCap = 0.7

	// defaultDecayPerSecond drives the mouth toward closed when there is
	// no audio, instead of snapping shut on a segment boundary.
	defaultDecayPerSecond = 6.0

	auxWideShare = 0.3
	auxPoutShare = 0.2
)

// SampleSource exposes the live time-domain amplitude buffer of the
// chunk currently sounding. Samples returns nil when nothing plays.
type SampleSource interface {
	Samples() []float64
}

// ChannelSink receives the computed mouth weights,
// typically ExpressionBlender.SetChannel.
type ChannelSink func(channel string, weight float64)

// Analyzer samples the source once per frame and drives the mouth
// channels: direct attack when the value rises, timed decay when the
// audio goes quiet or stops.
type Analyzer struct {
	SilenceThreshold float64
	Gain             float64
	Cap              float64

	src  SampleSource
	sink ChannelSink

	current map[string]float64
}

func NewAnalyzer(src SampleSource, sink ChannelSink) *Analyzer {
	return &Analyzer{
		SilenceThreshold: DefaultSilenceThreshold,
		Gain:             DefaultGain,
		Cap:              DefaultCap,
		src:              src,
		sink:             sink,
		current: map[string]float64{
			ChannelMouthOpen: 0,
			ChannelMouthWide: 0,
			ChannelMouthPout: 0,
		},
	}
}

// RMS is the root mean square of a normalized sample buffer.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Value maps an RMS amplitude onto the primary mouth weight:
// perceptual sqrt scaling, capped.
func (a *Analyzer) Value(rms float64) float64 {
	if rms < a.SilenceThreshold {
		return 0
	}
	return math.Min(math.Sqrt(rms)*a.Gain, a.Cap)
}

// Update runs one frame of analysis. delta is the frame time in seconds.
func (a *Analyzer) Update(delta float64) {
	value := a.Value(RMS(a.src.Samples()))

	a.drive(ChannelMouthOpen, value, delta)
	a.drive(ChannelMouthWide, value*auxWideShare, delta)
	a.drive(ChannelMouthPout, value*auxPoutShare, delta)
}

// drive moves one channel toward target: instantly upward (the mouth
// opens on the attack), decaying downward.
func (a *Analyzer) drive(channel string, target, delta float64) {
	cur := a.current[channel]
	if target >= cur {
		cur = target
	} else {
		cur -= defaultDecayPerSecond * delta
		if cur < target {
			cur = target
		}
	}
	a.current[channel] = cur
	a.sink(channel, cur)
}

// Channels lists the mouth channels the analyzer writes, so callers
// can Reserve them on the expression blender.
func Channels() []string {
	return []string{ChannelMouthOpen, ChannelMouthWide, ChannelMouthPout}
}
