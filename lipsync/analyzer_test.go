package lipsync

import (
	"math"
	"testing"
)

type stubSource struct {
	samples []float64
}

func (s *stubSource) Samples() []float64 { return s.samples }

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func collectorSink(got map[string]float64) ChannelSink {
	return func(ch string, w float64) { got[ch] = w }
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{name: "empty", samples: nil, want: 0},
		{name: "silence", samples: constant(64, 0), want: 0},
		{name: "dc", samples: constant(64, 0.5), want: 0.5},
		{name: "alternating", samples: []float64{0.3, -0.3, 0.3, -0.3}, want: 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.samples); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyzer_SilenceGatesAllMouthChannels(t *testing.T) {
	src := &stubSource{samples: constant(128, 0.01)} // below threshold
	got := map[string]float64{}
	a := NewAnalyzer(src, collectorSink(got))

	// plenty of frames so any previous value would have decayed
	for i := 0; i < 60; i++ {
		a.Update(1.0 / 60)
	}

	for _, ch := range Channels() {
		if got[ch] != 0 {
			t.Errorf("channel %s = %v under silence, want 0", ch, got[ch])
		}
	}
}

func TestAnalyzer_ValueScalingAndCap(t *testing.T) {
	a := NewAnalyzer(&stubSource{}, func(string, float64) {})

	if got := a.Value(0.039); got != 0 {
		t.Errorf("Value below threshold = %v, want 0", got)
	}

	// sqrt(0.09) = 0.3 < cap
	if got := a.Value(0.09); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("Value(0.09) = %v, want 0.3", got)
	}

	// sqrt(0.81) = 0.9 > cap 0.7
	if got := a.Value(0.81); got != DefaultCap {
		t.Errorf("Value(0.81) = %v, want capped at %v", got, DefaultCap)
	}
}

func TestAnalyzer_PrimaryAndAuxDistribution(t *testing.T) {
	src := &stubSource{samples: constant(128, 0.25)} // rms 0.25, value 0.5
	got := map[string]float64{}
	a := NewAnalyzer(src, collectorSink(got))

	a.Update(1.0 / 60)

	if math.Abs(got[ChannelMouthOpen]-0.5) > 1e-9 {
		t.Errorf("%s = %v, want 0.5", ChannelMouthOpen, got[ChannelMouthOpen])
	}
	if got[ChannelMouthWide] >= got[ChannelMouthOpen] {
		t.Errorf("aux channel %s = %v, want smaller than primary %v",
			ChannelMouthWide, got[ChannelMouthWide], got[ChannelMouthOpen])
	}
	if got[ChannelMouthPout] >= got[ChannelMouthWide] {
		t.Errorf("aux channel %s = %v, want smaller than %v",
			ChannelMouthPout, got[ChannelMouthPout], got[ChannelMouthWide])
	}
}

func TestAnalyzer_DecaysInsteadOfSnapping(t *testing.T) {
	src := &stubSource{samples: constant(128, 0.25)}
	got := map[string]float64{}
	a := NewAnalyzer(src, collectorSink(got))

	a.Update(1.0 / 60)
	loud := got[ChannelMouthOpen]
	if loud == 0 {
		t.Fatal("expected a non-zero mouth weight while audio plays")
	}

	// playback stops: the mouth should close gradually, not jump to 0
	src.samples = nil
	a.Update(1.0 / 60)
	after := got[ChannelMouthOpen]
	if after == 0 {
		t.Error("mouth snapped shut in a single frame")
	}
	if after >= loud {
		t.Errorf("mouth weight did not decay: %v -> %v", loud, after)
	}

	for i := 0; i < 120; i++ {
		a.Update(1.0 / 60)
	}
	if got[ChannelMouthOpen] != 0 {
		t.Errorf("mouth weight = %v after long silence, want 0", got[ChannelMouthOpen])
	}
}
