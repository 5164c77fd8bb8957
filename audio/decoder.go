package audio

import (
	"encoding/binary"
	"fmt"
)

// Decoder turns one fetched chunk into playable samples.
// Format negotiation beyond this is not our business: the avatarview's
// audio subsystem handles whatever codec its platform supports.
type Decoder interface {
	Decode(data []byte) (*Buffer, error)
}

const DefaultSampleRate = 24000

// PCM16Decoder decodes 16-bit little-endian mono PCM, the wire format
// the TTS backends emit.
type PCM16Decoder struct {
	SampleRate int
}

func NewPCM16Decoder(sampleRate int) PCM16Decoder {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return PCM16Decoder{SampleRate: sampleRate}
}

func (d PCM16Decoder) Decode(data []byte) (*Buffer, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm16 decode: odd payload length %d", len(data))
	}

	samples := make([]float64, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		samples[i] = float64(v) / 32768
	}

	return &Buffer{Samples: samples, SampleRate: d.SampleRate}, nil
}
