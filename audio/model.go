package audio

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// NetworkState is the fetch axis of the player's state.
type NetworkState int

const (
	NetIdle NetworkState = iota
	NetFetching
	NetFinished
)

func (s NetworkState) String() string {
	switch s {
	case NetFetching:
		return "Fetching"
	case NetFinished:
		return "Finished"
	}
	return "Idle"
}

// PlayStatus: start | end | err, reported on the channel returned by
// StreamPlayer.Play.
type PlayStatus string

const (
	PlayStatusStart PlayStatus = "start"
	PlayStatusEnd   PlayStatus = "end"
	PlayStatusErr   PlayStatus = "err"
)

// Buffer is one decoded chunk: normalized samples in [-1,1].
type Buffer struct {
	Samples    []float64
	SampleRate int
}

func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Chunk is one fetched-and-decoded slice of an utterance.
// Data is kept alongside Buffer: the avatarview needs the raw bytes,
// lip sync needs the samples.
type Chunk struct {
	Index  int
	Data   []byte
	Buffer *Buffer
}

// Identity derives the utterance identity for a URL.
// Same URL, same identity: that is what makes the buffer cache and
// the resume paths work.
func Identity(url string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(url)))
}

// Message is the command msg exchanged with the avatarview over ws.
type Message struct {
	Cmd  string `json:"cmd"`
	Data any    `json:"data,omitempty"` // Track | Report
}

// Track is one audio playing task sent to the avatarview.
type Track struct {
	ID     string  `json:"id"` // identifies the track in start/end reports
	Src    string  `json:"src"`
	Format string  `json:"format,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

// Report is sent back from the avatarview.
type Report struct {
	ID     string     `json:"id" mapstructure:"id"`
	Status PlayStatus `json:"status" mapstructure:"status"`
}

func ReportStart(id string) *Report {
	return &Report{ID: id, Status: PlayStatusStart}
}

func ReportEnd(id string) *Report {
	return &Report{ID: id, Status: PlayStatusEnd}
}

func (r *Report) String() string {
	return fmt.Sprintf("Report(%s: %s)", r.ID, r.Status)
}

// cmds
const (
	CmdPlayVocal = "playVocal"
	CmdStop      = "stop"
	CmdReset     = "reset"
)

// Base64EncodeAudio packs audio bytes into a data url:
//
//	"data:[<mediatype>][;base64],<data>"
func Base64EncodeAudio(format string, audio []byte) string {
	var dataurl strings.Builder
	dataurl.WriteString("data:")
	dataurl.WriteString(format)
	dataurl.WriteString(";base64,")
	dataurl.WriteString(base64.StdEncoding.EncodeToString(audio))
	return dataurl.String()
}
