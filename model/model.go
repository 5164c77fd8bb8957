package model

// AudioSegment 是外部对话管线送来的一段话：
// 带内联标记的文本 + 可选的合成语音 URL。
type AudioSegment struct {
	SequenceIndex int    `json:"sequence_index"`
	MarkedText    string `json:"marked_text"`
	AudioURL      string `json:"audio_url,omitempty"` // empty: 这段没有语音，只有标记
}

// MarkupKind is a closed set of inline marker kinds.
// Anything else found in the bracket grammar is MarkupUnknown
// and gets dropped by the parser.
type MarkupKind int

const (
	MarkupUnknown MarkupKind = iota
	MarkupState              // [State:name] sets a facial expression
	MarkupAction             // [Action:name] plays a non-looping motion clip
)

func (k MarkupKind) String() string {
	switch k {
	case MarkupState:
		return "State"
	case MarkupAction:
		return "Action"
	}
	return "Unknown"
}

// MarkupKindOf maps a raw token kind to MarkupKind.
func MarkupKindOf(s string) MarkupKind {
	switch s {
	case "State":
		return MarkupState
	case "Action":
		return MarkupAction
	}
	return MarkupUnknown
}

// TimedMarkup is one inline marker extracted from a segment's text.
// It carries no timestamp: all markers of a segment fire at the
// instant the segment's audio becomes audible.
type TimedMarkup struct {
	Kind  MarkupKind `json:"kind"`
	Value string     `json:"value"`
}

// ParsedSegment 是剥离了标记的 AudioSegment，只在这一段的播放期间存活。
type ParsedSegment struct {
	SequenceIndex int
	PlainText     string
	Markups       []TimedMarkup
	AudioURL      string
}
