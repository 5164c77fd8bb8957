package markup

import (
	"reflect"
	"testing"

	"avatardriver/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantPlain   string
		wantMarkups []model.TimedMarkup
	}{
		{
			name:      "stateAndAction",
			raw:       "Hello [State:happy] world [Action:wave]!",
			wantPlain: "Hello world !",
			wantMarkups: []model.TimedMarkup{
				{Kind: model.MarkupState, Value: "happy"},
				{Kind: model.MarkupAction, Value: "wave"},
			},
		},
		{
			name:        "noMarkers",
			raw:         "just plain text",
			wantPlain:   "just plain text",
			wantMarkups: nil,
		},
		{
			name:      "markerAtStart",
			raw:       "[State:sad]oh no",
			wantPlain: "oh no",
			wantMarkups: []model.TimedMarkup{
				{Kind: model.MarkupState, Value: "sad"},
			},
		},
		{
			name:      "markerAtEnd",
			raw:       "bye bye [Action:bow]",
			wantPlain: "bye bye",
			wantMarkups: []model.TimedMarkup{
				{Kind: model.MarkupAction, Value: "bow"},
			},
		},
		{
			name:        "markerOnly",
			raw:         "[State:neutral]",
			wantPlain:   "",
			wantMarkups: []model.TimedMarkup{{Kind: model.MarkupState, Value: "neutral"}},
		},
		{
			name:        "unknownKindStripped",
			raw:         "a [Sound:ding] b",
			wantPlain:   "a b",
			wantMarkups: nil,
		},
		{
			name:        "unmatchedBracketKept",
			raw:         "a [not a marker] b",
			wantPlain:   "a [not a marker] b",
			wantMarkups: nil,
		},
		{
			name:      "orderPreserved",
			raw:       "[Action:wave][State:happy][Action:nod]",
			wantPlain: "",
			wantMarkups: []model.TimedMarkup{
				{Kind: model.MarkupAction, Value: "wave"},
				{Kind: model.MarkupState, Value: "happy"},
				{Kind: model.MarkupAction, Value: "nod"},
			},
		},
		{
			name:        "interiorWhitespaceUntouched",
			raw:         "a  b\nc",
			wantPlain:   "a  b\nc",
			wantMarkups: nil,
		},
		{
			name:      "collapseOnlyAroundTokens",
			raw:       "a  b [State:happy]  c",
			wantPlain: "a  b c",
			wantMarkups: []model.TimedMarkup{
				{Kind: model.MarkupState, Value: "happy"},
			},
		},
		{
			name:        "emptyString",
			raw:         "",
			wantPlain:   "",
			wantMarkups: nil,
		},
		{
			name:      "cjkText",
			raw:       "你好[State:happy]世界",
			wantPlain: "你好 世界",
			wantMarkups: []model.TimedMarkup{
				{Kind: model.MarkupState, Value: "happy"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain, markups := Parse(tt.raw)
			if plain != tt.wantPlain {
				t.Errorf("Parse() plain = %q, want %q", plain, tt.wantPlain)
			}
			if !reflect.DeepEqual(markups, tt.wantMarkups) {
				t.Errorf("Parse() markups = %v, want %v", markups, tt.wantMarkups)
			}
		})
	}
}

func TestParseSegment(t *testing.T) {
	seg := &model.AudioSegment{
		SequenceIndex: 3,
		MarkedText:    "[State:happy] Hi",
		AudioURL:      "http://example.com/a.wav",
	}
	parsed := ParseSegment(seg)

	if parsed.SequenceIndex != 3 {
		t.Errorf("SequenceIndex = %d, want 3", parsed.SequenceIndex)
	}
	if parsed.PlainText != "Hi" {
		t.Errorf("PlainText = %q, want %q", parsed.PlainText, "Hi")
	}
	if parsed.AudioURL != seg.AudioURL {
		t.Errorf("AudioURL = %q, want %q", parsed.AudioURL, seg.AudioURL)
	}
	if len(parsed.Markups) != 1 || parsed.Markups[0].Kind != model.MarkupState {
		t.Errorf("Markups = %v, want one State marker", parsed.Markups)
	}
}
