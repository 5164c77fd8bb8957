// Package markup extracts inline [State:xxx] / [Action:xxx] markers
// from a segment's text.
package markup

import (
	"regexp"
	"strings"

	"avatardriver/model"
)

// token grammar: [Kind:value], value 里不允许再嵌套方括号和冒号
var (
	tokenRegexp = regexp.MustCompile(`\[([A-Za-z]+):([^\[\]:]+)\]`)
	// stripRegexp swallows the whitespace around a token so its removal
	// leaves a single space, without touching spacing elsewhere
	stripRegexp = regexp.MustCompile(`\s*\[([A-Za-z]+):([^\[\]:]+)\]\s*`)
)

// Parse strips every [Kind:value] token from raw and returns the plain
// text plus the markers in left-to-right order.
//
// Unknown kinds are removed from the text but not surfaced as markers.
// (They match the generic bracket grammar, so leaving them in the
// subtitle would leak garbage to the viewer.)
func Parse(raw string) (plain string, markups []model.TimedMarkup) {
	for _, m := range tokenRegexp.FindAllStringSubmatch(raw, -1) {
		kind := model.MarkupKindOf(m[1])
		if kind == model.MarkupUnknown {
			continue
		}
		markups = append(markups, model.TimedMarkup{Kind: kind, Value: m[2]})
	}

	plain = strings.TrimSpace(stripRegexp.ReplaceAllString(raw, " "))

	return plain, markups
}

// ParseSegment derives the immutable ParsedSegment from an AudioSegment.
func ParseSegment(seg *model.AudioSegment) *model.ParsedSegment {
	plain, markups := Parse(seg.MarkedText)
	return &model.ParsedSegment{
		SequenceIndex: seg.SequenceIndex,
		PlainText:     plain,
		Markups:       markups,
		AudioURL:      seg.AudioURL,
	}
}
