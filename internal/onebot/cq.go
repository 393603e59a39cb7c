package onebot

import (
	"strings"

	"linkrelay/internal/domain"
)

var (
	cqTextUnescaper  = strings.NewReplacer("&#91;", "[", "&#93;", "]", "&amp;", "&")
	cqParamUnescaper = strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&")
)

// parseCQ splits a CQ-string message into segments. Plain runs become
// "text" segments; each [CQ:type,key=value,...] becomes a segment of that
// type with unescaped parameter values. An unterminated code is kept as text.
func parseCQ(s string) []domain.Segment {
	var segments []domain.Segment
	addText := func(t string) {
		if t != "" {
			segments = append(segments, domain.Segment{
				Type: "text",
				Data: map[string]any{"text": cqTextUnescaper.Replace(t)},
			})
		}
	}

	for s != "" {
		start := strings.Index(s, "[CQ:")
		if start < 0 {
			addText(s)
			break
		}
		end := strings.IndexByte(s[start:], ']')
		if end < 0 {
			addText(s)
			break
		}
		addText(s[:start])
		segments = append(segments, cqSegment(s[start+len("[CQ:"):start+end]))
		s = s[start+end+1:]
	}
	return segments
}

// cqSegment decodes the body of a CQ code, e.g. "json,data=...".
func cqSegment(body string) domain.Segment {
	typ, params, _ := strings.Cut(body, ",")
	seg := domain.Segment{Type: typ, Data: map[string]any{}}
	if params == "" {
		return seg
	}
	for _, kv := range strings.Split(params, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		seg.Data[k] = cqParamUnescaper.Replace(v)
	}
	return seg
}
