// Package extract finds a single bilibili reference inside an inbound chat
// event. It performs no I/O.
package extract

import (
	"regexp"
	"strings"

	"linkrelay/internal/domain"

	"github.com/tidwall/gjson"
)

// SegmentCard is the segment type that carries a mini-app card payload.
const SegmentCard = "json"

// BilibiliAppID is the mini-app id QQ assigns to bilibili share cards.
const BilibiliAppID = "1109937557"

var (
	shortLinkPattern = regexp.MustCompile(`https?://(?:b23\.tv|bili2233\.cn)/[A-Za-z0-9]+`)
	videoURLPattern  = regexp.MustCompile(`https?://(?:www\.|m\.)?bilibili\.com/video/(?:BV[0-9A-Za-z]{10}|av\d+)[\w\-./?=&%#~+:]*`)
)

// Strategy looks for a reference in ev and reports whether it found one.
type Strategy func(ev domain.InboundEvent) (domain.ExtractedReference, bool)

// Strategies lists the extraction strategies in priority order.
var Strategies = []Strategy{
	FromCard,
	FromShortLink,
	FromVideoURL,
}

// Extract runs the strategies in order and returns the first match. At most
// one reference is taken from an event, even when it contains several.
func Extract(ev domain.InboundEvent) (domain.ExtractedReference, bool) {
	for _, s := range Strategies {
		if ref, ok := s(ev); ok {
			return ref, true
		}
	}
	return domain.ExtractedReference{}, false
}

// FromCard reads the first bilibili mini-app card among the segments.
// Malformed payloads are treated as no match.
func FromCard(ev domain.InboundEvent) (domain.ExtractedReference, bool) {
	for _, seg := range ev.Segments {
		if seg.Type != SegmentCard {
			continue
		}
		payload, _ := seg.Data["data"].(string)
		if u, ok := cardURL(payload); ok {
			return domain.ExtractedReference{
				URL:                u,
				Provenance:         domain.ProvenanceCard,
				NeedsNormalization: true,
			}, true
		}
	}
	return domain.ExtractedReference{}, false
}

func cardURL(payload string) (string, bool) {
	if payload == "" || !gjson.Valid(payload) {
		return "", false
	}
	detail := gjson.Get(payload, "meta.detail_1")
	if detail.IsObject() && detail.Get("appid").String() == BilibiliAppID {
		if u := strings.TrimSpace(detail.Get("qqdocurl").String()); u != "" {
			return u, true
		}
	}
	// Structured "news" shares from the bilibili HD client.
	news := gjson.Get(payload, "meta.news")
	if news.IsObject() && strings.Contains(news.Get("tag").String(), "哔哩哔哩") {
		if u := strings.TrimSpace(news.Get("jumpUrl").String()); u != "" {
			return u, true
		}
	}
	return "", false
}

// FromShortLink matches the first b23.tv style short link in the raw text.
// Short links are normalized only after their redirect is resolved.
func FromShortLink(ev domain.InboundEvent) (domain.ExtractedReference, bool) {
	m := shortLinkPattern.FindString(ev.RawText)
	if m == "" {
		return domain.ExtractedReference{}, false
	}
	return domain.ExtractedReference{URL: m, Provenance: domain.ProvenanceInline}, true
}

// FromVideoURL matches the first canonical video URL in the raw text.
func FromVideoURL(ev domain.InboundEvent) (domain.ExtractedReference, bool) {
	m := videoURLPattern.FindString(ev.RawText)
	if m == "" {
		return domain.ExtractedReference{}, false
	}
	return domain.ExtractedReference{
		URL:                m,
		Provenance:         domain.ProvenanceInline,
		NeedsNormalization: true,
	}, true
}
