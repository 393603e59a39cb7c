package extract

import (
	"testing"

	"linkrelay/internal/domain"
)

const cardPayload = `{"app":"com.tencent.miniapp_01","meta":{"detail_1":{"appid":"1109937557","title":"哔哩哔哩","desc":"test","qqdocurl":"https://b23.tv/cardLink?share_medium=android"}}}`

func cardEvent(payload string) domain.InboundEvent {
	return domain.InboundEvent{
		Kind:        domain.EventKindMessage,
		ChannelKind: domain.ChannelGroup,
		Segments: []domain.Segment{
			{Type: "text", Data: map[string]any{"text": "look"}},
			{Type: SegmentCard, Data: map[string]any{"data": payload}},
		},
	}
}

// --- FromCard ---

func TestExtract_Card(t *testing.T) {
	ref, ok := Extract(cardEvent(cardPayload))
	if !ok {
		t.Fatal("expected card reference")
	}
	if ref.URL != "https://b23.tv/cardLink?share_medium=android" {
		t.Fatalf("unexpected url %q", ref.URL)
	}
	if ref.Provenance != domain.ProvenanceCard || !ref.NeedsNormalization {
		t.Fatalf("unexpected tags %+v", ref)
	}
}

func TestExtract_CardWrongAppFallsThrough(t *testing.T) {
	payload := `{"meta":{"detail_1":{"appid":"100951776","qqdocurl":"https://example.com/x"}}}`
	ev := cardEvent(payload)
	ev.RawText = "see https://b23.tv/abcd"

	ref, ok := Extract(ev)
	if !ok {
		t.Fatal("expected fallthrough to short link")
	}
	if ref.URL != "https://b23.tv/abcd" || ref.Provenance != domain.ProvenanceInline {
		t.Fatalf("unexpected ref %+v", ref)
	}
}

func TestExtract_CardMalformedFallsThrough(t *testing.T) {
	for _, payload := range []string{`{not json`, ``, `[]`, `{"meta":"x"}`, `{"meta":{"detail_1":{"appid":"1109937557","qqdocurl":""}}}`} {
		ev := cardEvent(payload)
		ev.RawText = "https://www.bilibili.com/video/BV17x411w7KC?p=1"
		ref, ok := Extract(ev)
		if !ok {
			t.Fatalf("payload %q: expected fallthrough to canonical url", payload)
		}
		if ref.Provenance != domain.ProvenanceInline {
			t.Fatalf("payload %q: unexpected provenance %s", payload, ref.Provenance)
		}
	}
}

func TestExtract_CardNonStringData(t *testing.T) {
	ev := domain.InboundEvent{Segments: []domain.Segment{{Type: SegmentCard, Data: map[string]any{"data": 42}}}}
	if _, ok := Extract(ev); ok {
		t.Fatal("expected no reference")
	}
}

func TestExtract_NewsCard(t *testing.T) {
	payload := `{"meta":{"news":{"tag":"哔哩哔哩","jumpUrl":"https://b23.tv/news1"}}}`
	ref, ok := Extract(cardEvent(payload))
	if !ok || ref.URL != "https://b23.tv/news1" || ref.Provenance != domain.ProvenanceCard {
		t.Fatalf("unexpected result %+v %v", ref, ok)
	}
}

func TestExtract_CardBeatsText(t *testing.T) {
	ev := cardEvent(cardPayload)
	ev.RawText = "https://b23.tv/other"
	ref, _ := Extract(ev)
	if ref.Provenance != domain.ProvenanceCard {
		t.Fatalf("card strategy should win, got %+v", ref)
	}
}

// --- text strategies ---

func TestExtract_ShortLink(t *testing.T) {
	ref, ok := Extract(domain.InboundEvent{RawText: "快看 https://b23.tv/abcd 好东西"})
	if !ok {
		t.Fatal("expected short link")
	}
	if ref.URL != "https://b23.tv/abcd" || ref.NeedsNormalization {
		t.Fatalf("unexpected ref %+v", ref)
	}
}

func TestExtract_ShortLinkFirstWins(t *testing.T) {
	ref, _ := Extract(domain.InboundEvent{RawText: "http://b23.tv/first and https://b23.tv/second"})
	if ref.URL != "http://b23.tv/first" {
		t.Fatalf("expected first match, got %q", ref.URL)
	}
}

func TestExtract_ShortLinkBeatsCanonical(t *testing.T) {
	ev := domain.InboundEvent{RawText: "https://www.bilibili.com/video/BV17x411w7KC then https://b23.tv/abcd"}
	ref, _ := Extract(ev)
	if ref.URL != "https://b23.tv/abcd" {
		t.Fatalf("short link strategy should win, got %q", ref.URL)
	}
}

func TestExtract_CanonicalURL(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"https://www.bilibili.com/video/BV17x411w7KC/?spm_id_from=333.1007", "https://www.bilibili.com/video/BV17x411w7KC/?spm_id_from=333.1007"},
		{"看 http://bilibili.com/video/av170001 吧", "http://bilibili.com/video/av170001"},
		{"https://m.bilibili.com/video/BV17x411w7KC", "https://m.bilibili.com/video/BV17x411w7KC"},
	}
	for _, tt := range tests {
		ref, ok := Extract(domain.InboundEvent{RawText: tt.text})
		if !ok {
			t.Fatalf("%q: expected match", tt.text)
		}
		if ref.URL != tt.want || !ref.NeedsNormalization || ref.Provenance != domain.ProvenanceInline {
			t.Fatalf("%q: got %+v", tt.text, ref)
		}
	}
}

func TestExtract_NoMatch(t *testing.T) {
	for _, text := range []string{"", "hello", "https://www.bilibili.com/bangumi/play/ep1", "https://youtube.com/watch?v=x", "https://www.bilibili.com/video/BVshort"} {
		if ref, ok := Extract(domain.InboundEvent{RawText: text}); ok {
			t.Fatalf("%q: unexpected match %+v", text, ref)
		}
	}
}
