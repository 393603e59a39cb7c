package bilibili

import (
	"fmt"
	"strconv"
	"strings"

	"linkrelay/internal/domain"
)

// VideoURL returns the canonical page URL of a video.
func VideoURL(bvid string) string {
	return "https://www.bilibili.com/video/" + bvid
}

// Format renders meta as a fixed-layout summary in OneBot CQ-string form.
// The output depends only on meta.
func Format(meta domain.ContentMetadata) string {
	s := meta.Stats
	var sb strings.Builder
	fmt.Fprintf(&sb, "[CQ:image,file=%s]\n", escapeCQParam(meta.Thumbnail))
	fmt.Fprintf(&sb, "%s\n", escapeCQText(meta.Title))
	fmt.Fprintf(&sb, "BV号：%s\n", meta.BVID)
	fmt.Fprintf(&sb, "UP主：%s\n", escapeCQText(meta.AuthorName))
	fmt.Fprintf(&sb, "分区：%s\n", CategoryName(meta.CategoryCode))
	fmt.Fprintf(&sb, "播放：%s  弹幕：%s\n", FormatCount(s.Views), FormatCount(s.Danmaku))
	fmt.Fprintf(&sb, "评论：%s  收藏：%s\n", FormatCount(s.Replies), FormatCount(s.Favorites))
	fmt.Fprintf(&sb, "投币：%s  分享：%s\n", FormatCount(s.Coins), FormatCount(s.Shares))
	fmt.Fprintf(&sb, "点赞：%s\n", FormatCount(s.Likes))
	sb.WriteString(VideoURL(meta.BVID))
	return sb.String()
}

// WithSignature appends a signature line to text when sig is non-empty.
func WithSignature(text, sig string) string {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return text
	}
	return text + "\n" + escapeCQText(sig)
}

// FormatCount renders n with 万 (1e4) and 亿 (1e8) units and two decimals;
// values below 1e4 are plain integers.
func FormatCount(n int64) string {
	switch {
	case n >= 100_000_000:
		return strconv.FormatFloat(float64(n)/1e8, 'f', 2, 64) + "亿"
	case n >= 10_000:
		return strconv.FormatFloat(float64(n)/1e4, 'f', 2, 64) + "万"
	default:
		return strconv.FormatInt(n, 10)
	}
}

var (
	cqTextEscaper  = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;")
	cqParamEscaper = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;", ",", "&#44;")
)

func escapeCQText(s string) string  { return cqTextEscaper.Replace(s) }
func escapeCQParam(s string) string { return cqParamEscaper.Replace(s) }
