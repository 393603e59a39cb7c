package domain

// Provenance records where in an event a reference was found.
type Provenance string

const (
	ProvenanceCard   Provenance = "embedded-card"
	ProvenanceInline Provenance = "inline-text"
)

// ExtractedReference is a link to the content platform found in an event.
type ExtractedReference struct {
	URL                string
	Provenance         Provenance
	NeedsNormalization bool
}

// Stats holds the public counters of a video.
type Stats struct {
	Views     int64
	Danmaku   int64
	Replies   int64
	Favorites int64
	Coins     int64
	Shares    int64
	Likes     int64
}

// ContentMetadata is the subset of video metadata rendered in a summary.
type ContentMetadata struct {
	Title        string
	BVID         string
	Thumbnail    string
	CategoryCode int
	AuthorName   string
	Stats        Stats
}
