package models

// SubOrDub identifies the audio track of a catalog entry
type SubOrDub string

const (
	Sub SubOrDub = "sub"
	Dub SubOrDub = "dub"
)

// Valid reports whether the marker is one of the known tracks
func (s SubOrDub) Valid() bool {
	return s == Sub || s == Dub
}

// Episode is the provider-independent episode shape.
// Number orders episodes within one track and is not guaranteed unique.
type Episode struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"img,omitempty"`
}

// EpisodeTracks groups the sub and dub episode lists of one title.
// ProviderID is the provider name; CatalogID is the provider's own id of the title.
type EpisodeTracks struct {
	ProviderID string    `json:"providerId"`
	CatalogID  string    `json:"catalogId,omitempty"`
	Sub        []Episode `json:"sub"`
	Dub        []Episode `json:"dub"`
}

// Subtitle is one caption track of a video source
type Subtitle struct {
	ID        string `json:"id"`
	Language  string `json:"language"`
	URL       string `json:"url"`
	IsDefault bool   `json:"isDefault"`
}

// VideoSource is a playable stream
type VideoSource struct {
	URL       string     `json:"url"`
	Type      string     `json:"type"`
	Quality   string     `json:"quality"`
	Subtitles []Subtitle `json:"subtitles"`
}

// Stream types
const (
	SourceHLS = "hls"
	SourceMP4 = "mp4"
)

// EpisodeServer is a resolved playback source. It is never cached.
type EpisodeServer struct {
	Server       string            `json:"server"`
	Headers      map[string]string `json:"headers"`
	VideoSources []VideoSource     `json:"videoSources"`
	Intro        *Skip             `json:"intro,omitempty"`
	Outro        *Skip             `json:"outro,omitempty"`
}
