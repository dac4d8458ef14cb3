package extractor

import (
	"context"
	"fmt"

	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"github.com/pkg/errors"
)

// Playback CDN requirements. They belong to the CDN, not to whichever
// extractor produced the stream.
const (
	PlaybackReferer  = "https://megacloud.club/"
	PlaybackOrigin   = "https://megacloud.club"
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"
	EdgeUserAgent    = DesktopUserAgent + " Edg/139.0.0.0"
)

// Coordinator runs the primary extractor and, when it fails or yields nothing
// playable, the fallback exactly once.
type Coordinator struct {
	primary  Extractor
	fallback Extractor
}

// NewCoordinator creates a coordinator. fallback may be nil.
func NewCoordinator(primary, fallback Extractor) *Coordinator {
	return &Coordinator{primary: primary, fallback: fallback}
}

// Resolve returns the first usable sources payload. The fallback result is
// accepted as is. When both attempts fail the error wraps ErrPlaybackFailed.
func (c *Coordinator) Resolve(ctx context.Context, embedURL string) (*Sources, error) {
	if embedURL == "" {
		return nil, errors.Wrap(ErrPlaybackFailed, "empty embed url")
	}

	data, err := c.primary.Extract(ctx, embedURL)
	if err == nil && data.usable() {
		return data, nil
	}
	if err == nil {
		err = ErrNoUsableData
	}
	util.Warn("Primary extractor failed", "extractor", c.primary.Name(), "error", err)

	if c.fallback == nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPlaybackFailed, c.primary.Name(), err)
	}

	util.Debug("Trying fallback extractor", "extractor", c.fallback.Name())
	data, ferr := c.fallback.Extract(ctx, embedURL)
	if ferr != nil {
		return nil, fmt.Errorf("%w: %s: %v; %s: %w", ErrPlaybackFailed, c.primary.Name(), err, c.fallback.Name(), ferr)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s returned nothing", ErrPlaybackFailed, c.fallback.Name())
	}
	return data, nil
}

// BuildServer resolves embedURL and shapes the result into an EpisodeServer
// with the CDN playback headers. userAgent overrides DesktopUserAgent when set.
func (c *Coordinator) BuildServer(ctx context.Context, embedURL, serverName, userAgent string) (*models.EpisodeServer, error) {
	data, err := c.Resolve(ctx, embedURL)
	if err != nil {
		return nil, err
	}

	stream, err := SelectStream(data.Sources)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	server := &models.EpisodeServer{
		Server:  serverName,
		Headers: PlaybackHeaders(userAgent),
		VideoSources: []models.VideoSource{{
			URL:       stream.File,
			Type:      stream.Type,
			Quality:   "auto",
			Subtitles: CaptionSubtitles(data.Tracks),
		}},
	}
	if data.Intro.Valid() {
		server.Intro = data.Intro
	}
	if data.Outro.Valid() {
		server.Outro = data.Outro
	}
	return server, nil
}

// SelectStream prefers an HLS source and falls back to MP4
func SelectStream(sources []Source) (Source, error) {
	for _, want := range []string{models.SourceHLS, models.SourceMP4} {
		for _, s := range sources {
			if s.Type == want && s.File != "" {
				return s, nil
			}
		}
	}
	return Source{}, ErrNoStream
}

// CaptionSubtitles keeps caption tracks and numbers them sub-0, sub-1, ...
func CaptionSubtitles(tracks []Track) []models.Subtitle {
	subtitles := make([]models.Subtitle, 0, len(tracks))
	for _, t := range tracks {
		if t.Kind != "captions" {
			continue
		}
		language := t.Label
		if language == "" {
			language = "Unknown"
		}
		subtitles = append(subtitles, models.Subtitle{
			ID:        fmt.Sprintf("sub-%d", len(subtitles)),
			Language:  language,
			URL:       t.File,
			IsDefault: t.Default,
		})
	}
	return subtitles
}

// PlaybackHeaders returns the headers the playback CDN requires
func PlaybackHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = DesktopUserAgent
	}
	return map[string]string{
		"Referer":    PlaybackReferer,
		"Origin":     PlaybackOrigin,
		"User-Agent": userAgent,
	}
}
