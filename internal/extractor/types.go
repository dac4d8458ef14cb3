// Package extractor recovers playable media URLs from third-party embed pages.
// The MegaCloud extractor performs the embed key exchange; the relay forwards the
// embed URL to a decrypt service; the Coordinator chains them.
package extractor

import (
	"context"

	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/pkg/errors"
)

// Extraction failures. They are handled by the Coordinator and only reach
// callers wrapped in ErrPlaybackFailed.
var (
	ErrFileIDNotFound = errors.New("file_id not found in embed page")
	ErrNonceNotFound  = errors.New("nonce not found")
	ErrNoUsableData   = errors.New("extractor returned no usable sources")
)

// Terminal failures surfaced to callers
var (
	ErrPlaybackFailed = errors.New("playback failed")
	ErrNoStream       = errors.New("no valid stream file found")
)

// Source is one stream entry of a sources payload
type Source struct {
	File string `json:"file"`
	Type string `json:"type"`
}

// Track is one text track of a sources payload
type Track struct {
	File    string `json:"file"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Default bool   `json:"default"`
}

// Sources is the payload shared by the embed getSources endpoint and the relay
type Sources struct {
	Sources []Source     `json:"sources"`
	Tracks  []Track      `json:"tracks"`
	Intro   *models.Skip `json:"intro"`
	Outro   *models.Skip `json:"outro"`
}

// Extractor turns an embed URL into a sources payload
type Extractor interface {
	Name() string
	Extract(ctx context.Context, embedURL string) (*Sources, error)
}

// usable reports whether the payload carries a stream we can play
func (s *Sources) usable() bool {
	if s == nil {
		return false
	}
	_, err := SelectStream(s.Sources)
	return err == nil
}
