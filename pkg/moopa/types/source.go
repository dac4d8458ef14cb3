package types

import (
	"fmt"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/internal/scraper"
)

// Source represents a catalog provider
type Source int

const (
	// SourceHiAnime represents the HiAnime anime catalog
	SourceHiAnime Source = iota
	// SourceAniCrush represents the AniCrush anime catalog
	SourceAniCrush
	// SourceComix represents the Comix manga catalog
	SourceComix
)

// String returns the display name of the source
func (s Source) String() string {
	switch s {
	case SourceHiAnime:
		return "HiAnime"
	case SourceAniCrush:
		return "AniCrush"
	case SourceComix:
		return "Comix"
	default:
		return "Unknown"
	}
}

// ProviderName returns the registry name used by the resolver
func (s Source) ProviderName() string {
	switch s {
	case SourceAniCrush:
		return scraper.AniCrushName
	case SourceComix:
		return scraper.ComixName
	default:
		return scraper.HiAnimeName
	}
}

// IsManga reports whether the source is a manga catalog
func (s Source) IsManga() bool {
	return s == SourceComix
}

// ParseSource parses a provider name or legacy alias (source1, source2)
func ParseSource(s string) (Source, error) {
	switch scraper.ResolveSourceAlias(strings.TrimSpace(s)) {
	case scraper.HiAnimeName:
		return SourceHiAnime, nil
	case scraper.AniCrushName:
		return SourceAniCrush, nil
	case scraper.ComixName:
		return SourceComix, nil
	default:
		return SourceHiAnime, fmt.Errorf("unknown source: %s", s)
	}
}
