// Package types provides the public type definitions of the moopa library
package types

import (
	"github.com/Ani-Moopa/moopa-resolver/internal/models"
)

// Media is the AniList description of a work
type Media = models.MediaInfo

// StartDate is a possibly partial release date
type StartDate = models.StartDate

// SearchQuery is one lookup against a provider catalog
type SearchQuery = models.SearchQuery

// MatchResult is a matched anime catalog entry. Its ID is "{providerId}/{sub|dub}".
type MatchResult = models.MatchResult

// Episode is one episode of a matched title
type Episode = models.Episode

// EpisodeTracks groups the sub and dub episodes of one title
type EpisodeTracks = models.EpisodeTracks

// EpisodeServer is a resolved playback source with its headers and skip times
type EpisodeServer = models.EpisodeServer

// VideoSource is a playable stream
type VideoSource = models.VideoSource

// Subtitle is one caption track
type Subtitle = models.Subtitle

// Skip is an intro or outro interval in seconds
type Skip = models.Skip

// MangaSearchResult is one manga search entry
type MangaSearchResult = models.MangaSearchResult

// MangaChapter is one chapter of a manga
type MangaChapter = models.MangaChapter

// MangaPage is one image of a chapter
type MangaPage = models.MangaPage

// Mapping is a remembered AniList to provider match
type Mapping = models.Mapping

// SubOrDub identifies an audio track
type SubOrDub = models.SubOrDub

const (
	Sub = models.Sub
	Dub = models.Dub
)
