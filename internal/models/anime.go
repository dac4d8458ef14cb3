// Package models contains the data structures shared by the matcher, scrapers and API
package models

// StartDate is a possibly partial calendar date. Zero fields are unknown.
type StartDate struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// HasYear reports whether the year is known
func (d *StartDate) HasYear() bool {
	return d != nil && d.Year > 0
}

// MediaInfo is the canonical description of a work as returned by the catalog service
type MediaInfo struct {
	AnilistID    int        `json:"anilistId,omitempty"`
	RomajiTitle  string     `json:"romajiTitle"`
	EnglishTitle string     `json:"englishTitle,omitempty"`
	NativeTitle  string     `json:"nativeTitle,omitempty"`
	Synonyms     []string   `json:"synonyms,omitempty"`
	Format       string     `json:"format,omitempty"`
	Episodes     int        `json:"episodes,omitempty"`
	StartDate    *StartDate `json:"startDate,omitempty"`
}

// SearchQuery is one lookup against a provider catalog
type SearchQuery struct {
	Query string    `json:"query"`
	Dub   bool      `json:"dub"`
	Media MediaInfo `json:"media"`
}

// SubOrDub returns the audio track marker for the query
func (q SearchQuery) SubOrDub() SubOrDub {
	if q.Dub {
		return Dub
	}
	return Sub
}

// CatalogCandidate is one entry of a provider's own search response, before matching
type CatalogCandidate struct {
	ID          string
	PageURL     string
	Title       string
	TitleNative string
	// Synonyms are compared like the native title. Manga catalogs fill them from alt titles.
	Synonyms    []string
	SupportsDub bool
	StartDate   StartDate
}

// MatchResult is a matched catalog entry. ID is "{providerId}/{sub|dub}".
type MatchResult struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	SubOrDub SubOrDub `json:"subOrDub"`
}
