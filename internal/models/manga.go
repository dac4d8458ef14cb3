package models

// MangaSearchResult is one entry of a manga provider search
type MangaSearchResult struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	AltTitles []string `json:"altTitles,omitempty"`
	Image     string   `json:"image,omitempty"`
}

// MangaChapter is one chapter of a manga. Index is dense 0..N-1 after sorting.
type MangaChapter struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Chapter   string `json:"chapter"`
	Index     int    `json:"index"`
	Scanlator string `json:"scanlator,omitempty"`
	Language  string `json:"language,omitempty"`
}

// MangaPage is one image of a chapter
type MangaPage struct {
	URL     string            `json:"url"`
	Index   int               `json:"index"`
	Headers map[string]string `json:"headers,omitempty"`
}
