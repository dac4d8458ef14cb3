package models

import "time"

// Mapping records which catalog entry a provider matched for an AniList title and track
type Mapping struct {
	Provider  string    `json:"provider"`
	AnilistID int       `json:"anilistId"`
	Track     SubOrDub  `json:"track"`
	MatchID   string    `json:"matchId"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}
