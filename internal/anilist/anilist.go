// Package anilist looks up canonical media descriptions on the AniList GraphQL API
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
)

// DefaultURL is the public AniList GraphQL endpoint
const DefaultURL = "https://graphql.anilist.co"

// ErrMediaNotFound is returned when AniList has no entry for the id
var ErrMediaNotFound = errors.New("media not found on AniList")

// Only declared variables are sent; unused ones make AniList answer 400.
const mediaQuery = `query ($id: Int) {
	Media(id: $id) {
		id
		format
		episodes
		synonyms
		title { romaji english native }
		startDate { year month day }
	}
}`

const malQuery = `query ($malId: Int, $type: MediaType) {
	Media(idMal: $malId, type: $type) {
		id
		format
		episodes
		synonyms
		title { romaji english native }
		startDate { year month day }
	}
}`

// Client queries AniList
type Client struct {
	client *http.Client
	url    string
}

// New creates an AniList client. An empty url selects DefaultURL.
func New(client *http.Client, url string) *Client {
	if client == nil {
		client = util.GetSharedClient()
	}
	if url == "" {
		url = DefaultURL
	}
	return &Client{client: client, url: url}
}

type mediaResponse struct {
	Data struct {
		Media *struct {
			ID       int      `json:"id"`
			Format   string   `json:"format"`
			Episodes int      `json:"episodes"`
			Synonyms []string `json:"synonyms"`
			Title    struct {
				Romaji  string `json:"romaji"`
				English string `json:"english"`
				Native  string `json:"native"`
			} `json:"title"`
			StartDate struct {
				Year  *int `json:"year"`
				Month *int `json:"month"`
				Day   *int `json:"day"`
			} `json:"startDate"`
		} `json:"Media"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

// Media fetches the media with the given AniList id
func (c *Client) Media(ctx context.Context, id int) (*models.MediaInfo, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: anilist id %d", models.ErrInvalidID, id)
	}
	return c.query(ctx, mediaQuery, map[string]interface{}{"id": id})
}

// MediaByMAL fetches the media mapped to a MyAnimeList id. mediaType is ANIME or MANGA.
func (c *Client) MediaByMAL(ctx context.Context, malID int, mediaType string) (*models.MediaInfo, error) {
	if malID <= 0 {
		return nil, fmt.Errorf("%w: mal id %d", models.ErrInvalidID, malID)
	}
	if mediaType == "" {
		mediaType = "ANIME"
	}
	return c.query(ctx, malQuery, map[string]interface{}{"malId": malID, "type": strings.ToUpper(mediaType)})
}

func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}) (*models.MediaInfo, error) {
	jsonData, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("JSON marshal failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	util.Debug("AniList query", "url", c.url, "variables", variables)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AniList request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("AniList returned: %s", resp.Status)
		}
		return nil, fmt.Errorf("JSON decode failed: %w", err)
	}

	// AniList answers 404 with an errors array for unknown ids
	if resp.StatusCode == http.StatusNotFound || (result.Data.Media == nil && len(result.Errors) > 0 && result.Errors[0].Status == http.StatusNotFound) {
		return nil, ErrMediaNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AniList returned: %s", resp.Status)
	}
	if result.Data.Media == nil || result.Data.Media.ID == 0 {
		return nil, ErrMediaNotFound
	}

	m := result.Data.Media
	info := &models.MediaInfo{
		AnilistID:    m.ID,
		RomajiTitle:  m.Title.Romaji,
		EnglishTitle: m.Title.English,
		NativeTitle:  m.Title.Native,
		Synonyms:     m.Synonyms,
		Format:       m.Format,
		Episodes:     m.Episodes,
	}
	if m.StartDate.Year != nil {
		info.StartDate = &models.StartDate{Year: *m.StartDate.Year}
		if m.StartDate.Month != nil {
			info.StartDate.Month = *m.StartDate.Month
		}
		if m.StartDate.Day != nil {
			info.StartDate.Day = *m.StartDate.Day
		}
	}
	return info, nil
}

// SearchQuery builds the provider query for a media. The romaji title is the
// search keyword, falling back to the English title.
func SearchQuery(media *models.MediaInfo, dub bool) models.SearchQuery {
	keyword := media.RomajiTitle
	if keyword == "" {
		keyword = media.EnglishTitle
	}
	return models.SearchQuery{Query: keyword, Dub: dub, Media: *media}
}
