package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/internal/extractor"
	"github.com/Ani-Moopa/moopa-resolver/internal/matcher"
	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
)

const (
	AniCrushName      = "anicrush"
	AniCrushSite      = "https://anicrush.to"
	AniCrushAPI       = "https://api.anicrush.to"
	AniCrushUserAgent = "Mozilla/5.0"
)

// aniCrushServers maps server names to the sv parameter of the sources endpoint
var aniCrushServers = map[string]int{
	"Southcloud-1": 4,
	"Southcloud-2": 1,
	"Southcloud-3": 6,
}

const aniCrushDefaultServerID = 4

var leadingNumber = regexp.MustCompile(`^\d+`)

// AniCrushClient handles interactions with the AniCrush JSON API. Episode ids
// are the anime-level composite id; the episode is chosen by number when the
// source is requested.
type AniCrushClient struct {
	client      *http.Client
	siteURL     string
	apiURL      string
	matcher     *matcher.Matcher
	coordinator *extractor.Coordinator
}

// NewAniCrushClient creates a new AniCrush client. BaseURL is the public site,
// APIURL the JSON API host.
func NewAniCrushClient(opts Options) *AniCrushClient {
	return &AniCrushClient{
		client:      opts.httpClient(),
		siteURL:     strings.TrimRight(orDefault(opts.BaseURL, AniCrushSite), "/"),
		apiURL:      strings.TrimRight(orDefault(opts.APIURL, AniCrushAPI), "/"),
		matcher:     opts.matcher(),
		coordinator: opts.coordinator(),
	}
}

// Name implements AnimeProvider
func (c *AniCrushClient) Name() string { return AniCrushName }

// Servers implements AnimeProvider
func (c *AniCrushClient) Servers() []string {
	return []string{"Southcloud-1", "Southcloud-2", "Southcloud-3"}
}

type aniCrushMovie struct {
	ID          flexString `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	NameEnglish string     `json:"name_english"`
	HasDub      bool       `json:"has_dub"`
	AiredFrom   string     `json:"aired_from"`
}

type aniCrushEpisode struct {
	Number      flexString `json:"number"`
	Name        string     `json:"name"`
	NameEnglish string     `json:"name_english"`
}

// Search implements AnimeProvider. Dub queries only consider entries with a dub.
func (c *AniCrushClient) Search(ctx context.Context, query models.SearchQuery) ([]models.MatchResult, error) {
	searchURL := fmt.Sprintf("%s/shared/v2/movie/list?keyword=%s&limit=48&page=1", c.apiURL, url.QueryEscape(query.Query))
	util.Debug("AniCrush search", "url", searchURL)

	var reply struct {
		Result struct {
			Movies []aniCrushMovie `json:"movies"`
		} `json:"result"`
	}
	if err := fetchJSON(ctx, c.client, searchURL, c.headers(), &reply); err != nil {
		return nil, fmt.Errorf("anicrush search failed: %w", err)
	}

	candidates := c.toCandidates(reply.Result.Movies)
	if query.Dub {
		candidates = matcher.FilterDub(candidates)
	}

	matches, stage := c.matcher.Match(query, candidates)
	util.Debug("AniCrush search", "query", query.Query, "candidates", len(candidates), "stage", stage, "matches", len(matches))
	return matcher.Results(matches, query.SubOrDub()), nil
}

func (c *AniCrushClient) toCandidates(movies []aniCrushMovie) []models.CatalogCandidate {
	candidates := make([]models.CatalogCandidate, 0, len(movies))
	for _, m := range movies {
		id := m.ID.String()
		if id == "" {
			continue
		}
		title := m.NameEnglish
		if title == "" {
			title = m.Name
		}
		candidates = append(candidates, models.CatalogCandidate{
			ID:          id,
			PageURL:     fmt.Sprintf("%s/detail/%s.%s", c.siteURL, m.Slug, id),
			Title:       title,
			TitleNative: m.Name,
			SupportsDub: m.HasDub,
			StartDate:   parseAiredDate(m.AiredFrom),
		})
	}
	return candidates
}

// ListEpisodes implements AnimeProvider
func (c *AniCrushClient) ListEpisodes(ctx context.Context, catalogID string) ([]models.Episode, error) {
	id, track, err := models.SplitCatalogID(catalogID)
	if err != nil {
		return nil, err
	}

	listURL := fmt.Sprintf("%s/shared/v2/episode/list?_movieId=%s", c.apiURL, url.QueryEscape(id))
	util.Debug("AniCrush episode list", "url", listURL)

	var reply struct {
		Result json.RawMessage `json:"result"`
	}
	if err := fetchJSON(ctx, c.client, listURL, c.headers(), &reply); err != nil {
		return nil, fmt.Errorf("anicrush episode list failed: %w", err)
	}
	return parseAniCrushEpisodes(reply.Result, models.ComposeCatalogID(id, track))
}

// parseAniCrushEpisodes flattens the range-grouped episode payload. Groups are
// emitted in ascending order of their leading number; entries keep their order.
func parseAniCrushEpisodes(raw json.RawMessage, episodeID string) ([]models.Episode, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var groups map[string]json.RawMessage
	if err := json.Unmarshal(raw, &groups); err != nil {
		// some titles return a bare list
		var flat []aniCrushEpisode
		if ferr := json.Unmarshal(raw, &flat); ferr != nil {
			return nil, fmt.Errorf("failed to decode episode groups: %w", err)
		}
		return toAniCrushEpisodes(flat, episodeID), nil
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(leadingNumber.FindString(keys[i]))
		b, _ := strconv.Atoi(leadingNumber.FindString(keys[j]))
		if a != b {
			return a < b
		}
		return keys[i] < keys[j]
	})

	var episodes []models.Episode
	for _, k := range keys {
		var group []aniCrushEpisode
		if err := json.Unmarshal(groups[k], &group); err != nil {
			continue
		}
		episodes = append(episodes, toAniCrushEpisodes(group, episodeID)...)
	}
	return episodes, nil
}

func toAniCrushEpisodes(group []aniCrushEpisode, episodeID string) []models.Episode {
	episodes := make([]models.Episode, 0, len(group))
	for _, ep := range group {
		title := ep.NameEnglish
		if title == "" {
			title = ep.Name
		}
		episodes = append(episodes, models.Episode{
			ID:     episodeID,
			Number: ep.Number.Int(),
			Title:  strings.TrimSpace(title),
		})
	}
	return episodes
}

// ResolveServer implements AnimeProvider. The episode number selects the episode.
func (c *AniCrushClient) ResolveServer(ctx context.Context, episode models.Episode, server string) (*models.EpisodeServer, error) {
	id, track, err := models.SplitCatalogID(episode.ID)
	if err != nil {
		return nil, err
	}
	if episode.Number <= 0 {
		return nil, fmt.Errorf("%w: anicrush episodes are selected by number", models.ErrInvalidID)
	}
	serverName, sv := aniCrushServer(server)

	sourcesURL := fmt.Sprintf("%s/shared/v2/episode/sources?_movieId=%s&ep=%d&sv=%d&sc=%s",
		c.apiURL, url.QueryEscape(id), episode.Number, sv, track)

	var reply struct {
		Result struct {
			Link string `json:"link"`
		} `json:"result"`
	}
	if err := fetchJSON(ctx, c.client, sourcesURL, c.headers(), &reply); err != nil {
		return nil, fmt.Errorf("anicrush sources failed: %w", err)
	}
	if reply.Result.Link == "" {
		return nil, ErrNoEmbed
	}

	util.Debug("AniCrush embed resolved", "server", serverName, "episode", episode.Number, "embed", reply.Result.Link)
	return c.coordinator.BuildServer(ctx, reply.Result.Link, serverName, extractor.DesktopUserAgent)
}

// aniCrushServer maps a caller-facing name to the server id, defaulting to Southcloud-1
func aniCrushServer(name string) (string, int) {
	for known, sv := range aniCrushServers {
		if strings.EqualFold(known, name) {
			return known, sv
		}
	}
	return "Southcloud-1", aniCrushDefaultServerID
}

func (c *AniCrushClient) headers() map[string]string {
	return map[string]string{
		"User-Agent": AniCrushUserAgent,
		"Accept":     "application/json",
		"Referer":    c.siteURL + "/",
		"Origin":     c.siteURL,
		"X-Site":     "anicrush",
	}
}
