package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/internal/extractor"
	"github.com/Ani-Moopa/moopa-resolver/internal/matcher"
	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"github.com/PuerkitoBio/goquery"
)

const (
	HiAnimeName          = "hianime"
	HiAnimeBase          = "https://hianime.to"
	HiAnimeDefaultServer = "HD-1"
)

var trailingNumericID = regexp.MustCompile(`-(\d+)$`)

// HiAnimeClient handles interactions with HiAnime. Its listing endpoints
// return HTML fragments wrapped in JSON; episode ids are per episode.
type HiAnimeClient struct {
	client      *http.Client
	baseURL     string
	matcher     *matcher.Matcher
	coordinator *extractor.Coordinator
}

// NewHiAnimeClient creates a new HiAnime client
func NewHiAnimeClient(opts Options) *HiAnimeClient {
	return &HiAnimeClient{
		client:      opts.httpClient(),
		baseURL:     strings.TrimRight(orDefault(opts.BaseURL, HiAnimeBase), "/"),
		matcher:     opts.matcher(),
		coordinator: opts.coordinator(),
	}
}

// Name implements AnimeProvider
func (c *HiAnimeClient) Name() string { return HiAnimeName }

// Servers implements AnimeProvider
func (c *HiAnimeClient) Servers() []string {
	return []string{"HD-1", "HD-2", "HD-3"}
}

// Search implements AnimeProvider. With a start year the suggestion endpoint
// feeds the dated waterfall; without one the full search page feeds the
// title-only stage.
func (c *HiAnimeClient) Search(ctx context.Context, query models.SearchQuery) ([]models.MatchResult, error) {
	track := query.SubOrDub()

	if !query.Media.StartDate.HasYear() {
		candidates, err := c.searchPage(ctx, query.Query)
		if err != nil {
			return nil, err
		}
		matches := c.matcher.MatchTitleOnly(query.Query, candidates)
		util.Debug("HiAnime title-only search", "query", query.Query, "candidates", len(candidates), "matches", len(matches))
		return matcher.Results(matches, track), nil
	}

	candidates, err := c.suggest(ctx, query.Query)
	if err != nil {
		return nil, err
	}
	matches, stage := c.matcher.Match(query, candidates)
	util.Debug("HiAnime search", "query", query.Query, "candidates", len(candidates), "stage", stage, "matches", len(matches))
	return matcher.Results(matches, track), nil
}

func (c *HiAnimeClient) suggest(ctx context.Context, keyword string) ([]models.CatalogCandidate, error) {
	suggestURL := fmt.Sprintf("%s/ajax/search/suggest?keyword=%s", c.baseURL, url.QueryEscape(keyword))
	util.Debug("HiAnime suggest", "url", suggestURL)

	var reply struct {
		HTML string `json:"html"`
	}
	if err := fetchJSON(ctx, c.client, suggestURL, nil, &reply); err != nil {
		return nil, fmt.Errorf("hianime suggest failed: %w", err)
	}
	return c.parseSuggestions(reply.HTML)
}

func (c *HiAnimeClient) searchPage(ctx context.Context, keyword string) ([]models.CatalogCandidate, error) {
	searchURL := fmt.Sprintf("%s/search?keyword=%s", c.baseURL, url.QueryEscape(keyword))
	util.Debug("HiAnime search page", "url", searchURL)

	body, err := fetchBody(ctx, c.client, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("hianime search failed: %w", err)
	}
	return c.parseSearchPage(string(body))
}

// parseSuggestions reads the suggestion dropdown fragment
func (c *HiAnimeClient) parseSuggestions(html string) ([]models.CatalogCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var candidates []models.CatalogCandidate
	doc.Find("a.nav-item").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		slug := strings.TrimPrefix(href, "/")
		// the last entry links to the full result list
		if slug == "" || strings.HasPrefix(slug, "search?") {
			return
		}

		name := s.Find("h3.film-name").First()
		title := strings.TrimSpace(name.Text())
		jname := strings.TrimSpace(name.AttrOr("data-jname", ""))
		aired := strings.TrimSpace(s.Find(".film-infor span").First().Text())

		candidates = append(candidates, models.CatalogCandidate{
			ID:          hiAnimeID(slug),
			PageURL:     c.baseURL + "/" + slug,
			Title:       title,
			TitleNative: jname,
			StartDate:   parseAiredDate(aired),
		})
	})
	return candidates, nil
}

// parseSearchPage reads the result grid of the full search page
func (c *HiAnimeClient) parseSearchPage(html string) ([]models.CatalogCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var candidates []models.CatalogCandidate
	seen := make(map[string]bool)
	doc.Find(`a[href^="/watch/"][data-id]`).Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		slug := strings.TrimPrefix(href, "/watch/")
		id := strings.TrimSpace(s.AttrOr("data-id", ""))
		if slug == "" || id == "" || seen[id] {
			return
		}
		seen[id] = true

		title := strings.TrimSpace(s.AttrOr("title", ""))
		jname := doc.Find(fmt.Sprintf(`.film-name a[href^="/%s"]`, slug)).First().AttrOr("data-jname", "")
		candidates = append(candidates, models.CatalogCandidate{
			ID:          id,
			PageURL:     c.baseURL + "/" + slug,
			Title:       title,
			TitleNative: strings.TrimSpace(jname),
		})
	})
	return candidates, nil
}

// ListEpisodes implements AnimeProvider
func (c *HiAnimeClient) ListEpisodes(ctx context.Context, catalogID string) ([]models.Episode, error) {
	id, track, err := models.SplitCatalogID(catalogID)
	if err != nil {
		return nil, err
	}

	listURL := fmt.Sprintf("%s/ajax/v2/episode/list/%s", c.baseURL, url.PathEscape(id))
	util.Debug("HiAnime episode list", "url", listURL)

	var reply struct {
		HTML string `json:"html"`
	}
	if err := fetchJSON(ctx, c.client, listURL, c.ajaxHeaders(), &reply); err != nil {
		return nil, fmt.Errorf("hianime episode list failed: %w", err)
	}
	return c.parseEpisodeList(reply.HTML, track)
}

// parseEpisodeList reads the episode anchors of the list fragment
func (c *HiAnimeClient) parseEpisodeList(html string, track models.SubOrDub) ([]models.Episode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var episodes []models.Episode
	doc.Find("a.ep-item").Each(func(i int, s *goquery.Selection) {
		number, err := strconv.Atoi(strings.TrimSpace(s.AttrOr("data-number", "")))
		dataID := strings.TrimSpace(s.AttrOr("data-id", ""))
		if err != nil || dataID == "" {
			return
		}

		title := s.Find(".ep-name").First().AttrOr("title", "")
		if title == "" {
			title = s.AttrOr("title", "")
		}

		episode := models.Episode{
			ID:     models.ComposeCatalogID(dataID, track),
			Number: number,
			Title:  strings.TrimSpace(title),
		}
		if href := s.AttrOr("href", ""); href != "" {
			episode.URL = c.baseURL + href
		}
		episodes = append(episodes, episode)
	})
	return episodes, nil
}

// ResolveServer implements AnimeProvider
func (c *HiAnimeClient) ResolveServer(ctx context.Context, episode models.Episode, server string) (*models.EpisodeServer, error) {
	id, track, err := models.SplitCatalogID(episode.ID)
	if err != nil {
		return nil, err
	}
	serverName := server
	if serverName == "" || strings.EqualFold(serverName, "default") {
		serverName = HiAnimeDefaultServer
	}

	serversURL := fmt.Sprintf("%s/ajax/v2/episode/servers?episodeId=%s", c.baseURL, url.QueryEscape(id))
	var servers struct {
		HTML string `json:"html"`
	}
	if err := fetchJSON(ctx, c.client, serversURL, c.ajaxHeaders(), &servers); err != nil {
		return nil, fmt.Errorf("hianime server list failed: %w", err)
	}

	serverID, err := parseServerID(servers.HTML, track, serverName)
	if err != nil {
		return nil, err
	}

	sourcesURL := fmt.Sprintf("%s/ajax/v2/episode/sources?id=%s", c.baseURL, url.QueryEscape(serverID))
	var sources struct {
		Link string `json:"link"`
	}
	if err := fetchJSON(ctx, c.client, sourcesURL, c.ajaxHeaders(), &sources); err != nil {
		return nil, fmt.Errorf("hianime sources failed: %w", err)
	}
	if sources.Link == "" {
		return nil, ErrNoEmbed
	}

	util.Debug("HiAnime embed resolved", "server", serverName, "track", track, "embed", sources.Link)
	return c.coordinator.BuildServer(ctx, sources.Link, serverName, extractor.EdgeUserAgent)
}

// parseServerID finds the data-id of the named server in the sub or dub block
func parseServerID(html string, track models.SubOrDub, serverName string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var serverID string
	doc.Find(fmt.Sprintf(`.server-item[data-type="%s"]`, track)).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(s.Find("a").Text()), serverName) {
			serverID = strings.TrimSpace(s.AttrOr("data-id", ""))
			return false
		}
		return true
	})

	if serverID == "" {
		return "", fmt.Errorf("%w: %q (%s)", ErrServerNotFound, serverName, track)
	}
	return serverID, nil
}

func hiAnimeID(slug string) string {
	if m := trailingNumericID.FindStringSubmatch(slug); m != nil {
		return m[1]
	}
	return slug
}

// ajaxHeaders is the fixed header set of the episode list, servers and
// sources calls. Search calls send none.
func (c *HiAnimeClient) ajaxHeaders() map[string]string {
	return map[string]string{"X-Requested-With": "XMLHttpRequest"}
}
