// Package moopa provides a public API for resolving anime and manga titles
// against the HiAnime, AniCrush and Comix catalogs. This package can be used
// as a library in other Go projects.
package moopa

import (
	"context"
	"net/http"
	"time"

	"github.com/Ani-Moopa/moopa-resolver/internal/anilist"
	"github.com/Ani-Moopa/moopa-resolver/internal/extractor"
	"github.com/Ani-Moopa/moopa-resolver/internal/matcher"
	"github.com/Ani-Moopa/moopa-resolver/internal/scraper"
	"github.com/Ani-Moopa/moopa-resolver/internal/store"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"github.com/Ani-Moopa/moopa-resolver/pkg/moopa/types"
)

// ProviderURLs overrides the catalog endpoints. Empty fields keep the defaults.
type ProviderURLs struct {
	HiAnime      string
	AniCrushSite string
	AniCrushAPI  string
	ComixBase    string
	ComixAPI     string
}

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	threshold  float64
	relayURL   string
	anilistURL string
	storePath  string
	urls       ProviderURLs
}

// Option configures a Client
type Option func(*clientConfig)

// WithHTTPClient sets the client used for every upstream request
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) { cfg.httpClient = c }
}

// WithTimeout bounds each resolver call. Zero leaves calls unbounded.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

// WithSimilarityThreshold sets the fuzzy title threshold of the matcher
func WithSimilarityThreshold(t float64) Option {
	return func(cfg *clientConfig) { cfg.threshold = t }
}

// WithRelayURL sets the fallback decrypt relay
func WithRelayURL(u string) Option {
	return func(cfg *clientConfig) { cfg.relayURL = u }
}

// WithAniListURL sets the AniList GraphQL endpoint
func WithAniListURL(u string) Option {
	return func(cfg *clientConfig) { cfg.anilistURL = u }
}

// WithStorePath remembers matches in a SQLite database at path. The store is
// skipped with a warning when it cannot be opened.
func WithStorePath(path string) Option {
	return func(cfg *clientConfig) { cfg.storePath = path }
}

// WithProviderURLs overrides the catalog endpoints
func WithProviderURLs(u ProviderURLs) Option {
	return func(cfg *clientConfig) { cfg.urls = u }
}

// Client is the main client for resolving titles
type Client struct {
	manager *scraper.ScraperManager
	media   *anilist.Client
	store   *store.MappingStore
}

// NewClient creates a client with all available providers
func NewClient(opts ...Option) *Client {
	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = util.GetSharedClient()
	}

	m := matcher.New()
	if cfg.threshold > 0 {
		m.Threshold = cfg.threshold
	}

	c := &Client{media: anilist.New(httpClient, cfg.anilistURL)}

	managerOpts := []scraper.ManagerOption{scraper.WithTimeout(cfg.timeout)}
	if cfg.storePath != "" {
		s, err := store.Open(cfg.storePath)
		if err != nil {
			util.Warn("Mapping store disabled", "path", cfg.storePath, "error", err)
		} else {
			c.store = s
			managerOpts = append(managerOpts, scraper.WithMappingStore(s))
		}
	}

	c.manager = scraper.NewDefaultManager(scraper.Defaults{
		HTTPClient: httpClient,
		Matcher:    m,
		Coordinator: extractor.NewCoordinator(
			extractor.NewMegaCloud(httpClient),
			extractor.NewRelay(httpClient, cfg.relayURL),
		),
		HiAnimeURL:   cfg.urls.HiAnime,
		AniCrushSite: cfg.urls.AniCrushSite,
		AniCrushAPI:  cfg.urls.AniCrushAPI,
		ComixBase:    cfg.urls.ComixBase,
		ComixAPI:     cfg.urls.ComixAPI,
	}, managerOpts...)

	return c
}

// Close releases the mapping store
func (c *Client) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// HasStore reports whether matches are remembered between runs
func (c *Client) HasStore() bool {
	return c.store != nil
}

// Mappings lists the remembered matches, most recent first
func (c *Client) Mappings(ctx context.Context) ([]types.Mapping, error) {
	if c.store == nil {
		return nil, store.ErrStoreNotInited
	}
	return c.store.List(ctx)
}

// ForgetMapping drops the remembered matches of one title on one provider
func (c *Client) ForgetMapping(ctx context.Context, source types.Source, anilistID int) error {
	if c.store == nil {
		return store.ErrStoreNotInited
	}
	return c.store.Delete(ctx, source.ProviderName(), anilistID)
}

// Providers returns the registered anime provider names
func (c *Client) Providers() []string {
	return c.manager.Providers()
}

// MangaProviders returns the registered manga provider names
func (c *Client) MangaProviders() []string {
	return c.manager.MangaProviders()
}

// GetAvailableSources returns every source the client can query
func (c *Client) GetAvailableSources() []types.Source {
	return []types.Source{types.SourceHiAnime, types.SourceAniCrush, types.SourceComix}
}

// Servers returns the servers a provider can resolve
func (c *Client) Servers(provider string) ([]string, error) {
	p, err := c.manager.Provider(provider)
	if err != nil {
		return nil, err
	}
	return p.Servers(), nil
}

// Media fetches the AniList description of an anime or manga
func (c *Client) Media(ctx context.Context, anilistID int) (*types.Media, error) {
	return c.media.Media(ctx, anilistID)
}

// MediaByMAL fetches the AniList description by MyAnimeList id. mediaType is ANIME or MANGA.
func (c *Client) MediaByMAL(ctx context.Context, malID int, mediaType string) (*types.Media, error) {
	return c.media.MediaByMAL(ctx, malID, mediaType)
}

// QueryFor builds the search query of an AniList media
func QueryFor(media *types.Media, dub bool) types.SearchQuery {
	return anilist.SearchQuery(media, dub)
}

// SearchTitle matches a query against one provider catalog
func (c *Client) SearchTitle(ctx context.Context, provider string, query types.SearchQuery) ([]types.MatchResult, error) {
	return c.manager.SearchTitle(ctx, provider, query)
}

// SearchAll matches a query against every anime provider concurrently
func (c *Client) SearchAll(ctx context.Context, query types.SearchQuery) map[string][]types.MatchResult {
	return c.manager.SearchAll(ctx, query)
}

// ListEpisodes lists the episodes of a matched catalog id
func (c *Client) ListEpisodes(ctx context.Context, provider, catalogID string) ([]types.Episode, error) {
	return c.manager.ListEpisodes(ctx, provider, catalogID)
}

// FetchEpisodes resolves both the sub and dub episode lists of a title
func (c *Client) FetchEpisodes(ctx context.Context, provider string, query types.SearchQuery) (*types.EpisodeTracks, error) {
	return c.manager.FetchEpisodes(ctx, provider, query)
}

// FetchEpisodesByID looks a title up on AniList and resolves its episode lists
func (c *Client) FetchEpisodesByID(ctx context.Context, provider string, anilistID int) (*types.EpisodeTracks, error) {
	media, err := c.media.Media(ctx, anilistID)
	if err != nil {
		return nil, err
	}
	return c.manager.FetchEpisodes(ctx, provider, anilist.SearchQuery(media, false))
}

// ResolveEpisodeSource resolves the playable source of an episode on a server.
// An empty server uses the provider default.
func (c *Client) ResolveEpisodeSource(ctx context.Context, provider string, episode types.Episode, server string) (*types.EpisodeServer, error) {
	return c.manager.ResolveEpisodeSource(ctx, provider, episode, server)
}

// SearchManga runs a keyword search on a manga provider
func (c *Client) SearchManga(ctx context.Context, provider, query string) ([]types.MangaSearchResult, error) {
	return c.manager.SearchManga(ctx, provider, query)
}

// MatchManga searches a manga provider and keeps the entries matching the query titles
func (c *Client) MatchManga(ctx context.Context, provider string, query types.SearchQuery) ([]types.MangaSearchResult, error) {
	return c.manager.MatchManga(ctx, provider, query)
}

// ListChapters lists the chapters of a manga, newest first
func (c *Client) ListChapters(ctx context.Context, provider, mangaID string) ([]types.MangaChapter, error) {
	return c.manager.ListChapters(ctx, provider, mangaID)
}

// ListChaptersByScanlator lists the chapters one scanlator released, newest first
func (c *Client) ListChaptersByScanlator(ctx context.Context, provider, mangaID, scanlator string) ([]types.MangaChapter, error) {
	chapters, err := c.manager.ListChapters(ctx, provider, mangaID)
	if err != nil {
		return nil, err
	}
	return scraper.FilterByScanlator(chapters, scanlator), nil
}

// Scanlators lists the distinct scanlators of a manga, sorted by name
func (c *Client) Scanlators(ctx context.Context, provider, mangaID string) ([]string, error) {
	chapters, err := c.manager.ListChapters(ctx, provider, mangaID)
	if err != nil {
		return nil, err
	}
	return scraper.AvailableScanlators(chapters), nil
}

// ListChapterPages lists the page images of a chapter
func (c *Client) ListChapterPages(ctx context.Context, provider, chapterID string) ([]types.MangaPage, error) {
	return c.manager.ListChapterPages(ctx, provider, chapterID)
}
