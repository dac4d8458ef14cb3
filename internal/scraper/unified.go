package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ani-Moopa/moopa-resolver/internal/extractor"
	"github.com/Ani-Moopa/moopa-resolver/internal/matcher"
	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"golang.org/x/sync/errgroup"
)

// ConsumetName is a recognised source that has no registered provider
const ConsumetName = "consumet"

// sourceAliases maps the numbered source names of the v2 source endpoint
var sourceAliases = map[string]string{
	"source1": HiAnimeName,
	"source2": AniCrushName,
	"source3": ConsumetName,
}

// MappingStore remembers first matches per AniList id so repeated lookups skip the search
type MappingStore interface {
	Lookup(ctx context.Context, provider string, anilistID int, track models.SubOrDub) (*models.Mapping, error)
	Save(ctx context.Context, m models.Mapping) error
}

// ScraperManager manages the registered providers. Listing failures are
// logged and returned as empty results; playback failures are returned.
type ScraperManager struct {
	mu      sync.RWMutex
	anime   map[string]AnimeProvider
	manga   map[string]MangaProvider
	matcher *matcher.Matcher
	store   MappingStore
	timeout time.Duration
}

// ManagerOption configures a ScraperManager
type ManagerOption func(*ScraperManager)

// WithMappingStore enables reuse of previous matches in FetchEpisodes
func WithMappingStore(store MappingStore) ManagerOption {
	return func(sm *ScraperManager) { sm.store = store }
}

// WithTimeout bounds every provider call. Zero leaves deadlines to the caller.
func WithTimeout(d time.Duration) ManagerOption {
	return func(sm *ScraperManager) { sm.timeout = d }
}

// WithMatcher sets the matcher used for manga matching
func WithMatcher(m *matcher.Matcher) ManagerOption {
	return func(sm *ScraperManager) { sm.matcher = m }
}

// NewScraperManager creates a manager with no providers registered
func NewScraperManager(opts ...ManagerOption) *ScraperManager {
	sm := &ScraperManager{
		anime:   make(map[string]AnimeProvider),
		manga:   make(map[string]MangaProvider),
		matcher: matcher.New(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// Defaults describes the default provider set
type Defaults struct {
	HTTPClient   *http.Client
	Matcher      *matcher.Matcher
	Coordinator  *extractor.Coordinator
	HiAnimeURL   string
	AniCrushSite string
	AniCrushAPI  string
	ComixBase    string
	ComixAPI     string
}

// NewDefaultManager registers HiAnime, AniCrush and Comix
func NewDefaultManager(d Defaults, opts ...ManagerOption) *ScraperManager {
	if d.Matcher != nil {
		opts = append([]ManagerOption{WithMatcher(d.Matcher)}, opts...)
	}
	sm := NewScraperManager(opts...)

	shared := Options{HTTPClient: d.HTTPClient, Matcher: d.Matcher, Coordinator: d.Coordinator}
	if shared.Coordinator == nil {
		shared.Coordinator = shared.coordinator()
	}

	hianime := shared
	hianime.BaseURL = d.HiAnimeURL
	sm.RegisterAnime(NewHiAnimeClient(hianime))

	anicrush := shared
	anicrush.BaseURL, anicrush.APIURL = d.AniCrushSite, d.AniCrushAPI
	sm.RegisterAnime(NewAniCrushClient(anicrush))

	comix := shared
	comix.BaseURL, comix.APIURL = d.ComixBase, d.ComixAPI
	sm.RegisterManga(NewComixClient(comix))

	return sm
}

// RegisterAnime adds or replaces an anime provider
func (sm *ScraperManager) RegisterAnime(p AnimeProvider) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.anime[strings.ToLower(p.Name())] = p
}

// RegisterManga adds or replaces a manga provider
func (sm *ScraperManager) RegisterManga(p MangaProvider) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.manga[strings.ToLower(p.Name())] = p
}

// ResolveSourceAlias maps "source1".."source3" to provider names; other names pass through lowercased
func ResolveSourceAlias(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := sourceAliases[name]; ok {
		return alias
	}
	return name
}

// Provider returns a registered anime provider by name or alias
func (sm *ScraperManager) Provider(name string) (AnimeProvider, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if p, ok := sm.anime[ResolveSourceAlias(name)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// MangaProvider returns a registered manga provider by name
func (sm *ScraperManager) MangaProvider(name string) (MangaProvider, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if p, ok := sm.manga[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// Providers returns the registered anime provider names, sorted
func (sm *ScraperManager) Providers() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	names := make([]string, 0, len(sm.anime))
	for name := range sm.anime {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MangaProviders returns the registered manga provider names, sorted
func (sm *ScraperManager) MangaProviders() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	names := make([]string, 0, len(sm.manga))
	for name := range sm.manga {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (sm *ScraperManager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if sm.timeout > 0 {
		return context.WithTimeout(ctx, sm.timeout)
	}
	return context.WithCancel(ctx)
}

// isCallerError reports errors that describe a bad request rather than an absent result
func isCallerError(err error) bool {
	return errors.Is(err, models.ErrInvalidID) || errors.Is(err, ErrUnknownProvider)
}

// SearchTitle matches the query against one provider. Upstream failures
// yield an empty result.
func (sm *ScraperManager) SearchTitle(ctx context.Context, provider string, query models.SearchQuery) ([]models.MatchResult, error) {
	p, err := sm.Provider(provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := sm.callContext(ctx)
	defer cancel()

	results, err := p.Search(callCtx, query)
	if err != nil {
		util.Warn("Search failed", "provider", p.Name(), "query", query.Query, "error", err)
		return []models.MatchResult{}, nil
	}
	if results == nil {
		results = []models.MatchResult{}
	}
	return results, nil
}

// SearchAll runs SearchTitle on every anime provider concurrently
func (sm *ScraperManager) SearchAll(ctx context.Context, query models.SearchQuery) map[string][]models.MatchResult {
	names := sm.Providers()
	results := make([][]models.MatchResult, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			res, err := sm.SearchTitle(ctx, name, query)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		util.Warn("Search across providers incomplete", "error", err)
	}

	out := make(map[string][]models.MatchResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

// ListEpisodes lists the episodes of a composite catalog id
func (sm *ScraperManager) ListEpisodes(ctx context.Context, provider, catalogID string) ([]models.Episode, error) {
	p, err := sm.Provider(provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := sm.callContext(ctx)
	defer cancel()

	episodes, err := p.ListEpisodes(callCtx, catalogID)
	if err != nil {
		if isCallerError(err) {
			return nil, err
		}
		util.Warn("Episode listing failed", "provider", p.Name(), "id", catalogID, "error", err)
		return []models.Episode{}, nil
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}
	return episodes, nil
}

// ResolveEpisodeSource resolves one server of an episode into playable sources.
// Failures are returned to the caller.
func (sm *ScraperManager) ResolveEpisodeSource(ctx context.Context, provider string, episode models.Episode, server string) (*models.EpisodeServer, error) {
	p, err := sm.Provider(provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := sm.callContext(ctx)
	defer cancel()

	result, err := p.ResolveServer(callCtx, episode, server)
	if err != nil {
		util.Error("Source resolution failed", "provider", p.Name(), "episode", episode.ID, "number", episode.Number, "server", server, "error", err)
		return nil, err
	}
	return result, nil
}

// FetchEpisodes searches the sub and dub tracks concurrently and lists the
// episodes of the first match of each. A failing track is left empty.
func (sm *ScraperManager) FetchEpisodes(ctx context.Context, provider string, query models.SearchQuery) (*models.EpisodeTracks, error) {
	p, err := sm.Provider(provider)
	if err != nil {
		return nil, err
	}

	tracks := [2]models.SubOrDub{models.Sub, models.Dub}
	ids := make([]string, len(tracks))
	lists := make([][]models.Episode, len(tracks))

	var g errgroup.Group
	for i, track := range tracks {
		g.Go(func() error {
			ids[i], lists[i] = sm.fetchTrack(ctx, p, query, track)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.EpisodeTracks{ProviderID: p.Name(), Sub: lists[0], Dub: lists[1]}
	for _, id := range ids {
		if catalogID, _, err := models.SplitCatalogID(id); err == nil {
			result.CatalogID = catalogID
			break
		}
	}
	return result, nil
}

func (sm *ScraperManager) fetchTrack(ctx context.Context, p AnimeProvider, query models.SearchQuery, track models.SubOrDub) (string, []models.Episode) {
	query.Dub = track == models.Dub
	anilistID := query.Media.AnilistID

	matchID := ""
	if sm.store != nil && anilistID > 0 {
		m, err := sm.store.Lookup(ctx, p.Name(), anilistID, track)
		if err != nil {
			util.Warn("Mapping lookup failed", "provider", p.Name(), "anilistId", anilistID, "error", err)
		} else if m != nil {
			matchID = m.MatchID
			util.Debug("Reusing stored match", "provider", p.Name(), "anilistId", anilistID, "track", track, "id", matchID)
		}
	}

	if matchID == "" {
		callCtx, cancel := sm.callContext(ctx)
		results, err := p.Search(callCtx, query)
		cancel()
		if err != nil {
			util.Warn("Search failed", "provider", p.Name(), "track", track, "error", err)
			return "", []models.Episode{}
		}
		if len(results) == 0 {
			return "", []models.Episode{}
		}
		matchID = results[0].ID

		if sm.store != nil && anilistID > 0 {
			err := sm.store.Save(ctx, models.Mapping{
				Provider:  p.Name(),
				AnilistID: anilistID,
				Track:     track,
				MatchID:   matchID,
				Title:     results[0].Title,
			})
			if err != nil {
				util.Warn("Mapping save failed", "provider", p.Name(), "anilistId", anilistID, "error", err)
			}
		}
	}

	callCtx, cancel := sm.callContext(ctx)
	defer cancel()
	episodes, err := p.ListEpisodes(callCtx, matchID)
	if err != nil {
		util.Warn("Episode listing failed", "provider", p.Name(), "id", matchID, "error", err)
		return matchID, []models.Episode{}
	}

	for i := range episodes {
		if strings.TrimSpace(episodes[i].Title) == "" {
			episodes[i].Title = fmt.Sprintf("Episode %d", episodes[i].Number)
		}
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}
	return matchID, episodes
}

// SearchManga runs a plain keyword search against a manga provider
func (sm *ScraperManager) SearchManga(ctx context.Context, provider, query string) ([]models.MangaSearchResult, error) {
	p, err := sm.MangaProvider(provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := sm.callContext(ctx)
	defer cancel()

	results, err := p.Search(callCtx, query)
	if err != nil {
		util.Warn("Manga search failed", "provider", p.Name(), "query", query, "error", err)
		return []models.MangaSearchResult{}, nil
	}
	if results == nil {
		results = []models.MangaSearchResult{}
	}
	return results, nil
}

// MatchManga searches with the romaji title and keeps the results that pass
// the title-only match. Alternative titles count as synonyms.
func (sm *ScraperManager) MatchManga(ctx context.Context, provider string, query models.SearchQuery) ([]models.MangaSearchResult, error) {
	term := query.Media.RomajiTitle
	if term == "" {
		term = query.Query
	}

	results, err := sm.SearchManga(ctx, provider, term)
	if err != nil || len(results) == 0 {
		return results, err
	}

	byID := make(map[string]models.MangaSearchResult, len(results))
	candidates := make([]models.CatalogCandidate, 0, len(results))
	for _, r := range results {
		byID[r.ID] = r
		candidates = append(candidates, models.CatalogCandidate{
			ID:       r.ID,
			Title:    r.Title,
			Synonyms: r.AltTitles,
		})
	}

	matches := sm.matcher.MatchTitleOnly(term, candidates)
	out := make([]models.MangaSearchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, byID[m.ID])
	}
	util.Debug("Manga match", "provider", provider, "term", term, "results", len(results), "matches", len(out))
	return out, nil
}

// ListChapters lists the chapters of a manga, newest first
func (sm *ScraperManager) ListChapters(ctx context.Context, provider, mangaID string) ([]models.MangaChapter, error) {
	p, err := sm.MangaProvider(provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := sm.callContext(ctx)
	defer cancel()

	chapters, err := p.ListChapters(callCtx, mangaID)
	if err != nil {
		if isCallerError(err) {
			return nil, err
		}
		util.Warn("Chapter listing failed", "provider", p.Name(), "id", mangaID, "error", err)
		return []models.MangaChapter{}, nil
	}
	if chapters == nil {
		chapters = []models.MangaChapter{}
	}
	return chapters, nil
}

// ListChapterPages lists the page images of a chapter
func (sm *ScraperManager) ListChapterPages(ctx context.Context, provider, chapterID string) ([]models.MangaPage, error) {
	p, err := sm.MangaProvider(provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := sm.callContext(ctx)
	defer cancel()

	pages, err := p.ListPages(callCtx, chapterID)
	if err != nil {
		if isCallerError(err) {
			return nil, err
		}
		util.Warn("Page listing failed", "provider", p.Name(), "id", chapterID, "error", err)
		return []models.MangaPage{}, nil
	}
	if pages == nil {
		pages = []models.MangaPage{}
	}
	return pages, nil
}
