package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ani-Moopa/moopa-resolver/internal/extractor"
	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements AnimeProvider for testing
type mockProvider struct {
	name          string
	searchFunc    func(query models.SearchQuery) ([]models.MatchResult, error)
	episodesFunc  func(id string) ([]models.Episode, error)
	resolveFunc   func(ep models.Episode, server string) (*models.EpisodeServer, error)
	searchCalls   atomic.Int32
	episodesCalls atomic.Int32
	searchDelay   time.Duration
}

func (m *mockProvider) Name() string      { return m.name }
func (m *mockProvider) Servers() []string { return []string{"S-1"} }

func (m *mockProvider) Search(ctx context.Context, query models.SearchQuery) ([]models.MatchResult, error) {
	m.searchCalls.Add(1)
	if m.searchDelay > 0 {
		select {
		case <-time.After(m.searchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.searchFunc != nil {
		return m.searchFunc(query)
	}
	return nil, nil
}

func (m *mockProvider) ListEpisodes(ctx context.Context, id string) ([]models.Episode, error) {
	m.episodesCalls.Add(1)
	if m.episodesFunc != nil {
		return m.episodesFunc(id)
	}
	return nil, nil
}

func (m *mockProvider) ResolveServer(ctx context.Context, ep models.Episode, server string) (*models.EpisodeServer, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ep, server)
	}
	return nil, nil
}

// mockMangaProvider implements MangaProvider for testing
type mockMangaProvider struct {
	results  []models.MangaSearchResult
	chapters []models.MangaChapter
	err      error
}

func (m *mockMangaProvider) Name() string { return "mockmanga" }

func (m *mockMangaProvider) Search(ctx context.Context, query string) ([]models.MangaSearchResult, error) {
	return m.results, m.err
}

func (m *mockMangaProvider) ListChapters(ctx context.Context, id string) ([]models.MangaChapter, error) {
	if _, _, err := models.SplitMangaID(id); err != nil {
		return nil, err
	}
	return m.chapters, m.err
}

func (m *mockMangaProvider) ListPages(ctx context.Context, id string) ([]models.MangaPage, error) {
	return nil, m.err
}

// memoryStore implements MappingStore for testing
type memoryStore struct {
	mu    sync.Mutex
	items map[string]models.Mapping
	saves atomic.Int32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[string]models.Mapping)}
}

func storeKey(provider string, anilistID int, track models.SubOrDub) string {
	return fmt.Sprintf("%s:%d:%s", provider, anilistID, track)
}

func (s *memoryStore) Lookup(ctx context.Context, provider string, anilistID int, track models.SubOrDub) (*models.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.items[storeKey(provider, anilistID, track)]; ok {
		return &m, nil
	}
	return nil, nil
}

func (s *memoryStore) Save(ctx context.Context, m models.Mapping) error {
	s.saves.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[storeKey(m.Provider, m.AnilistID, m.Track)] = m
	return nil
}

func trackSearch(query models.SearchQuery) ([]models.MatchResult, error) {
	track := query.SubOrDub()
	return []models.MatchResult{{ID: models.ComposeCatalogID("42", track), Title: "Title " + string(track), SubOrDub: track}}, nil
}

func TestProviderLookupAndAliases(t *testing.T) {
	t.Parallel()

	sm := NewDefaultManager(Defaults{})
	assert.Equal(t, []string{AniCrushName, HiAnimeName}, sm.Providers())
	assert.Equal(t, []string{ComixName}, sm.MangaProviders())

	p, err := sm.Provider("source1")
	require.NoError(t, err)
	assert.Equal(t, HiAnimeName, p.Name())

	p, err = sm.Provider("SOURCE2")
	require.NoError(t, err)
	assert.Equal(t, AniCrushName, p.Name())

	_, err = sm.Provider("source3")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = sm.Provider("nyaa")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = sm.MangaProvider("hianime")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestResolveSourceAlias(t *testing.T) {
	t.Parallel()

	assert.Equal(t, HiAnimeName, ResolveSourceAlias(" source1 "))
	assert.Equal(t, ConsumetName, ResolveSourceAlias("source3"))
	assert.Equal(t, "anicrush", ResolveSourceAlias("AniCrush"))
}

func TestSearchTitleSwallowsProviderErrors(t *testing.T) {
	t.Parallel()

	sm := NewScraperManager()
	sm.RegisterAnime(&mockProvider{
		name: "broken",
		searchFunc: func(query models.SearchQuery) ([]models.MatchResult, error) {
			return nil, errors.New("upstream 503")
		},
	})

	results, err := sm.SearchTitle(context.Background(), "broken", models.SearchQuery{Query: "x"})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearchTitleUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := NewScraperManager().SearchTitle(context.Background(), "nope", models.SearchQuery{})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestSearchTitleTimeoutYieldsEmpty(t *testing.T) {
	t.Parallel()

	sm := NewScraperManager(WithTimeout(20 * time.Millisecond))
	slow := &mockProvider{name: "slow", searchDelay: time.Second, searchFunc: trackSearch}
	sm.RegisterAnime(slow)

	start := time.Now()
	results, err := sm.SearchTitle(context.Background(), "slow", models.SearchQuery{Query: "x"})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSearchAllCollectsEveryProvider(t *testing.T) {
	t.Parallel()

	sm := NewScraperManager()
	sm.RegisterAnime(&mockProvider{name: "a", searchFunc: trackSearch})
	sm.RegisterAnime(&mockProvider{name: "b", searchFunc: func(models.SearchQuery) ([]models.MatchResult, error) {
		return nil, errors.New("down")
	}})

	results := sm.SearchAll(context.Background(), models.SearchQuery{Query: "x"})
	require.Len(t, results, 2)
	assert.Len(t, results["a"], 1)
	assert.Empty(t, results["b"])
}

func TestListEpisodesErrorHandling(t *testing.T) {
	t.Parallel()

	sm := NewScraperManager()
	sm.RegisterAnime(&mockProvider{
		name: "p",
		episodesFunc: func(id string) ([]models.Episode, error) {
			if _, _, err := models.SplitCatalogID(id); err != nil {
				return nil, err
			}
			return nil, errors.New("timeout")
		},
	})

	episodes, err := sm.ListEpisodes(context.Background(), "p", "42/sub")
	require.NoError(t, err)
	assert.Empty(t, episodes)

	_, err = sm.ListEpisodes(context.Background(), "p", "42")
	assert.ErrorIs(t, err, models.ErrInvalidID)
}

func TestResolveEpisodeSourcePropagatesFailure(t *testing.T) {
	t.Parallel()

	sm := NewScraperManager()
	sm.RegisterAnime(&mockProvider{
		name: "p",
		resolveFunc: func(ep models.Episode, server string) (*models.EpisodeServer, error) {
			return nil, fmt.Errorf("%w: both extractors failed", extractor.ErrPlaybackFailed)
		},
	})

	server, err := sm.ResolveEpisodeSource(context.Background(), "p", models.Episode{ID: "1/sub"}, "S-1")
	assert.Nil(t, server)
	assert.ErrorIs(t, err, extractor.ErrPlaybackFailed)
}

func TestResolveEpisodeSourceViaAlias(t *testing.T) {
	t.Parallel()

	sm := NewScraperManager()
	sm.RegisterAnime(&mockProvider{
		name: HiAnimeName,
		resolveFunc: func(ep models.Episode, server string) (*models.EpisodeServer, error) {
			return &models.EpisodeServer{Server: server}, nil
		},
	})

	server, err := sm.ResolveEpisodeSource(context.Background(), "source1", models.Episode{ID: "1/sub"}, "HD-1")
	require.NoError(t, err)
	assert.Equal(t, "HD-1", server.Server)
}

func TestFetchEpisodesBothTracks(t *testing.T) {
	t.Parallel()

	p := &mockProvider{
		name:       "p",
		searchFunc: trackSearch,
		episodesFunc: func(id string) ([]models.Episode, error) {
			return []models.Episode{{ID: id, Number: 1, Title: "Pilot"}, {ID: id, Number: 2}}, nil
		},
	}
	sm := NewScraperManager()
	sm.RegisterAnime(p)

	tracks, err := sm.FetchEpisodes(context.Background(), "p", models.SearchQuery{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, "p", tracks.ProviderID)
	assert.Equal(t, "42", tracks.CatalogID)
	require.Len(t, tracks.Sub, 2)
	require.Len(t, tracks.Dub, 2)
	assert.Equal(t, "42/sub", tracks.Sub[0].ID)
	assert.Equal(t, "42/dub", tracks.Dub[0].ID)
	assert.Equal(t, "Pilot", tracks.Sub[0].Title)
	assert.Equal(t, "Episode 2", tracks.Sub[1].Title)
	assert.Equal(t, int32(2), p.searchCalls.Load())
}

func TestFetchEpisodesOneTrackFails(t *testing.T) {
	t.Parallel()

	p := &mockProvider{
		name: "p",
		searchFunc: func(query models.SearchQuery) ([]models.MatchResult, error) {
			if query.Dub {
				return nil, errors.New("dub search failed")
			}
			return trackSearch(query)
		},
		episodesFunc: func(id string) ([]models.Episode, error) {
			return []models.Episode{{ID: id, Number: 1}}, nil
		},
	}
	sm := NewScraperManager()
	sm.RegisterAnime(p)

	tracks, err := sm.FetchEpisodes(context.Background(), "p", models.SearchQuery{Query: "x"})
	require.NoError(t, err)
	assert.Len(t, tracks.Sub, 1)
	assert.NotNil(t, tracks.Dub)
	assert.Empty(t, tracks.Dub)
}

func TestFetchEpisodesReusesStoredMatches(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	p := &mockProvider{
		name:       "p",
		searchFunc: trackSearch,
		episodesFunc: func(id string) ([]models.Episode, error) {
			return []models.Episode{{ID: id, Number: 1}}, nil
		},
	}
	sm := NewScraperManager(WithMappingStore(store))
	sm.RegisterAnime(p)

	query := models.SearchQuery{Query: "x", Media: models.MediaInfo{AnilistID: 7}}

	_, err := sm.FetchEpisodes(context.Background(), "p", query)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.searchCalls.Load())
	assert.Equal(t, int32(2), store.saves.Load())

	tracks, err := sm.FetchEpisodes(context.Background(), "p", query)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.searchCalls.Load(), "stored matches skip the search")
	assert.Equal(t, int32(4), p.episodesCalls.Load())
	assert.Equal(t, "42/dub", tracks.Dub[0].ID)
}

func TestMatchMangaUsesAltTitles(t *testing.T) {
	t.Parallel()

	sm := NewScraperManager()
	sm.RegisterManga(&mockMangaProvider{results: []models.MangaSearchResult{
		{ID: "a|one", Title: "Chainsaw Man", AltTitles: []string{"Chensō Man"}},
		{ID: "b|two", Title: "Unrelated Story"},
		{ID: "c|three", Title: "Jujutsu Kaisen"},
	}})

	results, err := sm.MatchManga(context.Background(), "mockmanga", models.SearchQuery{
		Media: models.MediaInfo{RomajiTitle: "Chensou Man"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a|one", results[0].ID)
}

func TestMangaListingErrorHandling(t *testing.T) {
	t.Parallel()

	sm := NewScraperManager()
	sm.RegisterManga(&mockMangaProvider{err: errors.New("cloudflare")})

	results, err := sm.SearchManga(context.Background(), "mockmanga", "x")
	require.NoError(t, err)
	assert.Empty(t, results)

	chapters, err := sm.ListChapters(context.Background(), "mockmanga", "a|b")
	require.NoError(t, err)
	assert.Empty(t, chapters)

	_, err = sm.ListChapters(context.Background(), "mockmanga", "")
	assert.ErrorIs(t, err, models.ErrInvalidID)

	pages, err := sm.ListChapterPages(context.Background(), "mockmanga", "a|b|c|1")
	require.NoError(t, err)
	assert.Empty(t, pages)
}
