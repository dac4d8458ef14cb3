package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Ani-Moopa/moopa-resolver/internal/extractor"
	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExtractor implements extractor.Extractor for testing
type stubExtractor struct {
	data     *extractor.Sources
	err      error
	calls    atomic.Int32
	embedURL atomic.Value
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) Extract(ctx context.Context, embedURL string) (*extractor.Sources, error) {
	s.calls.Add(1)
	s.embedURL.Store(embedURL)
	return s.data, s.err
}

func playableSources() *extractor.Sources {
	return &extractor.Sources{
		Sources: []extractor.Source{{File: "https://cdn.example/master.m3u8", Type: "hls"}},
		Tracks: []extractor.Track{
			{File: "https://cdn.example/en.vtt", Label: "English", Kind: "captions", Default: true},
			{File: "https://cdn.example/thumbs.vtt", Kind: "thumbnails"},
		},
		Intro: &models.Skip{Start: 10, End: 95},
		Outro: &models.Skip{Start: 0, End: 0},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

const suggestFragment = `
<a href="/one-piece-100" class="nav-item">
  <div class="srp-detail">
    <h3 class="film-name" data-jname="One Piece">One Piece</h3>
    <div class="film-infor"><span>Oct 20, 1999</span><i class="dot"></i>TV</div>
  </div>
</a>
<a href="/one-piece-film-red-18236" class="nav-item">
  <div class="srp-detail">
    <h3 class="film-name" data-jname="One Piece Film: Red">One Piece Film: Red</h3>
    <div class="film-infor"><span>Aug 6, 2022</span><i class="dot"></i>Movie</div>
  </div>
</a>
<a href="/search?keyword=one+piece" class="nav-item nav-bottom">View all results</a>`

const searchPageHTML = `<html><body>
<div class="flw-item">
  <a href="/watch/one-piece-film-red-18236" class="film-poster-ahref" data-id="18236" title="One Piece Film: Red"></a>
  <h3 class="film-name"><a href="/one-piece-film-red-18236" data-jname="One Piece Film: Red">One Piece Film: Red</a></h3>
</div>
<div class="flw-item">
  <a href="/watch/one-piece-100" class="film-poster-ahref" data-id="100" title="One Piece"></a>
  <h3 class="film-name"><a href="/one-piece-100" data-jname="One Piece">One Piece</a></h3>
</div>
<div class="flw-item">
  <a href="/watch/bleach-806" class="film-poster-ahref" data-id="806" title="Bleach"></a>
</div>
</body></html>`

const episodeListFragment = `
<div class="ss-list">
  <a title="Romance Dawn" class="ssl-item ep-item" data-number="1" data-id="2142" href="/watch/one-piece-100?ep=2142">
    <div class="ssli-detail"><div class="ep-name e-dynamic-name" title="I'm Luffy! The Man Who Will Become the Pirate King!">I'm Luffy!</div></div>
  </a>
  <a title="" class="ssl-item ep-item" data-number="2" data-id="2143" href="/watch/one-piece-100?ep=2143">
    <div class="ssli-detail"><div class="ep-name e-dynamic-name" title="">Ep 2</div></div>
  </a>
  <a class="ssl-item ep-item" data-number="x" data-id="9999"></a>
</div>`

const serverListFragment = `
<div class="ps_-block ps_-block-sub servers-sub">
  <div class="server-item" data-type="sub" data-id="610001" data-server-id="4"><a href="javascript:;" class="btn">HD-1</a></div>
  <div class="server-item" data-type="sub" data-id="610002" data-server-id="1"><a href="javascript:;" class="btn">HD-2</a></div>
</div>
<div class="ps_-block ps_-block-sub servers-dub">
  <div class="server-item" data-type="dub" data-id="620001" data-server-id="4"><a href="javascript:;" class="btn">HD-1</a></div>
</div>`

func newHiAnimeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ajax/search/suggest", func(w http.ResponseWriter, r *http.Request) {
		assertNoHeaders(t, r)
		writeJSON(t, w, map[string]interface{}{"status": true, "html": suggestFragment})
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "one piece", r.URL.Query().Get("keyword"))
		assertNoHeaders(t, r)
		_, _ = w.Write([]byte(searchPageHTML))
	})
	mux.HandleFunc("/ajax/v2/episode/list/100", func(w http.ResponseWriter, r *http.Request) {
		assertAjaxHeaders(t, r)
		writeJSON(t, w, map[string]interface{}{"status": true, "html": episodeListFragment})
	})
	mux.HandleFunc("/ajax/v2/episode/servers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2142", r.URL.Query().Get("episodeId"))
		assertAjaxHeaders(t, r)
		writeJSON(t, w, map[string]interface{}{"status": true, "html": serverListFragment})
	})
	mux.HandleFunc("/ajax/v2/episode/sources", func(w http.ResponseWriter, r *http.Request) {
		assertAjaxHeaders(t, r)
		writeJSON(t, w, map[string]interface{}{
			"type": "iframe",
			"link": "https://megacloud.example/embed-2/v3/e-1/" + r.URL.Query().Get("id") + "?k=1",
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestHiAnime(t *testing.T, ext extractor.Extractor) *HiAnimeClient {
	t.Helper()
	server := newHiAnimeServer(t)
	return NewHiAnimeClient(Options{
		HTTPClient:  server.Client(),
		BaseURL:     server.URL,
		Coordinator: extractor.NewCoordinator(ext, nil),
	})
}

func TestHiAnimeSearchWithStartDate(t *testing.T) {
	t.Parallel()

	client := newTestHiAnime(t, &stubExtractor{})
	results, err := client.Search(context.Background(), models.SearchQuery{
		Query: "one piece",
		Media: models.MediaInfo{
			RomajiTitle: "ONE PIECE",
			StartDate:   &models.StartDate{Year: 1999, Month: 10, Day: 20},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "100/sub", results[0].ID)
	assert.Equal(t, "One Piece", results[0].Title)
	assert.Equal(t, client.baseURL+"/one-piece-100", results[0].URL)
	assert.Equal(t, models.Sub, results[0].SubOrDub)
}

func TestHiAnimeSearchDubTrack(t *testing.T) {
	t.Parallel()

	client := newTestHiAnime(t, &stubExtractor{})
	results, err := client.Search(context.Background(), models.SearchQuery{
		Query: "one piece",
		Dub:   true,
		Media: models.MediaInfo{
			RomajiTitle: "One Piece Film: Red",
			StartDate:   &models.StartDate{Year: 2022},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "18236/dub", results[0].ID)
}

func TestHiAnimeSearchWithoutYearUsesSearchPage(t *testing.T) {
	t.Parallel()

	client := newTestHiAnime(t, &stubExtractor{})
	results, err := client.Search(context.Background(), models.SearchQuery{Query: "one piece"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// shortest normalized title first
	assert.Equal(t, "100/sub", results[0].ID)
	assert.Equal(t, "18236/sub", results[1].ID)
}

func TestHiAnimeParseSuggestionsSkipsViewAll(t *testing.T) {
	t.Parallel()

	client := NewHiAnimeClient(Options{BaseURL: "https://hianime.example"})
	candidates, err := client.parseSuggestions(suggestFragment)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "100", candidates[0].ID)
	assert.Equal(t, "https://hianime.example/one-piece-100", candidates[0].PageURL)
	assert.Equal(t, "One Piece", candidates[0].TitleNative)
	assert.Equal(t, models.StartDate{Year: 1999, Month: 10, Day: 20}, candidates[0].StartDate)
	assert.Equal(t, models.StartDate{Year: 2022, Month: 8, Day: 6}, candidates[1].StartDate)
}

func TestHiAnimeListEpisodes(t *testing.T) {
	t.Parallel()

	client := newTestHiAnime(t, &stubExtractor{})
	episodes, err := client.ListEpisodes(context.Background(), "100/dub")
	require.NoError(t, err)
	require.Len(t, episodes, 2)

	assert.Equal(t, "2142/dub", episodes[0].ID)
	assert.Equal(t, 1, episodes[0].Number)
	assert.Equal(t, "I'm Luffy! The Man Who Will Become the Pirate King!", episodes[0].Title)
	assert.Equal(t, client.baseURL+"/watch/one-piece-100?ep=2142", episodes[0].URL)
	assert.Equal(t, 2, episodes[1].Number)
	assert.Empty(t, episodes[1].Title)
}

func TestHiAnimeListEpisodesInvalidID(t *testing.T) {
	t.Parallel()

	client := NewHiAnimeClient(Options{})
	_, err := client.ListEpisodes(context.Background(), "100")
	assert.ErrorIs(t, err, models.ErrInvalidID)
}

func TestHiAnimeResolveServer(t *testing.T) {
	t.Parallel()

	ext := &stubExtractor{data: playableSources()}
	client := newTestHiAnime(t, ext)

	server, err := client.ResolveServer(context.Background(), models.Episode{ID: "2142/sub", Number: 1}, "HD-2")
	require.NoError(t, err)

	assert.Equal(t, "https://megacloud.example/embed-2/v3/e-1/610002?k=1", ext.embedURL.Load())
	assert.Equal(t, "HD-2", server.Server)
	assert.Equal(t, extractor.EdgeUserAgent, server.Headers["User-Agent"])
	assert.Equal(t, extractor.PlaybackReferer, server.Headers["Referer"])
	require.Len(t, server.VideoSources, 1)
	assert.Equal(t, "https://cdn.example/master.m3u8", server.VideoSources[0].URL)
	require.Len(t, server.VideoSources[0].Subtitles, 1)
	assert.Equal(t, "sub-0", server.VideoSources[0].Subtitles[0].ID)
	require.NotNil(t, server.Intro)
	assert.Nil(t, server.Outro)
}

func TestHiAnimeResolveServerDefault(t *testing.T) {
	t.Parallel()

	ext := &stubExtractor{data: playableSources()}
	client := newTestHiAnime(t, ext)

	server, err := client.ResolveServer(context.Background(), models.Episode{ID: "2142/dub"}, "default")
	require.NoError(t, err)
	assert.Equal(t, HiAnimeDefaultServer, server.Server)
	assert.Equal(t, "https://megacloud.example/embed-2/v3/e-1/620001?k=1", ext.embedURL.Load())
}

func TestHiAnimeResolveServerNotOffered(t *testing.T) {
	t.Parallel()

	ext := &stubExtractor{data: playableSources()}
	client := newTestHiAnime(t, ext)

	_, err := client.ResolveServer(context.Background(), models.Episode{ID: "2142/dub"}, "HD-2")
	assert.ErrorIs(t, err, ErrServerNotFound)
	assert.Equal(t, int32(0), ext.calls.Load())
}

func TestHiAnimeResolveServerPlaybackFailure(t *testing.T) {
	t.Parallel()

	ext := &stubExtractor{err: errors.New("upstream down")}
	client := newTestHiAnime(t, ext)

	_, err := client.ResolveServer(context.Background(), models.Episode{ID: "2142/sub"}, "HD-1")
	assert.ErrorIs(t, err, extractor.ErrPlaybackFailed)
}

func TestHiAnimeID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		slug string
		want string
	}{
		{"one-piece-100", "100"},
		{"dan-da-dan-19319", "19319"},
		{"no-number", "no-number"},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, hiAnimeID(tt.slug))
		})
	}
}
