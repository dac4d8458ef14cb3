package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/internal/anilist"
	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/scraper"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"github.com/go-chi/chi/v5"
)

const (
	defaultAnimeProvider = scraper.HiAnimeName
	defaultMangaProvider = scraper.ComixName
	maxSourceBody        = 1 << 16
)

// cacheKey normalizes the query order so equivalent requests share an entry
func cacheKey(r *http.Request) string {
	return r.URL.Path + "?" + r.URL.Query().Encode()
}

// serveCached answers from the response cache when possible
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request) bool {
	if s.cache == nil {
		return false
	}
	data, ok := s.cache.Get(cacheKey(r))
	if !ok {
		return false
	}
	util.Debug("Cache hit", "key", cacheKey(r))
	w.Header().Set("X-Cache", "HIT")
	writeRaw(w, http.StatusOK, data)
	return true
}

// respondCacheable writes a 200 response and stores it when store is set.
// Empty listings are never stored since they may hide an upstream outage.
func (s *Server) respondCacheable(w http.ResponseWriter, r *http.Request, payload interface{}, store bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to marshal response")
		return
	}
	if store && s.cache != nil {
		s.cache.Set(cacheKey(r), data)
		w.Header().Set("X-Cache", "MISS")
	}
	writeRaw(w, http.StatusOK, data)
}

func providerParam(q url.Values, fallback string) string {
	if p := strings.TrimSpace(q.Get("provider")); p != "" {
		return p
	}
	return fallback
}

func intParam(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.cfg.Version})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string][]string{
		"anime": s.resolver.Providers(),
		"manga": s.resolver.MangaProviders(),
	})
}

// parseSearchQuery reads q, romaji, english, native, year, month, day, dub and anilistId
func parseSearchQuery(q url.Values) (models.SearchQuery, error) {
	keyword := strings.TrimSpace(q.Get("q"))
	romaji := strings.TrimSpace(q.Get("romaji"))
	if keyword == "" && romaji == "" {
		return models.SearchQuery{}, errors.New("missing q")
	}
	if keyword == "" {
		keyword = romaji
	}
	if romaji == "" {
		romaji = keyword
	}

	var date models.StartDate
	var err error
	if date.Year, err = intParam(q, "year"); err != nil {
		return models.SearchQuery{}, err
	}
	if date.Month, err = intParam(q, "month"); err != nil {
		return models.SearchQuery{}, err
	}
	if date.Day, err = intParam(q, "day"); err != nil {
		return models.SearchQuery{}, err
	}
	anilistID, err := intParam(q, "anilistId")
	if err != nil {
		return models.SearchQuery{}, err
	}

	dub := false
	if raw := q.Get("dub"); raw != "" {
		if dub, err = strconv.ParseBool(raw); err != nil {
			return models.SearchQuery{}, fmt.Errorf("invalid dub %q", raw)
		}
	}

	query := models.SearchQuery{
		Query: keyword,
		Dub:   dub,
		Media: models.MediaInfo{
			AnilistID:    anilistID,
			RomajiTitle:  romaji,
			EnglishTitle: strings.TrimSpace(q.Get("english")),
			NativeTitle:  strings.TrimSpace(q.Get("native")),
		},
	}
	if date.Year > 0 {
		query.Media.StartDate = &date
	}
	return query, nil
}

func (s *Server) handleAnimeSearch(w http.ResponseWriter, r *http.Request) {
	if s.serveCached(w, r) {
		return
	}
	query, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.resolver.SearchTitle(r.Context(), providerParam(r.URL.Query(), defaultAnimeProvider), query)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	s.respondCacheable(w, r, results, len(results) > 0)
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.serveCached(w, r) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		RespondWithError(w, http.StatusBadRequest, "missing id")
		return
	}

	episodes, err := s.resolver.ListEpisodes(r.Context(), providerParam(r.URL.Query(), defaultAnimeProvider), id)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	if len(episodes) == 0 {
		RespondWithError(w, http.StatusNotFound, "no episodes found")
		return
	}
	s.respondCacheable(w, r, episodes, true)
}

func (s *Server) handleFetchEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.serveCached(w, r) {
		return
	}
	anilistID, err := strconv.Atoi(chi.URLParam(r, "anilistId"))
	if err != nil || anilistID <= 0 {
		RespondWithError(w, http.StatusBadRequest, "invalid anilist id")
		return
	}
	if s.media == nil {
		RespondWithError(w, http.StatusServiceUnavailable, "media lookup not configured")
		return
	}

	media, err := s.media.Media(r.Context(), anilistID)
	if err != nil {
		respondWithErr(w, err)
		return
	}

	tracks, err := s.resolver.FetchEpisodes(r.Context(), providerParam(r.URL.Query(), defaultAnimeProvider), anilist.SearchQuery(media, false))
	if err != nil {
		respondWithErr(w, err)
		return
	}
	s.respondCacheable(w, r, tracks, len(tracks.Sub)+len(tracks.Dub) > 0)
}

type sourceRequest struct {
	Source     string `json:"source"`
	ProviderID string `json:"providerId"`
	WatchID    string `json:"watchId"`
	Episode    int    `json:"episode"`
	Server     string `json:"server"`
}

// handleSource resolves playable sources. Results are never cached since
// stream URLs expire.
func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSourceBody))
	if err := dec.Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		RespondWithError(w, http.StatusBadRequest, "missing source")
		return
	}

	// providerId names the provider and is never an episode id
	episodeID := strings.TrimSpace(req.WatchID)
	if episodeID == "" {
		RespondWithError(w, http.StatusBadRequest, "missing watchId")
		return
	}

	server, err := s.resolver.ResolveEpisodeSource(r.Context(), req.Source, models.Episode{ID: episodeID, Number: req.Episode}, req.Server)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, server)
}

// handleMangaSearch runs a keyword search, or a matched search when anilistId is given
func (s *Server) handleMangaSearch(w http.ResponseWriter, r *http.Request) {
	if s.serveCached(w, r) {
		return
	}
	q := r.URL.Query()
	provider := providerParam(q, defaultMangaProvider)

	anilistID, err := intParam(q, "anilistId")
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var results []models.MangaSearchResult
	switch {
	case anilistID > 0 && s.media != nil:
		media, err := s.media.Media(r.Context(), anilistID)
		if err != nil {
			respondWithErr(w, err)
			return
		}
		results, err = s.resolver.MatchManga(r.Context(), provider, anilist.SearchQuery(media, false))
		if err != nil {
			respondWithErr(w, err)
			return
		}
	default:
		keyword := strings.TrimSpace(q.Get("q"))
		if keyword == "" {
			RespondWithError(w, http.StatusBadRequest, "missing q")
			return
		}
		results, err = s.resolver.SearchManga(r.Context(), provider, keyword)
		if err != nil {
			respondWithErr(w, err)
			return
		}
	}
	s.respondCacheable(w, r, results, len(results) > 0)
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	if s.serveCached(w, r) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		RespondWithError(w, http.StatusBadRequest, "missing id")
		return
	}

	chapters, err := s.resolver.ListChapters(r.Context(), providerParam(r.URL.Query(), defaultMangaProvider), id)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	if scanlator := strings.TrimSpace(r.URL.Query().Get("scanlator")); scanlator != "" {
		chapters = scraper.FilterByScanlator(chapters, scanlator)
	}
	if len(chapters) == 0 {
		RespondWithError(w, http.StatusNotFound, "no chapters found")
		return
	}
	s.respondCacheable(w, r, chapters, true)
}

func (s *Server) handleListScanlators(w http.ResponseWriter, r *http.Request) {
	if s.serveCached(w, r) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		RespondWithError(w, http.StatusBadRequest, "missing id")
		return
	}

	chapters, err := s.resolver.ListChapters(r.Context(), providerParam(r.URL.Query(), defaultMangaProvider), id)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	scanlators := scraper.AvailableScanlators(chapters)
	s.respondCacheable(w, r, scanlators, len(scanlators) > 0)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	if s.serveCached(w, r) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		RespondWithError(w, http.StatusBadRequest, "missing id")
		return
	}

	pages, err := s.resolver.ListChapterPages(r.Context(), providerParam(r.URL.Query(), defaultMangaProvider), id)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	if len(pages) == 0 {
		RespondWithError(w, http.StatusNotFound, "no pages found")
		return
	}
	s.respondCacheable(w, r, pages, true)
}
