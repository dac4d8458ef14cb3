// Package server exposes the resolver over HTTP using chi
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Resolver is the provider surface the handlers need. *scraper.ScraperManager implements it.
type Resolver interface {
	Providers() []string
	MangaProviders() []string
	SearchTitle(ctx context.Context, provider string, query models.SearchQuery) ([]models.MatchResult, error)
	ListEpisodes(ctx context.Context, provider, catalogID string) ([]models.Episode, error)
	FetchEpisodes(ctx context.Context, provider string, query models.SearchQuery) (*models.EpisodeTracks, error)
	ResolveEpisodeSource(ctx context.Context, provider string, episode models.Episode, server string) (*models.EpisodeServer, error)
	SearchManga(ctx context.Context, provider, query string) ([]models.MangaSearchResult, error)
	MatchManga(ctx context.Context, provider string, query models.SearchQuery) ([]models.MangaSearchResult, error)
	ListChapters(ctx context.Context, provider, mangaID string) ([]models.MangaChapter, error)
	ListChapterPages(ctx context.Context, provider, chapterID string) ([]models.MangaPage, error)
}

// MediaLookup resolves AniList ids. *anilist.Client implements it.
type MediaLookup interface {
	Media(ctx context.Context, id int) (*models.MediaInfo, error)
}

// Config holds the server settings
type Config struct {
	RequestTimeout  time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
	Version         string
}

// Server holds the dependencies of the API
type Server struct {
	resolver Resolver
	media    MediaLookup
	cache    *util.ResponseCache
	cfg      Config
}

// New creates a Server. A zero CacheTTL disables response caching.
func New(resolver Resolver, media MediaLookup, cfg Config) *Server {
	s := &Server{resolver: resolver, media: media, cfg: cfg}
	if cfg.CacheTTL > 0 {
		s.cache = util.NewResponseCache(cfg.CacheTTL, cfg.CacheMaxEntries)
	}
	return s
}

// Router sets up and returns the main router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(requestTimeout(s.cfg.RequestTimeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/providers", s.handleProviders)

		r.Get("/anime/search", s.handleAnimeSearch)
		r.Get("/anime/episodes", s.handleListEpisodes)
		r.Get("/anime/{anilistId}/episodes", s.handleFetchEpisodes)
		r.Post("/source", s.handleSource)

		r.Get("/manga/search", s.handleMangaSearch)
		r.Get("/manga/chapters", s.handleListChapters)
		r.Get("/manga/scanlators", s.handleListScanlators)
		r.Get("/manga/pages", s.handleListPages)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		util.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close stops the response cache
func (s *Server) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}
