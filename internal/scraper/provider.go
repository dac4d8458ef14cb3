// Package scraper implements the catalog providers and the manager that
// exposes search, listing and source resolution across them.
package scraper

import (
	"context"
	"errors"
	"net/http"

	"github.com/Ani-Moopa/moopa-resolver/internal/extractor"
	"github.com/Ani-Moopa/moopa-resolver/internal/matcher"
	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
)

var (
	// ErrUnknownProvider is returned for provider names that are not registered
	ErrUnknownProvider = errors.New("provider not found")
	// ErrServerNotFound is returned when the requested server is not offered for an episode
	ErrServerNotFound = errors.New("server not found")
	// ErrNoEmbed is returned when a provider yields no embed link for a server
	ErrNoEmbed = errors.New("no embed link found")
)

// AnimeProvider is one anime catalog. Implementations return real errors;
// the manager decides which of them become empty results.
type AnimeProvider interface {
	Name() string
	Servers() []string
	Search(ctx context.Context, query models.SearchQuery) ([]models.MatchResult, error)
	ListEpisodes(ctx context.Context, catalogID string) ([]models.Episode, error)
	ResolveServer(ctx context.Context, episode models.Episode, server string) (*models.EpisodeServer, error)
}

// MangaProvider is one manga catalog
type MangaProvider interface {
	Name() string
	Search(ctx context.Context, query string) ([]models.MangaSearchResult, error)
	ListChapters(ctx context.Context, mangaID string) ([]models.MangaChapter, error)
	ListPages(ctx context.Context, chapterID string) ([]models.MangaPage, error)
}

// Options carries the dependencies of a provider client. Zero values fall
// back to the provider defaults.
type Options struct {
	HTTPClient  *http.Client
	BaseURL     string
	APIURL      string
	Matcher     *matcher.Matcher
	Coordinator *extractor.Coordinator
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return util.GetSharedClient()
}

func (o Options) matcher() *matcher.Matcher {
	if o.Matcher != nil {
		return o.Matcher
	}
	return matcher.New()
}

func (o Options) coordinator() *extractor.Coordinator {
	if o.Coordinator != nil {
		return o.Coordinator
	}
	client := o.httpClient()
	return extractor.NewCoordinator(extractor.NewMegaCloud(client), extractor.NewRelay(client, ""))
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
