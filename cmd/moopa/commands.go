package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/internal/scraper"
	"github.com/Ani-Moopa/moopa-resolver/internal/server"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"github.com/Ani-Moopa/moopa-resolver/internal/version"
	"github.com/Ani-Moopa/moopa-resolver/pkg/moopa"
	"github.com/Ani-Moopa/moopa-resolver/pkg/moopa/types"
	"github.com/ktr0731/go-fuzzyfinder"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// searchFlags are shared by search and watch
type searchFlags struct {
	provider  string
	dub       bool
	all       bool
	anilistID int
	year      int
	month     int
	day       int
	english   string
	native    string
}

func (f *searchFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.provider, "provider", scraper.HiAnimeName, "anime provider")
	fs.BoolVar(&f.dub, "dub", false, "match the dub track")
	fs.BoolVar(&f.all, "all", false, "search every provider")
	fs.IntVar(&f.anilistID, "anilist", 0, "AniList id to build the query from")
	fs.IntVar(&f.year, "year", 0, "start year")
	fs.IntVar(&f.month, "month", 0, "start month")
	fs.IntVar(&f.day, "day", 0, "start day")
	fs.StringVar(&f.english, "english", "", "English title")
	fs.StringVar(&f.native, "native", "", "native title")
}

// buildQuery turns the flags and the free text into a SearchQuery
func (f *searchFlags) buildQuery(text string) types.SearchQuery {
	q := types.SearchQuery{
		Query: text,
		Dub:   f.dub,
		Media: types.Media{
			RomajiTitle:  text,
			EnglishTitle: f.english,
			NativeTitle:  f.native,
		},
	}
	if f.year > 0 {
		q.Media.StartDate = &types.StartDate{Year: f.year, Month: f.month, Day: f.day}
	}
	return q
}

func (f *searchFlags) query(ctx context.Context, a *app, args []string) (types.SearchQuery, error) {
	if f.anilistID > 0 {
		media, err := a.client.Media(ctx, f.anilistID)
		if err != nil {
			return types.SearchQuery{}, err
		}
		return moopa.QueryFor(media, f.dub), nil
	}
	text, err := util.GetQuery(args, "Search title")
	if err != nil {
		return types.SearchQuery{}, err
	}
	return f.buildQuery(text), nil
}

func runSearch(ctx context.Context, a *app, args []string) error {
	var f searchFlags
	fs := newFlagSet("search")
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	query, err := f.query(ctx, a, fs.Args())
	if err != nil {
		return err
	}

	if f.all {
		results, _ := util.TimeFuncWithError("search all", func() (map[string][]types.MatchResult, error) {
			return a.client.SearchAll(ctx, query), nil
		})
		return a.print(results, func(w io.Writer) { printGroupedMatches(w, results) })
	}

	results, err := util.TimeFuncWithError("search "+f.provider, func() ([]types.MatchResult, error) {
		return a.client.SearchTitle(ctx, f.provider, query)
	})
	if err != nil {
		return err
	}
	return a.print(results, func(w io.Writer) { printMatches(w, results) })
}

func runEpisodes(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("episodes")
	provider := fs.String("provider", scraper.HiAnimeName, "anime provider")
	anilistID := fs.Int("anilist", 0, "resolve both tracks of an AniList id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *anilistID > 0 {
		tracks, err := util.TimeFuncWithError("episodes "+*provider, func() (*types.EpisodeTracks, error) {
			return a.client.FetchEpisodesByID(ctx, *provider, *anilistID)
		})
		if err != nil {
			return err
		}
		return a.print(tracks, func(w io.Writer) { printTracks(w, tracks) })
	}

	if fs.NArg() != 1 {
		return errors.New("usage: moopa episodes [-provider p] <catalog id>")
	}
	episodes, err := util.TimeFuncWithError("episodes "+*provider, func() ([]types.Episode, error) {
		return a.client.ListEpisodes(ctx, *provider, fs.Arg(0))
	})
	if err != nil {
		return err
	}
	return a.print(episodes, func(w io.Writer) { printEpisodes(w, episodes) })
}

func runSource(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("source")
	provider := fs.String("provider", scraper.HiAnimeName, "anime provider")
	serverName := fs.String("server", "", "server name, empty for the provider default")
	number := fs.Int("episode", 0, "episode number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: moopa source [-provider p] [-server s] -episode n <episode id>")
	}

	episode := types.Episode{ID: fs.Arg(0), Number: *number}
	src, err := util.TimeFuncWithError("source "+*provider, func() (*types.EpisodeServer, error) {
		return a.client.ResolveEpisodeSource(ctx, *provider, episode, *serverName)
	})
	if err != nil {
		return err
	}
	return a.print(src, func(w io.Writer) { printServer(w, src) })
}

// runWatch walks title, episode and server selection interactively and
// prints the resolved stream
func runWatch(ctx context.Context, a *app, args []string) error {
	var f searchFlags
	fs := newFlagSet("watch")
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	query, err := f.query(ctx, a, fs.Args())
	if err != nil {
		return err
	}
	results, err := a.client.SearchTitle(ctx, f.provider, query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no match for %q on %s", query.Query, f.provider)
	}

	idx, err := pick(results, func(i int) string { return results[i].Title }, "Select anime: ", func(i int) string {
		return fmt.Sprintf("ID: %s\nTrack: %s\nURL: %s", results[i].ID, results[i].SubOrDub, results[i].URL)
	})
	if err != nil {
		return fmt.Errorf("anime selection cancelled: %w", err)
	}

	episodes, err := a.client.ListEpisodes(ctx, f.provider, results[idx].ID)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		return fmt.Errorf("no episodes for %s", results[idx].Title)
	}
	idx, err = pick(episodes, func(i int) string { return episodeLabel(episodes[i]) }, "Select the episode: ", nil)
	if err != nil {
		return fmt.Errorf("episode selection cancelled: %w", err)
	}
	episode := episodes[idx]

	servers, err := a.client.Servers(f.provider)
	if err != nil {
		return err
	}
	_, serverName, err := util.SelectMenuItem("Select server", servers)
	if err != nil {
		return err
	}

	src, err := a.client.ResolveEpisodeSource(ctx, f.provider, episode, serverName)
	if err != nil {
		return err
	}
	return a.print(src, func(w io.Writer) { printServer(w, src) })
}

// pick runs the fuzzy finder, skipping it for a single item
func pick[T any](items []T, label func(int) string, prompt string, preview func(int) string) (int, error) {
	if len(items) == 1 {
		return 0, nil
	}
	opts := []fuzzyfinder.Option{fuzzyfinder.WithPromptString(prompt)}
	if preview != nil {
		opts = append(opts, fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i >= 0 && i < len(items) {
				return preview(i)
			}
			return ""
		}))
	}
	return fuzzyfinder.Find(items, label, opts...)
}

func runManga(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("manga")
	provider := fs.String("provider", scraper.ComixName, "manga provider")
	anilistID := fs.Int("anilist", 0, "match the titles of an AniList id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var results []types.MangaSearchResult
	var err error
	if *anilistID > 0 {
		media, merr := a.client.Media(ctx, *anilistID)
		if merr != nil {
			return merr
		}
		results, err = util.TimeFuncWithError("manga match "+*provider, func() ([]types.MangaSearchResult, error) {
			return a.client.MatchManga(ctx, *provider, moopa.QueryFor(media, false))
		})
	} else {
		text, qerr := util.GetQuery(fs.Args(), "Search manga")
		if qerr != nil {
			return qerr
		}
		results, err = util.TimeFuncWithError("manga search "+*provider, func() ([]types.MangaSearchResult, error) {
			return a.client.SearchManga(ctx, *provider, text)
		})
	}
	if err != nil {
		return err
	}
	return a.print(results, func(w io.Writer) { printManga(w, results) })
}

func runChapters(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("chapters")
	provider := fs.String("provider", scraper.ComixName, "manga provider")
	scanlator := fs.String("scanlator", "", "only list chapters released by this scanlator")
	listScanlators := fs.Bool("scanlators", false, "list the scanlators instead of the chapters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: moopa chapters [-provider p] [-scanlator name | -scanlators] <manga id>")
	}

	if *listScanlators {
		scanlators, err := a.client.Scanlators(ctx, *provider, fs.Arg(0))
		if err != nil {
			return err
		}
		return a.print(scanlators, func(w io.Writer) { printScanlators(w, scanlators) })
	}

	chapters, err := util.TimeFuncWithError("chapters "+*provider, func() ([]types.MangaChapter, error) {
		if *scanlator != "" {
			return a.client.ListChaptersByScanlator(ctx, *provider, fs.Arg(0), *scanlator)
		}
		return a.client.ListChapters(ctx, *provider, fs.Arg(0))
	})
	if err != nil {
		return err
	}
	return a.print(chapters, func(w io.Writer) { printChapters(w, chapters) })
}

func runPages(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("pages")
	provider := fs.String("provider", scraper.ComixName, "manga provider")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: moopa pages [-provider p] <chapter id>")
	}

	pages, err := util.TimeFuncWithError("pages "+*provider, func() ([]types.MangaPage, error) {
		return a.client.ListChapterPages(ctx, *provider, fs.Arg(0))
	})
	if err != nil {
		return err
	}
	return a.print(pages, func(w io.Writer) { printPages(w, pages) })
}

func runMappings(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("mappings")
	del := fs.String("delete", "", "forget provider:anilistId")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *del != "" {
		source, anilistID, err := parseMappingRef(*del)
		if err != nil {
			return err
		}
		if err := a.client.ForgetMapping(ctx, source, anilistID); err != nil {
			return err
		}
		util.Success(a.out, fmt.Sprintf("Forgot %s mappings of AniList %d", source.ProviderName(), anilistID))
		return nil
	}

	mappings, err := a.client.Mappings(ctx)
	if err != nil {
		return err
	}
	return a.print(mappings, func(w io.Writer) { printMappings(w, mappings) })
}

// parseMappingRef parses "provider:anilistId"
func parseMappingRef(ref string) (types.Source, int, error) {
	name, rawID, ok := strings.Cut(ref, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid mapping %q, want provider:anilistId", ref)
	}
	source, err := types.ParseSource(name)
	if err != nil {
		return 0, 0, err
	}
	id, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return 0, 0, fmt.Errorf("invalid AniList id %q", rawID)
	}
	return source, id, nil
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := server.New(a.client, a.client, server.Config{
		RequestTimeout:  a.cfg.RequestTimeout,
		CacheTTL:        a.cfg.Cache.TTL,
		CacheMaxEntries: a.cfg.Cache.MaxEntries,
		Version:         version.Version,
	})
	defer srv.Close()

	util.Info("Starting moopa resolver", "version", version.Version, "store", a.client.HasStore())
	return srv.ListenAndServe(ctx, *addr)
}
