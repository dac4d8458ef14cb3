package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/pkg/moopa/types"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6366F1")).Bold(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A9A9A9")).Italic(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF7F"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5A5A5A"))
)

// print writes v as indented JSON in -json mode, otherwise calls styled
func (a *app) print(v interface{}, styled func(io.Writer)) error {
	if a.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	styled(a.out)
	return nil
}

func printMatches(w io.Writer, results []types.MatchResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no matches"))
		return
	}
	for i, r := range results {
		_, _ = fmt.Fprintf(w, "%2d. %s %s\n    %s\n", i+1, valueStyle.Render(r.Title), mutedStyle.Render("["+string(r.SubOrDub)+"]"), idStyle.Render(r.ID))
	}
}

func printGroupedMatches(w io.Writer, grouped map[string][]types.MatchResult) {
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintln(w, headerStyle.Render(name))
		printMatches(w, grouped[name])
	}
}

func episodeLabel(e types.Episode) string {
	if e.Title == "" {
		return fmt.Sprintf("Episode %d", e.Number)
	}
	return fmt.Sprintf("%d. %s", e.Number, e.Title)
}

func printEpisodes(w io.Writer, episodes []types.Episode) {
	if len(episodes) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no episodes"))
		return
	}
	for _, e := range episodes {
		_, _ = fmt.Fprintf(w, "  %s  %s\n", valueStyle.Render(episodeLabel(e)), idStyle.Render(e.ID))
	}
}

func printTracks(w io.Writer, tracks *types.EpisodeTracks) {
	_, _ = fmt.Fprintf(w, "%s %s %s\n", headerStyle.Render("Provider:"), tracks.ProviderID, idStyle.Render(tracks.CatalogID))
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Sub (%d)", len(tracks.Sub))))
	printEpisodes(w, tracks.Sub)
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Dub (%d)", len(tracks.Dub))))
	printEpisodes(w, tracks.Dub)
}

func printServer(w io.Writer, src *types.EpisodeServer) {
	_, _ = fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Server:"), src.Server)
	for _, v := range src.VideoSources {
		_, _ = fmt.Fprintf(w, "  %s %s %s\n", valueStyle.Render(v.URL), mutedStyle.Render(v.Type), mutedStyle.Render(v.Quality))
		for _, s := range v.Subtitles {
			marker := ""
			if s.IsDefault {
				marker = " (default)"
			}
			_, _ = fmt.Fprintf(w, "    %s%s %s\n", s.Language, marker, idStyle.Render(s.URL))
		}
	}
	if len(src.Headers) > 0 {
		keys := make([]string, 0, len(src.Headers))
		for k := range src.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_, _ = fmt.Fprintln(w, headerStyle.Render("Headers:"))
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", k, src.Headers[k])
		}
	}
	if src.Intro.Valid() {
		_, _ = fmt.Fprintf(w, "%s %.0fs - %.0fs\n", headerStyle.Render("Intro:"), src.Intro.Start, src.Intro.End)
	}
	if src.Outro.Valid() {
		_, _ = fmt.Fprintf(w, "%s %.0fs - %.0fs\n", headerStyle.Render("Outro:"), src.Outro.Start, src.Outro.End)
	}
}

func printManga(w io.Writer, results []types.MangaSearchResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no matches"))
		return
	}
	for i, r := range results {
		_, _ = fmt.Fprintf(w, "%2d. %s\n    %s\n", i+1, valueStyle.Render(r.Title), idStyle.Render(r.ID))
		if len(r.AltTitles) > 0 {
			_, _ = fmt.Fprintf(w, "    %s\n", mutedStyle.Render(strings.Join(r.AltTitles, " / ")))
		}
	}
}

func printChapters(w io.Writer, chapters []types.MangaChapter) {
	for _, c := range chapters {
		line := fmt.Sprintf("  %s  %s", valueStyle.Render(c.Title), idStyle.Render(c.ID))
		if c.Scanlator != "" {
			line += " " + mutedStyle.Render(c.Scanlator)
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

func printScanlators(w io.Writer, scanlators []string) {
	if len(scanlators) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no scanlators"))
		return
	}
	for _, name := range scanlators {
		_, _ = fmt.Fprintf(w, "  %s\n", valueStyle.Render(name))
	}
}

func printPages(w io.Writer, pages []types.MangaPage) {
	for _, p := range pages {
		_, _ = fmt.Fprintf(w, "%3d  %s\n", p.Index+1, p.URL)
	}
}

func printMappings(w io.Writer, mappings []types.Mapping) {
	if len(mappings) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no remembered matches"))
		return
	}
	for _, m := range mappings {
		_, _ = fmt.Fprintf(w, "  %s %s AniList %d -> %s %s\n",
			headerStyle.Render(m.Provider),
			mutedStyle.Render("["+string(m.Track)+"]"),
			m.AnilistID,
			valueStyle.Render(m.MatchID),
			idStyle.Render(m.UpdatedAt.Format("2006-01-02")))
	}
}
