package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"golang.org/x/sync/errgroup"
)

const (
	ComixName = "comix"
	ComixBase = "https://comix.to"
	ComixAPI  = "https://comix.to/api/v2"

	comixPageSize    = 100
	comixMaxPages    = 200
	comixConcurrency = 4
)

var (
	comixImagesPattern = regexp.MustCompile(`["\\]*images["\\]*\s*:\s*(\[[^\]]*\])`)

	errImagesNotFound = errors.New("chapter images not found")
)

// ComixClient handles interactions with Comix
type ComixClient struct {
	client  *http.Client
	baseURL string
	apiURL  string
}

// NewComixClient creates a new Comix client. BaseURL is the reader site,
// APIURL the JSON API root.
func NewComixClient(opts Options) *ComixClient {
	return &ComixClient{
		client:  opts.httpClient(),
		baseURL: strings.TrimRight(orDefault(opts.BaseURL, ComixBase), "/"),
		apiURL:  strings.TrimRight(orDefault(opts.APIURL, ComixAPI), "/"),
	}
}

// Name implements MangaProvider
func (c *ComixClient) Name() string { return ComixName }

type comixItem struct {
	HashID    flexString `json:"hash_id"`
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	AltTitles []string   `json:"alt_titles"`
	Poster    struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"poster"`
}

type comixChapter struct {
	ChapterID       flexString `json:"chapter_id"`
	Number          flexString `json:"number"`
	Name            string     `json:"name"`
	IsOfficial      flexString `json:"is_official"`
	Language        string     `json:"language"`
	ScanlationGroup *struct {
		Name string `json:"name"`
	} `json:"scanlation_group"`
}

type comixChapterPage struct {
	Result struct {
		Items      []comixChapter `json:"items"`
		Pagination struct {
			LastPage int `json:"last_page"`
		} `json:"pagination"`
	} `json:"result"`
}

// Search implements MangaProvider
func (c *ComixClient) Search(ctx context.Context, query string) ([]models.MangaSearchResult, error) {
	searchURL := fmt.Sprintf("%s/manga?keyword=%s&order[relevance]=desc", c.apiURL, url.QueryEscape(query))
	util.Debug("Comix search", "url", searchURL)

	var reply struct {
		Result struct {
			Items []comixItem `json:"items"`
		} `json:"result"`
	}
	if err := fetchJSON(ctx, c.client, searchURL, nil, &reply); err != nil {
		return nil, fmt.Errorf("comix search failed: %w", err)
	}

	results := make([]models.MangaSearchResult, 0, len(reply.Result.Items))
	for _, item := range reply.Result.Items {
		if item.HashID == "" {
			continue
		}
		results = append(results, models.MangaSearchResult{
			ID:        models.ComposeMangaID(item.HashID.String(), item.Slug),
			Title:     item.Title,
			AltTitles: item.AltTitles,
			Image:     firstNonEmpty(item.Poster.Medium, item.Poster.Large, item.Poster.Small),
		})
	}
	return results, nil
}

// ListChapters implements MangaProvider. Page one declares the page count;
// the remaining pages are fetched concurrently and merged in page order.
func (c *ComixClient) ListChapters(ctx context.Context, mangaID string) ([]models.MangaChapter, error) {
	hashID, slug, err := models.SplitMangaID(mangaID)
	if err != nil {
		return nil, err
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: missing slug in %q", models.ErrInvalidID, mangaID)
	}

	listURL := fmt.Sprintf("%s/manga/%s/chapters?order[number]=desc&limit=%d", c.apiURL, url.PathEscape(hashID), comixPageSize)
	first, err := c.fetchChapterPage(ctx, listURL)
	if err != nil {
		return nil, err
	}

	lastPage := min(max(first.Result.Pagination.LastPage, 1), comixMaxPages)
	pages := make([][]comixChapter, lastPage+1)
	pages[1] = first.Result.Items

	if lastPage > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(comixConcurrency)
		for page := 2; page <= lastPage; page++ {
			g.Go(func() error {
				reply, err := c.fetchChapterPage(gctx, fmt.Sprintf("%s&page=%d", listURL, page))
				if err != nil {
					return err
				}
				pages[page] = reply.Result.Items
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var chapters []models.MangaChapter
	for _, items := range pages {
		for _, item := range items {
			chapters = append(chapters, c.toChapter(hashID, slug, item))
		}
	}
	util.Debug("Comix chapters", "manga", mangaID, "pages", lastPage, "chapters", len(chapters))
	return SortChapters(chapters), nil
}

func (c *ComixClient) fetchChapterPage(ctx context.Context, pageURL string) (*comixChapterPage, error) {
	util.Debug("Comix chapter page", "url", pageURL)
	var reply comixChapterPage
	if err := fetchJSON(ctx, c.client, pageURL, nil, &reply); err != nil {
		return nil, fmt.Errorf("comix chapter list failed: %w", err)
	}
	return &reply, nil
}

func (c *ComixClient) toChapter(hashID, slug string, item comixChapter) models.MangaChapter {
	ref := models.ChapterRef{
		HashID:    hashID,
		Slug:      slug,
		ChapterID: item.ChapterID.String(),
		Number:    item.Number.String(),
	}

	chapter := models.MangaChapter{
		ID:       models.ComposeChapterID(ref),
		URL:      c.chapterURL(ref),
		Title:    ChapterTitle(ref.Number, item.Name),
		Chapter:  ref.Number,
		Language: item.Language,
	}
	switch {
	case item.IsOfficial == "1" || item.IsOfficial == "true":
		chapter.Scanlator = "Official"
	case item.ScanlationGroup != nil:
		chapter.Scanlator = strings.TrimSpace(item.ScanlationGroup.Name)
	}
	return chapter
}

func (c *ComixClient) chapterURL(ref models.ChapterRef) string {
	return fmt.Sprintf("%s/title/%s-%s/%s-chapter-%s", c.baseURL, ref.HashID, ref.Slug, ref.ChapterID, ref.Number)
}

// ChapterTitle builds the display title of a chapter. The name is appended
// unless it is empty or only repeats the default label.
func ChapterTitle(number, name string) string {
	base := "Chapter " + number
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, base) {
		return base
	}
	return base + " — " + name
}

// SortChapters orders chapters by descending numeric chapter value and
// reassigns Index to 0..N-1. Non-numeric chapters sort last.
func SortChapters(chapters []models.MangaChapter) []models.MangaChapter {
	value := func(ch models.MangaChapter) float64 {
		v, err := strconv.ParseFloat(strings.TrimSpace(ch.Chapter), 64)
		if err != nil || math.IsNaN(v) {
			return math.Inf(-1)
		}
		return v
	}
	sort.SliceStable(chapters, func(i, j int) bool {
		return value(chapters[i]) > value(chapters[j])
	})
	for i := range chapters {
		chapters[i].Index = i
	}
	return chapters
}

// UnknownScanlator keys chapters without a scanlator in GroupByScanlator
const UnknownScanlator = "Unknown"

// FilterByScanlator keeps the chapters released by scanlator, preserving
// order, and reassigns Index to 0..N-1 over the kept chapters.
func FilterByScanlator(chapters []models.MangaChapter, scanlator string) []models.MangaChapter {
	filtered := make([]models.MangaChapter, 0, len(chapters))
	for _, ch := range chapters {
		if ch.Scanlator == scanlator {
			ch.Index = len(filtered)
			filtered = append(filtered, ch)
		}
	}
	return filtered
}

// GroupByScanlator buckets chapters by scanlator. Chapters with no
// scanlator land under UnknownScanlator.
func GroupByScanlator(chapters []models.MangaChapter) map[string][]models.MangaChapter {
	grouped := make(map[string][]models.MangaChapter)
	for _, ch := range chapters {
		key := ch.Scanlator
		if key == "" {
			key = UnknownScanlator
		}
		grouped[key] = append(grouped[key], ch)
	}
	return grouped
}

// AvailableScanlators returns the distinct non-empty scanlators, sorted
func AvailableScanlators(chapters []models.MangaChapter) []string {
	seen := make(map[string]struct{})
	names := []string{}
	for _, ch := range chapters {
		if ch.Scanlator == "" {
			continue
		}
		if _, ok := seen[ch.Scanlator]; ok {
			continue
		}
		seen[ch.Scanlator] = struct{}{}
		names = append(names, ch.Scanlator)
	}
	sort.Strings(names)
	return names
}

// ListPages implements MangaProvider
func (c *ComixClient) ListPages(ctx context.Context, chapterID string) ([]models.MangaPage, error) {
	ref, err := models.SplitChapterID(chapterID)
	if err != nil {
		return nil, err
	}
	pageURL := c.chapterURL(ref)
	util.Debug("Comix chapter pages", "url", pageURL)

	body, err := fetchBody(ctx, c.client, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("comix chapter page failed: %w", err)
	}

	images, err := parseComixImages(string(body))
	if err != nil {
		return nil, err
	}

	pages := make([]models.MangaPage, 0, len(images))
	for i, img := range images {
		pages = append(pages, models.MangaPage{
			URL:     img,
			Index:   i,
			Headers: map[string]string{"Referer": pageURL},
		})
	}
	return pages, nil
}

// parseComixImages pulls the images array out of the reader page payload.
// The array may be embedded as escaped JSON inside a script string.
func parseComixImages(body string) ([]string, error) {
	m := comixImagesPattern.FindStringSubmatch(body)
	if m == nil {
		return nil, errImagesNotFound
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(m[1]), &raw); err != nil {
		clean := strings.ReplaceAll(m[1], `\"`, `"`)
		if err := json.Unmarshal([]byte(clean), &raw); err != nil {
			return nil, fmt.Errorf("failed to decode chapter images: %w", err)
		}
	}

	images := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			if s != "" {
				images = append(images, s)
			}
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && obj.URL != "" {
			images = append(images, obj.URL)
		}
	}
	return images, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
