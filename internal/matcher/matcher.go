package matcher

import (
	"sort"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/internal/models"
)

// Stage identifies which step of the waterfall produced a match
type Stage int

const (
	StageNone Stage = iota
	StageExactDate
	StageExactYear
	StageFuzzyDate
	StageFuzzyYear
	StageTitleOnly
)

func (s Stage) String() string {
	switch s {
	case StageExactDate:
		return "exact-title+year+month"
	case StageExactYear:
		return "exact-title+year"
	case StageFuzzyDate:
		return "fuzzy-title+year+month"
	case StageFuzzyYear:
		return "fuzzy-title+year"
	case StageTitleOnly:
		return "title-only"
	default:
		return "none"
	}
}

// Matcher selects catalog candidates for a query. Each stage runs only when
// every stricter stage before it matched nothing.
type Matcher struct {
	// Threshold is the similarity a fuzzy title must exceed.
	Threshold float64
}

// New returns a Matcher using DefaultSimilarityThreshold
func New() *Matcher {
	return &Matcher{Threshold: DefaultSimilarityThreshold}
}

// normalized holds the loose forms of one candidate
type normalized struct {
	candidate models.CatalogCandidate
	title     string
	native    []string
}

type stage struct {
	id    Stage
	title func(normalized) bool
	date  func(models.StartDate) bool
}

// Match runs the waterfall and returns the surviving candidates in catalog
// order together with the stage that produced them. A query without a start
// year goes straight to the title-only stage against the raw query string.
func (m *Matcher) Match(query models.SearchQuery, candidates []models.CatalogCandidate) ([]models.CatalogCandidate, Stage) {
	if len(candidates) == 0 {
		return nil, StageNone
	}
	start := query.Media.StartDate
	if !start.HasYear() {
		matches := m.MatchTitleOnly(query.Query, candidates)
		if len(matches) == 0 {
			return nil, StageNone
		}
		return matches, StageTitleOnly
	}

	targetNative := NormalizeLoose(query.Media.RomajiTitle)
	target := targetNative
	if query.Media.EnglishTitle != "" {
		target = NormalizeLoose(query.Media.EnglishTitle)
	}

	items := make([]normalized, 0, len(candidates))
	for _, c := range candidates {
		n := normalized{candidate: c, title: NormalizeLoose(c.Title)}
		n.native = append(n.native, NormalizeLoose(c.TitleNative))
		for _, syn := range c.Synonyms {
			n.native = append(n.native, NormalizeLoose(syn))
		}
		items = append(items, n)
	}

	exact := func(n normalized) bool {
		if equalNonEmpty(n.title, target) {
			return true
		}
		for _, native := range n.native {
			if equalNonEmpty(native, targetNative) {
				return true
			}
		}
		return false
	}
	fuzzy := func(n normalized) bool {
		if m.fuzzy(n.title, target) {
			return true
		}
		for _, native := range n.native {
			if m.fuzzy(native, targetNative) {
				return true
			}
		}
		return false
	}
	yearMonth := func(d models.StartDate) bool {
		return d.Year == start.Year && start.Month > 0 && d.Month == start.Month
	}
	yearOnly := func(d models.StartDate) bool {
		return d.Year == start.Year
	}

	stages := []stage{
		{StageExactDate, exact, yearMonth},
		{StageExactYear, exact, yearOnly},
		{StageFuzzyDate, fuzzy, yearMonth},
		{StageFuzzyYear, fuzzy, yearOnly},
	}
	for _, st := range stages {
		var out []models.CatalogCandidate
		for _, n := range items {
			if st.date(n.candidate.StartDate) && st.title(n) {
				out = append(out, n.candidate)
			}
		}
		if len(out) > 0 {
			return out, st.id
		}
	}
	return nil, StageNone
}

// MatchTitleOnly compares strict-normalized candidate titles against the raw
// query string with no date constraint. Results are ordered by normalized title
// length, then lexicographically, so the shortest literal title comes first.
func (m *Matcher) MatchTitleOnly(raw string, candidates []models.CatalogCandidate) []models.CatalogCandidate {
	target := NormalizeStrict(raw)
	if target == "" {
		return nil
	}

	type keyed struct {
		candidate models.CatalogCandidate
		key       string
	}
	var out []keyed
	for _, c := range candidates {
		titles := append([]string{c.Title, c.TitleNative}, c.Synonyms...)
		for _, title := range titles {
			if m.fuzzy(NormalizeStrict(title), target) {
				out = append(out, keyed{candidate: c, key: NormalizeStrict(c.Title)})
				break
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].key) != len(out[j].key) {
			return len(out[i].key) < len(out[j].key)
		}
		return out[i].key < out[j].key
	})

	matches := make([]models.CatalogCandidate, len(out))
	for i, k := range out {
		matches[i] = k.candidate
	}
	return matches
}

func (m *Matcher) fuzzy(a, target string) bool {
	if a == "" || target == "" {
		return false
	}
	if strings.Contains(a, target) || strings.Contains(target, a) {
		return true
	}
	return Similarity(a, target) > m.threshold()
}

func (m *Matcher) threshold() float64 {
	if m == nil || m.Threshold <= 0 {
		return DefaultSimilarityThreshold
	}
	return m.Threshold
}

func equalNonEmpty(a, b string) bool {
	return a != "" && a == b
}

// FilterDub drops candidates that have no dubbed track
func FilterDub(candidates []models.CatalogCandidate) []models.CatalogCandidate {
	out := make([]models.CatalogCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.SupportsDub {
			out = append(out, c)
		}
	}
	return out
}

// Results converts matched candidates into match results for the given track.
// PageURL must already be absolute.
func Results(candidates []models.CatalogCandidate, track models.SubOrDub) []models.MatchResult {
	results := make([]models.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, models.MatchResult{
			ID:       models.ComposeCatalogID(c.ID, track),
			Title:    c.Title,
			URL:      c.PageURL,
			SubOrDub: track,
		})
	}
	return results
}
