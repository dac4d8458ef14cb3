package main

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/Ani-Moopa/moopa-resolver/pkg/moopa/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMappingRef(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ref     string
		source  types.Source
		id      int
		wantErr bool
	}{
		{"hianime:154587", types.SourceHiAnime, 154587, false},
		{"source2:21", types.SourceAniCrush, 21, false},
		{"hianime", 0, 0, true},
		{"hianime:abc", 0, 0, true},
		{"hianime:0", 0, 0, true},
		{"allanime:1", 0, 0, true},
	}
	for _, tt := range tests {
		source, id, err := parseMappingRef(tt.ref)
		if tt.wantErr {
			assert.Error(t, err, tt.ref)
			continue
		}
		require.NoError(t, err, tt.ref)
		assert.Equal(t, tt.source, source)
		assert.Equal(t, tt.id, id)
	}
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()
	f := searchFlags{dub: true, year: 2023, month: 9, english: "Frieren: Beyond Journey's End"}
	q := f.buildQuery("Sousou no Frieren")

	assert.Equal(t, "Sousou no Frieren", q.Query)
	assert.Equal(t, "Sousou no Frieren", q.Media.RomajiTitle)
	assert.Equal(t, "Frieren: Beyond Journey's End", q.Media.EnglishTitle)
	assert.True(t, q.Dub)
	require.NotNil(t, q.Media.StartDate)
	assert.Equal(t, types.StartDate{Year: 2023, Month: 9}, *q.Media.StartDate)

	assert.Nil(t, (&searchFlags{}).buildQuery("Frieren").Media.StartDate)
}

func TestPrintJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	a := &app{out: &buf, json: true}
	called := false

	err := a.print([]types.MatchResult{{ID: "frieren-18542/sub", Title: "Frieren", SubOrDub: types.Sub}}, func(io.Writer) { called = true })
	require.NoError(t, err)
	assert.False(t, called)

	var got []types.MatchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "frieren-18542/sub", got[0].ID)
}

func TestPrintStyled(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	a := &app{out: &buf}
	src := &types.EpisodeServer{
		Server:       "HD-2",
		Headers:      map[string]string{"Referer": "https://megacloud.blog/"},
		VideoSources: []types.VideoSource{{URL: "https://cdn.example/master.m3u8", Type: "hls", Quality: "auto"}},
		Intro:        &types.Skip{Start: 30, End: 120},
	}

	require.NoError(t, a.print(src, func(w io.Writer) { printServer(w, src) }))
	out := buf.String()
	assert.Contains(t, out, "HD-2")
	assert.Contains(t, out, "https://cdn.example/master.m3u8")
	assert.Contains(t, out, "Referer: https://megacloud.blog/")
	assert.Contains(t, out, "30s - 120s")
	assert.NotContains(t, out, "Outro")
}

func TestEpisodeLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Episode 3", episodeLabel(types.Episode{Number: 3}))
	assert.Equal(t, "1. The Journey's End", episodeLabel(types.Episode{Number: 1, Title: "The Journey's End"}))
}

func TestPrintScanlators(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printScanlators(&buf, []string{"Official", "TCB"})
	assert.Contains(t, buf.String(), "Official")
	assert.Contains(t, buf.String(), "TCB")

	buf.Reset()
	printScanlators(&buf, nil)
	assert.Contains(t, buf.String(), "no scanlators")
}

func TestPrintTracksShowsProviderAndCatalogID(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printTracks(&buf, &types.EpisodeTracks{ProviderID: "hianime", CatalogID: "18542", Sub: []types.Episode{{ID: "107257/sub", Number: 1}}})
	out := buf.String()
	assert.Contains(t, out, "hianime")
	assert.Contains(t, out, "18542")
	assert.Contains(t, out, "Sub (1)")
}
