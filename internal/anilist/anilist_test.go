package anilist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAniListServer(t *testing.T, handler func(vars map[string]interface{}) (int, string)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Query, "startDate")

		status, payload := handler(body.Variables)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMedia(t *testing.T) {
	t.Parallel()

	server := newAniListServer(t, func(vars map[string]interface{}) (int, string) {
		assert.Equal(t, float64(154587), vars["id"])
		return http.StatusOK, `{"data": {"Media": {
			"id": 154587, "format": "TV", "episodes": 28,
			"synonyms": ["Frieren at the Funeral"],
			"title": {"romaji": "Sousou no Frieren", "english": "Frieren: Beyond Journey's End", "native": "葬送のフリーレン"},
			"startDate": {"year": 2023, "month": 9, "day": 29}
		}}}`
	})

	media, err := New(server.Client(), server.URL).Media(context.Background(), 154587)
	require.NoError(t, err)
	assert.Equal(t, 154587, media.AnilistID)
	assert.Equal(t, "Sousou no Frieren", media.RomajiTitle)
	assert.Equal(t, "Frieren: Beyond Journey's End", media.EnglishTitle)
	assert.Equal(t, []string{"Frieren at the Funeral"}, media.Synonyms)
	assert.Equal(t, &models.StartDate{Year: 2023, Month: 9, Day: 29}, media.StartDate)
}

func TestMediaPartialStartDate(t *testing.T) {
	t.Parallel()

	server := newAniListServer(t, func(map[string]interface{}) (int, string) {
		return http.StatusOK, `{"data": {"Media": {"id": 1, "title": {"romaji": "Upcoming"}, "startDate": {"year": 2027, "month": null, "day": null}}}}`
	})

	media, err := New(server.Client(), server.URL).Media(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &models.StartDate{Year: 2027}, media.StartDate)
}

func TestMediaWithoutStartDate(t *testing.T) {
	t.Parallel()

	server := newAniListServer(t, func(map[string]interface{}) (int, string) {
		return http.StatusOK, `{"data": {"Media": {"id": 2, "title": {"romaji": "TBA"}, "startDate": {"year": null}}}}`
	})

	media, err := New(server.Client(), server.URL).Media(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, media.StartDate)
	assert.False(t, media.StartDate.HasYear())
}

func TestMediaNotFound(t *testing.T) {
	t.Parallel()

	server := newAniListServer(t, func(map[string]interface{}) (int, string) {
		return http.StatusNotFound, `{"errors": [{"message": "Not Found.", "status": 404}], "data": {"Media": null}}`
	})

	_, err := New(server.Client(), server.URL).Media(context.Background(), 99999999)
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestMediaServerError(t *testing.T) {
	t.Parallel()

	server := newAniListServer(t, func(map[string]interface{}) (int, string) {
		return http.StatusTooManyRequests, `{"errors": [{"message": "Too Many Requests.", "status": 429}], "data": null}`
	})

	_, err := New(server.Client(), server.URL).Media(context.Background(), 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMediaNotFound)
	assert.Contains(t, err.Error(), "429")
}

func TestMediaRejectsInvalidID(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "").Media(context.Background(), 0)
	assert.ErrorIs(t, err, models.ErrInvalidID)
}

func TestMediaByMAL(t *testing.T) {
	t.Parallel()

	server := newAniListServer(t, func(vars map[string]interface{}) (int, string) {
		assert.Equal(t, float64(52991), vars["malId"])
		assert.Equal(t, "ANIME", vars["type"])
		return http.StatusOK, `{"data": {"Media": {"id": 154587, "title": {"romaji": "Sousou no Frieren"}, "startDate": {"year": 2023, "month": 9, "day": 29}}}}`
	})

	media, err := New(server.Client(), server.URL).MediaByMAL(context.Background(), 52991, "anime")
	require.NoError(t, err)
	assert.Equal(t, 154587, media.AnilistID)
}

func TestSearchQuery(t *testing.T) {
	t.Parallel()

	q := SearchQuery(&models.MediaInfo{RomajiTitle: "Shingeki no Kyojin", EnglishTitle: "Attack on Titan"}, true)
	assert.Equal(t, "Shingeki no Kyojin", q.Query)
	assert.True(t, q.Dub)

	q = SearchQuery(&models.MediaInfo{EnglishTitle: "Attack on Titan"}, false)
	assert.Equal(t, "Attack on Titan", q.Query)
	assert.Equal(t, models.Sub, q.SubOrDub())
}
