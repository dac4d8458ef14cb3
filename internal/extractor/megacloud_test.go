package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nonce48 = strings.Repeat("aB3", 16)

const sourcesJSON = `{
	"sources": [{"file": "https://cdn.example/master.m3u8", "type": "hls"}],
	"tracks": [
		{"file": "https://cdn.example/en.vtt", "label": "English", "kind": "captions", "default": true},
		{"file": "https://cdn.example/thumbs.vtt", "kind": "thumbnails"}
	],
	"intro": {"start": 10, "end": 95},
	"outro": {"start": 0, "end": 0},
	"server": 4
}`

func embedPage(nonceMarkup string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>File #xYz123 - MegaCloud</title></head>
<body>
<script>%s</script>
</body>
</html>`, nonceMarkup)
}

func newEmbedServer(t *testing.T, page string, sourcesCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Equal(t, server.URL+"/", r.Header.Get("Referer"))
		assert.Equal(t, MobileUserAgent, r.Header.Get("User-Agent"))

		switch r.URL.Path {
		case "/embed-2/v3/e-1/xYz123":
			_, _ = fmt.Fprint(w, page)
		case "/embed-2/v3/e-1/getSources":
			if sourcesCalls != nil {
				sourcesCalls.Add(1)
			}
			assert.Equal(t, "xYz123", r.URL.Query().Get("id"))
			assert.NotEmpty(t, r.URL.Query().Get("_k"))
			_, _ = fmt.Fprint(w, sourcesJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	return server
}

func TestParseFileID(t *testing.T) {
	t.Parallel()

	id, err := ParseFileID(`<title> file #AbC9 - x</title>`)
	require.NoError(t, err)
	assert.Equal(t, "AbC9", id)

	_, err = ParseFileID(`<title>Just a moment...</title>`)
	assert.ErrorIs(t, err, ErrFileIDNotFound)
}

func TestParseNonce(t *testing.T) {
	t.Parallel()

	nonce, err := ParseNonce(`window._x = "` + nonce48 + `";`)
	require.NoError(t, err)
	assert.Equal(t, nonce48, nonce)

	nonce, err = ParseNonce(`a="AAAAAAAAAAAAAAAA", b='BBBBBBBBBBBBBBBB', c="CCCCCCCCCCCCCCCC", d="DDDDDDDDDDDDDDDD"`)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAAAAAAAAAABBBBBBBBBBBBBBBBCCCCCCCCCCCCCCCC", nonce)

	_, err = ParseNonce(`a="AAAAAAAAAAAAAAAA", b="BBBBBBBBBBBBBBBB"`)
	assert.ErrorIs(t, err, ErrNonceNotFound)

	// a 49 character run has no word boundary at 48
	_, err = ParseNonce(strings.Repeat("a", 49))
	assert.ErrorIs(t, err, ErrNonceNotFound)
}

func TestMegaCloudExtract(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newEmbedServer(t, embedPage(`var k = "`+nonce48+`";`), &calls)
	defer server.Close()

	data, err := NewMegaCloud(server.Client()).Extract(context.Background(), server.URL+"/embed-2/v3/e-1/xYz123?k=1")
	require.NoError(t, err)
	require.Len(t, data.Sources, 1)
	assert.Equal(t, "hls", data.Sources[0].Type)
	assert.Len(t, data.Tracks, 2)
	require.NotNil(t, data.Intro)
	assert.Equal(t, 95.0, data.Intro.End)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMegaCloudExtractMissingNonce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newEmbedServer(t, embedPage(`var k = "short";`), &calls)
	defer server.Close()

	_, err := NewMegaCloud(server.Client()).Extract(context.Background(), server.URL+"/embed-2/v3/e-1/xYz123")
	assert.ErrorIs(t, err, ErrNonceNotFound)
	assert.Equal(t, int32(0), calls.Load())
}

func TestMegaCloudExtractInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewMegaCloud(nil).Extract(context.Background(), "not a url")
	require.Error(t, err)
}

func TestRelayExtract(t *testing.T) {
	t.Parallel()

	embed := "https://megacloud.blog/embed-2/v3/e-1/abc?k=1"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, embed, r.URL.Query().Get("embedUrl"))
		_, _ = fmt.Fprint(w, sourcesJSON)
	}))
	defer server.Close()

	data, err := NewRelay(server.Client(), server.URL+"/convert").Extract(context.Background(), embed)
	require.NoError(t, err)
	assert.Len(t, data.Sources, 1)
}

func TestRelayExtractBadPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"sources": "encrypted-blob"}`)
	}))
	defer server.Close()

	_, err := NewRelay(server.Client(), server.URL).Extract(context.Background(), "https://x.example/e/1")
	assert.ErrorIs(t, err, ErrNoUsableData)
}
