package extractor

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"github.com/pkg/errors"
)

// DefaultRelayURL is the public decrypt relay
const DefaultRelayURL = "https://ac-api.ofchaos.com/api/anime/embed/convert/v2"

// Relay asks a third-party decrypt service to convert an embed URL. It returns
// the same payload shape as the embed host.
type Relay struct {
	client  *http.Client
	baseURL string
}

// NewRelay creates a relay extractor. An empty baseURL uses DefaultRelayURL.
func NewRelay(client *http.Client, baseURL string) *Relay {
	if client == nil {
		client = util.GetSharedClient()
	}
	if baseURL == "" {
		baseURL = DefaultRelayURL
	}
	return &Relay{client: client, baseURL: baseURL}
}

// Name implements Extractor
func (r *Relay) Name() string { return "relay" }

// Extract implements Extractor
func (r *Relay) Extract(ctx context.Context, embedURL string) (*Sources, error) {
	relayURL := r.baseURL + "?embedUrl=" + url.QueryEscape(embedURL)
	util.Debug("Calling decrypt relay", "url", relayURL)

	data, err := fetchSources(ctx, r.client, relayURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, errors.Wrap(err, "decrypt relay failed")
	}
	return data, nil
}
