package extractor

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"github.com/pkg/errors"
)

// MobileUserAgent is sent to the embed host
const MobileUserAgent = "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Mobile Safari/537.36"

const sourcesPath = "embed-2/v3/e-1/getSources"

var (
	fileIDPattern  = regexp.MustCompile(`(?i)<title>\s*File\s+#([a-zA-Z0-9]+)\s*-`)
	nonce48Pattern = regexp.MustCompile(`\b[a-zA-Z0-9]{48}\b`)
	nonce16Pattern = regexp.MustCompile(`["']([A-Za-z0-9]{16})["']`)
)

// MegaCloud performs the embed key exchange: it scrapes the file id and nonce
// from the embed page and asks the embed host's getSources endpoint for the
// stream list. One pass, no retries.
type MegaCloud struct {
	client    *http.Client
	userAgent string
}

// NewMegaCloud creates a MegaCloud extractor using the given HTTP client
func NewMegaCloud(client *http.Client) *MegaCloud {
	if client == nil {
		client = util.GetSharedClient()
	}
	return &MegaCloud{client: client, userAgent: MobileUserAgent}
}

// Name implements Extractor
func (m *MegaCloud) Name() string { return "megacloud" }

// Extract implements Extractor
func (m *MegaCloud) Extract(ctx context.Context, embedURL string) (*Sources, error) {
	baseDomain, err := embedOrigin(embedURL)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		"Accept":           "*/*",
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          baseDomain,
		"User-Agent":       m.userAgent,
	}

	util.Debug("Fetching embed page", "url", embedURL)
	page, err := fetch(ctx, m.client, embedURL, headers)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch embed page")
	}

	html := string(page)
	fileID, err := ParseFileID(html)
	if err != nil {
		return nil, err
	}
	nonce, err := ParseNonce(html)
	if err != nil {
		return nil, err
	}

	sourcesURL := baseDomain + sourcesPath + "?id=" + url.QueryEscape(fileID) + "&_k=" + url.QueryEscape(nonce)

	util.Debug("Requesting embed sources", "fileId", fileID, "url", sourcesURL)
	data, err := fetchSources(ctx, m.client, sourcesURL, headers)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch sources")
	}
	if len(data.Sources) == 0 {
		return nil, ErrNoUsableData
	}
	return data, nil
}

// ParseFileID extracts the file id from the embed page <title>
func ParseFileID(html string) (string, error) {
	m := fileIDPattern.FindStringSubmatch(html)
	if len(m) < 2 {
		return "", ErrFileIDNotFound
	}
	return m[1], nil
}

// ParseNonce extracts the key-exchange nonce. A single 48 character token wins;
// otherwise the first three quoted 16 character tokens are joined in order.
func ParseNonce(html string) (string, error) {
	if token := nonce48Pattern.FindString(html); token != "" {
		return token, nil
	}
	parts := nonce16Pattern.FindAllStringSubmatch(html, 3)
	if len(parts) < 3 {
		return "", ErrNonceNotFound
	}
	return parts[0][1] + parts[1][1] + parts[2][1], nil
}

func embedOrigin(embedURL string) (string, error) {
	u, err := url.Parse(embedURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("invalid embed url %q", embedURL)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}
