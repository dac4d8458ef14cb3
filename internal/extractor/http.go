package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

const maxBodySize = 8 << 20

func fetch(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to make request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	return body, nil
}

func fetchSources(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (*Sources, error) {
	body, err := fetch(ctx, client, rawURL, headers)
	if err != nil {
		return nil, err
	}
	var data Sources
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Wrapf(ErrNoUsableData, "failed to decode sources: %v", err)
	}
	return &data, nil
}
