// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// maxJSONResponseBytes is the upper bound on JSON API response size (10 MB).
const maxJSONResponseBytes = 10 << 20

// defaultUserAgent is sent when no explicit User-Agent is configured.
const defaultUserAgent = "raincoat/dev"

// newGetRequest creates a GET request carrying the given headers.
func newGetRequest(ctx context.Context, reqURL string, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(body io.Reader, v any) error {
	if err := json.NewDecoder(io.LimitReader(body, maxJSONResponseBytes)).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// redactURL strips query parameters and fragments from a URL for safe inclusion
// in error messages, preventing accidental exposure of tokens or sensitive data.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
