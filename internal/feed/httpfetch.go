package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aistocker/quotehub/internal/quote"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPFetcher retrieves raw provider payloads over HTTP. The endpoint is a
// printf template with one %s verb that receives the instrument code; the
// response body must be a JSON object.
type HTTPFetcher struct {
	source   quote.Source
	endpoint string
	client   *http.Client
}

type HTTPOption func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client, e.g. one pointed at a test server.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) { f.client = c }
}

func NewHTTPFetcher(source quote.Source, endpoint string, opts ...HTTPOption) (*HTTPFetcher, error) {
	if strings.Count(endpoint, "%s") != 1 {
		return nil, fmt.Errorf("endpoint for %s must contain exactly one %%s code placeholder", source)
	}
	f := &HTTPFetcher{
		source:   source,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, code string) (map[string]any, error) {
	reqURL := fmt.Sprintf(f.endpoint, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.source, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d", f.source, res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", f.source, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", f.source, err)
	}
	return raw, nil
}
