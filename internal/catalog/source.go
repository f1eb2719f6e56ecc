package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://backend.digantara.dev"
	defaultPath    = "/v1/satellites"

	// maxBodyBytes bounds the catalog response read.
	maxBodyBytes = 50 << 20
)

// Fields is the attribute list requested from the backend.
var Fields = []string{"noradCatId", "name", "orbitCode", "objectType", "countryCode", "launchDate"}

// Source performs the single catalog read.
type Source interface {
	Fetch(ctx context.Context) ([]Entry, error)
}

// SourceConfig configures the HTTP catalog source.
type SourceConfig struct {
	BaseURL string
	Path    string
	Timeout time.Duration
	// Params are extra query parameters sent with every read.
	Params map[string]string
}

// HTTPSource fetches the catalog from the REST backend.
type HTTPSource struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPSource creates an HTTPSource. Empty config fields take defaults.
func NewHTTPSource(cfg SourceConfig, logger *slog.Logger) (*HTTPSource, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog endpoint: %w", err)
	}
	q := u.Query()
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	q.Set("attributes", strings.Join(Fields, ","))
	u.RawQuery = q.Encode()

	return &HTTPSource{
		endpoint: u.String(),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

// Endpoint returns the full request URL including the attribute list.
func (s *HTTPSource) Endpoint() string {
	return s.endpoint
}

// Fetch performs an HTTP GET and decodes the envelope's entry list.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, s.endpoint)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding catalog envelope: %w", err)
	}

	s.logger.Debug("catalog fetched",
		"component", "catalog",
		"entries", len(env.Data),
		"backend_status", env.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return env.Data, nil
}
