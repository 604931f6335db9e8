package apifootball

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"goalgazer/internal/logger"
)

const (
	// DefaultBaseURL is the API-Football v3 host.
	DefaultBaseURL = "https://v3.football.api-sports.io"
	// ProviderName is recorded in article provenance.
	ProviderName = "api-football"

	apiKeyHeader           = "x-apisports-key"
	defaultTimeout         = 30 * time.Second
	defaultRequestInterval = 400 * time.Millisecond
	maxResponseBytes       = 8 << 20
)

// ErrNotConfigured is returned when a live fetch is attempted without a key.
var ErrNotConfigured = errors.New("api-football key is not set")

// Endpoint describes one upstream resource and its cache file name.
type Endpoint struct {
	Name  string // cache file stem
	Path  string // path below the base URL
	Param string // query parameter carrying the match id
}

// Endpoints fetched for every match, in request order.
var (
	EndpointFixture    = Endpoint{Name: "fixture", Path: "fixtures", Param: "id"}
	EndpointEvents     = Endpoint{Name: "events", Path: "fixtures/events", Param: "fixture"}
	EndpointLineups    = Endpoint{Name: "lineups", Path: "fixtures/lineups", Param: "fixture"}
	EndpointStatistics = Endpoint{Name: "stats", Path: "fixtures/statistics", Param: "fixture"}
	EndpointPlayers    = Endpoint{Name: "players", Path: "fixtures/players", Param: "fixture"}
)

// ClientConfig holds the settings for a Client. Zero values take defaults.
type ClientConfig struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	RequestInterval time.Duration
	CacheDir        string
	HTTPClient      *http.Client
	Logger          *zerolog.Logger
}

// Client fetches fixture data from API-Football with an on-disk cache.
// Cached files never expire.
type Client struct {
	apiKey   string
	baseURL  string
	cacheDir string
	http     *http.Client
	limiter  *rate.Limiter
	log      *zerolog.Logger
}

// NewClient creates a client from the given configuration.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestInterval <= 0 {
		cfg.RequestInterval = defaultRequestInterval
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		cacheDir: cfg.CacheDir,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		log:      log,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Bundle is the full set of raw provider responses for one match.
type Bundle struct {
	MatchID    string
	Fixture    *FixtureResponse
	Events     *EventsResponse
	Lineups    *LineupsResponse
	Statistics *StatisticsResponse
	Players    *PlayersResponse
	FetchedAt  time.Time
	Endpoints  []string // upstream paths used, for provenance
	CacheHits  int
}

// FetchAll retrieves all five endpoints for a match sequentially.
func (c *Client) FetchAll(ctx context.Context, matchID string) (*Bundle, error) {
	b := &Bundle{
		MatchID:    matchID,
		Fixture:    &FixtureResponse{},
		Events:     &EventsResponse{},
		Lineups:    &LineupsResponse{},
		Statistics: &StatisticsResponse{},
		Players:    &PlayersResponse{},
		FetchedAt:  time.Now().UTC(),
	}

	steps := []struct {
		ep  Endpoint
		out any
	}{
		{EndpointFixture, b.Fixture},
		{EndpointEvents, b.Events},
		{EndpointLineups, b.Lineups},
		{EndpointStatistics, b.Statistics},
		{EndpointPlayers, b.Players},
	}
	for _, step := range steps {
		hit, err := c.Fetch(ctx, matchID, step.ep, step.out)
		if err != nil {
			return nil, err
		}
		if hit {
			b.CacheHits++
		}
		b.Endpoints = append(b.Endpoints, step.ep.Path)
	}

	for _, check := range []error{b.Fixture.Err(), b.Events.Err(), b.Lineups.Err(), b.Statistics.Err(), b.Players.Err()} {
		if check != nil {
			return nil, check
		}
	}
	return b, nil
}

// Fetch decodes one endpoint into out, serving from cache when possible.
// It reports whether the cache was hit.
func (c *Client) Fetch(ctx context.Context, matchID string, ep Endpoint, out any) (bool, error) {
	cachePath := c.cachePath(matchID, ep)
	if cachePath != "" {
		if data, err := os.ReadFile(cachePath); err == nil {
			if err := json.Unmarshal(data, out); err != nil {
				return true, fmt.Errorf("decode cached %s: %w", ep.Name, err)
			}
			c.log.Debug().Str("match_id", matchID).Str("endpoint", ep.Name).Msg("cache hit")
			return true, nil
		}
	}

	if !c.Configured() {
		return false, ErrNotConfigured
	}

	data, err := c.get(ctx, ep, matchID)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", ep.Name, err)
	}

	if cachePath != "" {
		if err := writeCache(cachePath, data); err != nil {
			c.log.Warn().Err(err).Str("path", cachePath).Msg("failed to write provider cache")
		}
	}
	return false, nil
}

func (c *Client) get(ctx context.Context, ep Endpoint, matchID string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set(ep.Param, matchID)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, ep.Path, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", ep.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ep.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("api-football %s returned status %d: %s", ep.Path, resp.StatusCode, truncate(string(body), 200))
	}

	c.log.Info().
		Str("endpoint", ep.Path).
		Str("match_id", matchID).
		Dur("elapsed", time.Since(start)).
		Msg("fetched from api-football")
	return body, nil
}

func (c *Client) cachePath(matchID string, ep Endpoint) string {
	if c.cacheDir == "" {
		return ""
	}
	return filepath.Join(c.cacheDir, matchID, ep.Name+".json")
}

func writeCache(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
