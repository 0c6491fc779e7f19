package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/medgrid/dispatch-api/internal/model"
	"github.com/medgrid/dispatch-api/pkg/circuitbreaker"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
	defaultTimeout = 5 * time.Second
)

// ErrUnavailable is the uniform failure every upstream problem collapses
// into: bad key, rate limit, network error, malformed payload. Callers treat
// them all as "distance unknown".
var ErrUnavailable = errors.New("distance lookup unavailable")

// Result is a road-distance lookup outcome.
type Result struct {
	DistanceKm      float64
	DurationMinutes int
}

// Lookuper resolves an origin/destination pair to road distance and travel time.
type Lookuper interface {
	Lookup(ctx context.Context, origin, destination model.GeoPoint) (*Result, error)
}

// Config controls the distance matrix client.
type Config struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client calls the Google Distance Matrix API with a bounded timeout, a TTL
// cache for repeated pairs and a circuit breaker guarding a dead provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	breaker    *circuitbreaker.CircuitBreaker
	logger     zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		breaker: circuitbreaker.New(circuitbreaker.Settings{
			Name:        "distance-matrix",
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		}),
		logger: logger,
	}
}

// Lookup resolves road distance and travel time between two points.
func (c *Client) Lookup(ctx context.Context, origin, destination model.GeoPoint) (*Result, error) {
	key := cacheKey(origin, destination)
	if cached, ok := c.cache.Get(key); ok {
		result := cached.(Result)
		return &result, nil
	}

	var result *Result
	err := c.breaker.Execute(func() error {
		r, err := c.fetch(ctx, origin, destination)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).
			Float64("origin_lat", origin.Latitude).
			Float64("origin_lng", origin.Longitude).
			Msg("distance lookup failed")
		return nil, ErrUnavailable
	}

	c.cache.SetDefault(key, *result)
	return result, nil
}

func (c *Client) fetch(ctx context.Context, origin, destination model.GeoPoint) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("distance matrix api key is required")
	}

	params := url.Values{}
	params.Set("origins", fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude))
	params.Set("destinations", fmt.Sprintf("%f,%f", destination.Latitude, destination.Longitude))
	params.Set("key", c.apiKey)

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build distance request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("distance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("distance request returned status %d", resp.StatusCode)
	}

	var payload matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode distance response: %w", err)
	}

	if payload.Status != "OK" {
		return nil, fmt.Errorf("distance request failed: %s", payload.Status)
	}
	if len(payload.Rows) == 0 || len(payload.Rows[0].Elements) == 0 {
		return nil, fmt.Errorf("distance response contained no elements")
	}

	element := payload.Rows[0].Elements[0]
	if element.Status != "OK" {
		return nil, fmt.Errorf("distance element failed: %s", element.Status)
	}

	return &Result{
		DistanceKm:      float64(element.Distance.Value) / 1000,
		DurationMinutes: int(math.Ceil(float64(element.Duration.Value) / 60)),
	}, nil
}

func cacheKey(origin, destination model.GeoPoint) string {
	return fmt.Sprintf("%.4f,%.4f|%.4f,%.4f",
		origin.Latitude, origin.Longitude,
		destination.Latitude, destination.Longitude)
}

type matrixResponse struct {
	Status string      `json:"status"`
	Rows   []matrixRow `json:"rows"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixElement struct {
	Status   string      `json:"status"`
	Distance matrixValue `json:"distance"`
	Duration matrixValue `json:"duration"`
}

type matrixValue struct {
	Value int `json:"value"`
}
