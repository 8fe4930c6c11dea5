package google

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

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/couchcryptid/incident-ingest-service/internal/observability"
	"github.com/couchcryptid/incident-ingest-service/internal/retry"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Client implements domain.Geocoder using the Google Geocoding API.
type Client struct {
	apiKey     string
	language   string
	httpClient *http.Client
	baseURL    string
	retrier    *retry.Executor
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Google geocoding client. Requests carry the language
// hint so formatted components come back in the local script.
func NewClient(apiKey, language string, timeout time.Duration, retrier *retry.Executor, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:   apiKey,
		language: language,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		retrier: retrier,
		metrics: metrics,
		logger:  logger,
	}
}

// Geocode resolves address to coordinates. It returns domain.ErrEmptyAddress
// for an empty address; every other failure is logged and reported as nil
// coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (*domain.Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, domain.ErrEmptyAddress
	}
	if c.apiKey == "" {
		c.logger.Error("google maps API key is not configured, skipping geocode", "address", address)
		return nil, nil
	}

	resp, err := retry.Do(ctx, c.retrier, "geocode", func(ctx context.Context) (response, error) {
		return c.doRequest(ctx, address)
	})
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		c.logger.Error("geocode request failed", "address", address, "error", err)
		return nil, nil
	}

	if resp.Status != "OK" || len(resp.Results) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		c.logger.Info("address not resolved",
			"address", address,
			"status", resp.Status,
			"error_message", resp.ErrorMessage,
		)
		return nil, nil
	}

	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	r := resp.Results[0]
	return &domain.Coordinates{
		Latitude:         r.Geometry.Location.Lat,
		Longitude:        r.Geometry.Location.Lng,
		FormattedAddress: FormatAddress(r.AddressComponents),
	}, nil
}

func (c *Client) doRequest(ctx context.Context, address string) (response, error) {
	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}
	if c.language != "" {
		params.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return response{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return response{}, fmt.Errorf("google API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Google Geocoding API response types.

type response struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Results      []result `json:"results"`
}

type result struct {
	AddressComponents []AddressComponent `json:"address_components"`
	FormattedAddress  string             `json:"formatted_address"`
	Geometry          geometry           `json:"geometry"`
}

type geometry struct {
	Location latLng `json:"location"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
