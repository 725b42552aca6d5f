// Package weather answers !tiempo queries against the OpenWeatherMap
// current-weather endpoint.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bdobrica/poruko/common/retry"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	defaultCountry = "es"
	defaultTimeout = 5 * time.Second
)

// Config configures the weather client.
type Config struct {
	// APIKey is the OpenWeatherMap key. Empty disables the client; Get then
	// fails immediately and the dispatcher falls back to its error message.
	APIKey string
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
	// Country is the ISO country code appended to postal codes. Defaults to "es".
	Country string
	// Timeout bounds each HTTP attempt. Defaults to 5 s.
	Timeout time.Duration
}

// Client looks up current weather by postal code. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client with defaults filled in.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Country == "" {
		cfg.Country = defaultCountry
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// owmResponse is the subset of the OpenWeatherMap payload Poruko renders.
type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Get returns a one-line weather report for a postal code, e.g.
// "🌤️ Madrid: 21.3ºC, cielo claro". Transient failures are retried with a
// small fixed budget; the final error is returned for the dispatcher to
// replace with its fallback string.
func (c *Client) Get(ctx context.Context, zip string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("weather: no API key configured")
	}

	params := url.Values{}
	params.Set("zip", zip+","+c.cfg.Country)
	params.Set("appid", c.cfg.APIKey)
	params.Set("units", "metric")
	params.Set("lang", "es")

	var report string
	err := retry.Do(ctx, retry.Config{MaxAttempts: 3, InitialDelay: 300 * time.Millisecond}, func() error {
		var err error
		report, err = c.fetch(ctx, params)
		return err
	})
	if err != nil {
		return "", err
	}
	return report, nil
}

func (c *Client) fetch(ctx context.Context, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("weather: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("weather: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather: HTTP %d from API", resp.StatusCode)
	}

	var parsed owmResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("weather: decode response: %w", err)
	}
	if len(parsed.Weather) == 0 {
		return "", fmt.Errorf("weather: response has no conditions")
	}

	return fmt.Sprintf("🌤️ %s: %.1fºC, %s", parsed.Name, parsed.Main.Temp, parsed.Weather[0].Description), nil
}
