package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wa_farm_advisor_bot/internal/logging"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5"
	lookupTimeout  = 10 * time.Second
)

// ErrCityNotFound is returned when the provider does not recognize the city.
var ErrCityNotFound = errors.New("weather: city not found")

// Client fetches current conditions from the OpenWeather API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient constructs an OpenWeather client.
func NewClient(apiKey string, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: lookupTimeout,
		},
		logger: logger,
	}
}

// currentResponse mirrors the subset of the OpenWeather current-conditions
// payload the bot reads.
type currentResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Current looks up current conditions for the city and derives alerts.
func (c *Client) Current(ctx context.Context, city string) (Snapshot, error) {
	if c == nil || c.httpClient == nil {
		return Snapshot{}, errors.New("weather client is not initialized")
	}
	if ctx == nil {
		return Snapshot{}, errors.New("context is required")
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return Snapshot{}, errors.New("city is required")
	}

	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	endpoint := fmt.Sprintf("%s/weather?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Snapshot{}, ErrCityNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("weather API error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read weather response: %w", err)
	}

	var parsed currentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Snapshot{}, fmt.Errorf("decode weather response: %w", err)
	}

	snapshot := Snapshot{
		City:      city,
		TempC:     parsed.Main.Temp,
		Humidity:  parsed.Main.Humidity,
		WindSpeed: parsed.Wind.Speed,
	}
	if parsed.Name != "" {
		snapshot.City = parsed.Name
	}
	if len(parsed.Weather) > 0 {
		snapshot.Condition = parsed.Weather[0].Main
		snapshot.Description = parsed.Weather[0].Description
	}
	snapshot.Alerts = DeriveAlerts(snapshot.TempC, snapshot.WindSpeed, snapshot.Condition)

	c.logger.WithFields(logging.Fields{
		"event":  "weather_lookup",
		"city":   snapshot.City,
		"temp_c": snapshot.TempC,
		"alerts": len(snapshot.Alerts),
	}).Debug("fetched current conditions")

	return snapshot, nil
}
