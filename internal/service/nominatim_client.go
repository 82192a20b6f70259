package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// NominatimClient geocodes against an OpenStreetMap Nominatim endpoint.
type NominatimClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewNominatimClient creates a new NominatimClient.
func NewNominatimClient(baseURL string, logger zerolog.Logger) *NominatimClient {
	return &NominatimClient{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger.With().Str("service", "NominatimClient").Logger(),
	}
}

func (c *NominatimClient) Name() string { return "nominatim" }

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (c *NominatimClient) Geocode(ctx context.Context, query string) (model.Coordinates, error) {
	endpoint := fmt.Sprintf("%s/search?format=json&limit=1&q=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("creating nominatim request: %w", err)
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", "property-analysis-backend/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("calling nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Coordinates{}, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return model.Coordinates{}, fmt.Errorf("decoding nominatim response: %w", err)
	}
	if len(results) == 0 {
		return model.Coordinates{}, ErrGeocodeMiss
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lngErr != nil {
		return model.Coordinates{}, ErrGeocodeMiss
	}
	return model.Coordinates{Latitude: lat, Longitude: lng}, nil
}
