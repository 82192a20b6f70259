package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// GeoapifyClient geocodes against the Geoapify forward-geocoding API. It is
// the second link in the resolver chain behind Nominatim.
type GeoapifyClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewGeoapifyClient creates a new GeoapifyClient.
func NewGeoapifyClient(baseURL, apiKey string, logger zerolog.Logger) *GeoapifyClient {
	return &GeoapifyClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
		logger:  logger.With().Str("service", "GeoapifyClient").Logger(),
	}
}

func (c *GeoapifyClient) Name() string { return "geoapify" }

type geoapifyResponse struct {
	Features []struct {
		Properties struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		} `json:"properties"`
	} `json:"features"`
}

func (c *GeoapifyClient) Geocode(ctx context.Context, query string) (model.Coordinates, error) {
	endpoint := fmt.Sprintf("%s/v1/geocode/search?text=%s&limit=1&apiKey=%s", c.baseURL, url.QueryEscape(query), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("creating geoapify request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("calling geoapify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Coordinates{}, fmt.Errorf("geoapify returned status %d", resp.StatusCode)
	}

	var parsed geoapifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.Coordinates{}, fmt.Errorf("decoding geoapify response: %w", err)
	}
	if len(parsed.Features) == 0 {
		return model.Coordinates{}, ErrGeocodeMiss
	}
	props := parsed.Features[0].Properties
	if props.Lat == nil || props.Lon == nil {
		return model.Coordinates{}, ErrGeocodeMiss
	}
	return model.Coordinates{Latitude: *props.Lat, Longitude: *props.Lon}, nil
}
