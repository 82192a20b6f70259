package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// AirbticsClient is the fallback market data adapter.
type AirbticsClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewAirbticsClient creates a new AirbticsClient.
func NewAirbticsClient(baseURL, apiKey string, logger zerolog.Logger) *AirbticsClient {
	return &AirbticsClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("service", "AirbticsClient").Logger(),
	}
}

func (c *AirbticsClient) Name() string { return "airbtics" }

type airbticsRequest struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Bedrooms  int     `json:"bedrooms"`
	Bathrooms float64 `json:"bathrooms"`
}

type airbticsResponse struct {
	AnnualRevenue *float64 `json:"annual_revenue"`
	Occupancy     *float64 `json:"occupancy_rate"`
	DailyRate     *float64 `json:"average_daily_rate"`
	Comps         []struct {
		Title         string   `json:"title"`
		DailyRate     *float64 `json:"average_daily_rate"`
		Occupancy     *float64 `json:"occupancy_rate"`
		AnnualRevenue *float64 `json:"annual_revenue"`
		Bedrooms      int      `json:"bedrooms"`
		Bathrooms     float64  `json:"bathrooms"`
		Distance      *float64 `json:"distance_m"`
	} `json:"comps"`
}

func (c *AirbticsClient) Analyze(ctx context.Context, coords model.Coordinates, bedrooms int, bathrooms float64) (*model.MarketData, error) {
	body, err := json.Marshal(airbticsRequest{
		Lat:       coords.Latitude,
		Lng:       coords.Longitude,
		Bedrooms:  bedrooms,
		Bathrooms: bathrooms,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling airbtics request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/estimate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("creating airbtics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling airbtics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status_code", resp.StatusCode).Str("body", string(raw)).Msg("Airbtics returned error")
		return nil, fmt.Errorf("airbtics returned status %d", resp.StatusCode)
	}

	var parsed airbticsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding airbtics response: %w", err)
	}

	annual := deref(parsed.AnnualRevenue)
	data := &model.MarketData{
		Source:         c.Name(),
		AnnualRevenue:  annual,
		MonthlyRevenue: annual / 12,
		Occupancy:      deref(parsed.Occupancy),
		NightlyRate:    deref(parsed.DailyRate),
	}
	for _, comp := range parsed.Comps {
		data.Comparables = append(data.Comparables, model.ComparableListing{
			Title:          comp.Title,
			NightlyRate:    deref(comp.DailyRate),
			Occupancy:      deref(comp.Occupancy),
			AnnualRevenue:  deref(comp.AnnualRevenue),
			Bedrooms:       comp.Bedrooms,
			Bathrooms:      comp.Bathrooms,
			DistanceMeters: deref(comp.Distance),
		})
	}
	return data, nil
}
