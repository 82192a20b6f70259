package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// MashvisorClient is the primary market data adapter.
type MashvisorClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewMashvisorClient creates a new MashvisorClient.
func NewMashvisorClient(baseURL, apiKey string, logger zerolog.Logger) *MashvisorClient {
	return &MashvisorClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("service", "MashvisorClient").Logger(),
	}
}

func (c *MashvisorClient) Name() string { return "mashvisor" }

type mashvisorResponse struct {
	Status  string `json:"status"`
	Content struct {
		RentalIncome  *float64 `json:"rental_income"`
		AirbnbRental  *float64 `json:"airbnb_rental"`
		OccupancyRate *float64 `json:"occupancy"`
		NightRate     *float64 `json:"night_price"`
		SampleCount   int      `json:"sample_count"`
		RentalIncomes struct {
			P25 *float64 `json:"percentile_25"`
			P50 *float64 `json:"median"`
			P75 *float64 `json:"percentile_75"`
			P90 *float64 `json:"percentile_90"`
		} `json:"rental_income_percentiles"`
	} `json:"content"`
}

func (c *MashvisorClient) Analyze(ctx context.Context, coords model.Coordinates, bedrooms int, bathrooms float64) (*model.MarketData, error) {
	endpoint := fmt.Sprintf("%s/airbnb-property/rental-rates?lat=%f&lng=%f&beds=%d&baths=%g",
		c.baseURL, coords.Latitude, coords.Longitude, bedrooms, bathrooms)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating mashvisor request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling mashvisor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status_code", resp.StatusCode).Str("body", string(body)).Msg("Mashvisor returned error")
		return nil, fmt.Errorf("mashvisor returned status %d", resp.StatusCode)
	}

	var parsed mashvisorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding mashvisor response: %w", err)
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("mashvisor reported status %q", parsed.Status)
	}

	// Missing numeric fields are partial success: zero-fill rather than
	// failing the whole request.
	content := parsed.Content
	monthly := deref(content.AirbnbRental)
	if monthly == 0 {
		monthly = deref(content.RentalIncome)
	}
	data := &model.MarketData{
		Source:         c.Name(),
		MonthlyRevenue: monthly,
		AnnualRevenue:  monthly * 12,
		Occupancy:      deref(content.OccupancyRate),
		NightlyRate:    deref(content.NightRate),
		RevenueBands: model.RevenueBands{
			P25: deref(content.RentalIncomes.P25),
			P50: deref(content.RentalIncomes.P50),
			P75: deref(content.RentalIncomes.P75),
			P90: deref(content.RentalIncomes.P90),
		},
	}
	return data, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
