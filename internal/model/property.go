package model

import "time"

// Coordinates is an ephemeral geocoding result, produced per request and
// consumed immediately by the market data call. Never persisted.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RevenueBands holds optional percentile revenue estimates. Providers that
// do not report percentiles leave the struct zeroed.
type RevenueBands struct {
	P25 float64 `json:"p25,omitempty"`
	P50 float64 `json:"p50,omitempty"`
	P75 float64 `json:"p75,omitempty"`
	P90 float64 `json:"p90,omitempty"`
}

// ComparableListing is a nearby short-term rental used as a comp.
type ComparableListing struct {
	Title          string  `json:"title,omitempty"`
	NightlyRate    float64 `json:"nightly_rate"`
	Occupancy      float64 `json:"occupancy"`
	AnnualRevenue  float64 `json:"annual_revenue"`
	Bedrooms       int     `json:"bedrooms"`
	Bathrooms      float64 `json:"bathrooms"`
	DistanceMeters float64 `json:"distance_meters,omitempty"`
}

// MarketData is the normalized result shape shared by all market data
// providers. Missing numeric fields are zero-filled rather than failing
// the request; partial data is more useful to the caller than none.
type MarketData struct {
	Source         string              `json:"source"`
	AnnualRevenue  float64             `json:"annual_revenue"`
	MonthlyRevenue float64             `json:"monthly_revenue"`
	Occupancy      float64             `json:"occupancy"`
	NightlyRate    float64             `json:"nightly_rate"`
	RevenueBands   RevenueBands        `json:"revenue_bands,omitempty"`
	Comparables    []ComparableListing `json:"comparables,omitempty"`
}

// CachedProperty is a market data result stored under a canonicalized
// address key. Readers must treat rows past ExpiresAt as absent.
type CachedProperty struct {
	AddressKey string      `db:"address_key" json:"address_key"`
	Payload    *MarketData `db:"payload" json:"payload"`
	CachedAt   time.Time   `db:"cached_at" json:"cached_at"`
	ExpiresAt  time.Time   `db:"expires_at" json:"expires_at"`
}
