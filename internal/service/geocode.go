package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// ErrNotGeocodable is returned when every query variant fails against every provider.
var ErrNotGeocodable = errors.New("address_not_geocodable")

// ErrGeocodeMiss is the uniform no-result outcome a provider reports when it
// has no match for a query. Transport errors are returned as themselves.
var ErrGeocodeMiss = errors.New("geocode_miss")

// GeocodeProvider resolves one query string into coordinates or ErrGeocodeMiss.
type GeocodeProvider interface {
	Name() string
	Geocode(ctx context.Context, query string) (model.Coordinates, error)
}

// geocodeTimeout bounds each individual provider call. A timeout advances
// the fallback chain, it never aborts the whole resolution.
const geocodeTimeout = 5 * time.Second

// GeocodeResolver turns an arbitrary postal address into coordinates by
// walking progressively coarser query variants across an ordered provider
// chain, first valid result wins.
type GeocodeResolver struct {
	providers []GeocodeProvider
	logger    zerolog.Logger
}

// NewGeocodeResolver creates a resolver over the given provider order.
func NewGeocodeResolver(providers []GeocodeProvider, logger zerolog.Logger) *GeocodeResolver {
	return &GeocodeResolver{
		providers: providers,
		logger:    logger.With().Str("service", "GeocodeResolver").Logger(),
	}
}

// Resolve tries every query variant against every provider in order and
// returns the first valid coordinates. Provider errors and timeouts count
// as misses; only full exhaustion yields ErrNotGeocodable.
func (r *GeocodeResolver) Resolve(ctx context.Context, address string) (model.Coordinates, error) {
	for _, query := range simplifyQueries(address) {
		for _, provider := range r.providers {
			coords, err := r.tryProvider(ctx, provider, query)
			if err != nil {
				if !errors.Is(err, ErrGeocodeMiss) {
					r.logger.Debug().Err(err).Str("provider", provider.Name()).Str("query", query).Msg("Geocode attempt failed")
				}
				continue
			}
			if !validCoordinates(coords) {
				continue
			}
			return coords, nil
		}
	}
	return model.Coordinates{}, ErrNotGeocodable
}

func (r *GeocodeResolver) tryProvider(ctx context.Context, provider GeocodeProvider, query string) (model.Coordinates, error) {
	callCtx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()
	return provider.Geocode(callCtx, query)
}

// simplifyQueries builds the fallback query list for an address by dropping
// the leading comma-separated component, then the next one:
// "62 Gate Ln, Nettie, WV, USA" -> ["62 Gate Ln, Nettie, WV, USA",
// "Nettie, WV, USA", "WV, USA"].
func simplifyQueries(address string) []string {
	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	queries := []string{strings.Join(parts, ", ")}
	// Drop street, then city; keep at least a two-component query so we
	// never geocode a bare country.
	for drop := 1; drop <= 2 && len(parts)-drop >= 2; drop++ {
		queries = append(queries, strings.Join(parts[drop:], ", "))
	}
	return queries
}

func validCoordinates(c model.Coordinates) bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	if c.Latitude == 0 && c.Longitude == 0 {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}
