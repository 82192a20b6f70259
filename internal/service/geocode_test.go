package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeGeocoder maps query strings to coordinates and records the queries it saw.
type fakeGeocoder struct {
	name    string
	results map[string]model.Coordinates
	err     error
	queries []string
}

func (f *fakeGeocoder) Name() string { return f.name }

func (f *fakeGeocoder) Geocode(_ context.Context, query string) (model.Coordinates, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return model.Coordinates{}, f.err
	}
	coords, ok := f.results[query]
	if !ok {
		return model.Coordinates{}, ErrGeocodeMiss
	}
	return coords, nil
}

func TestSimplifyQueries(t *testing.T) {
	t.Run("DropsStreetThenCity", func(t *testing.T) {
		queries := simplifyQueries("62 Gate Ln, Nettie, WV, USA")
		assert.Equal(t, []string{
			"62 Gate Ln, Nettie, WV, USA",
			"Nettie, WV, USA",
			"WV, USA",
		}, queries)
	})

	t.Run("KeepsAtLeastTwoComponents", func(t *testing.T) {
		queries := simplifyQueries("Nettie, WV")
		assert.Equal(t, []string{"Nettie, WV"}, queries)
	})

	t.Run("SingleComponent", func(t *testing.T) {
		queries := simplifyQueries("Nettie")
		assert.Equal(t, []string{"Nettie"}, queries)
	})
}

func TestGeocodeResolverResolve(t *testing.T) {
	ctx := context.Background()
	address := "62 Gate Ln, Nettie, WV, USA"

	t.Run("FirstProviderFullAddressWins", func(t *testing.T) {
		primary := &fakeGeocoder{name: "a", results: map[string]model.Coordinates{
			address: {Latitude: 38.1, Longitude: -80.9},
		}}
		secondary := &fakeGeocoder{name: "b"}
		resolver := NewGeocodeResolver([]GeocodeProvider{primary, secondary}, testLogger())

		coords, err := resolver.Resolve(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, 38.1, coords.Latitude)
		assert.Empty(t, secondary.queries, "secondary provider should not be consulted")
	})

	t.Run("FallsBackToCoarserQueryAcrossProviders", func(t *testing.T) {
		primary := &fakeGeocoder{name: "a"}
		secondary := &fakeGeocoder{name: "b", results: map[string]model.Coordinates{
			"Nettie, WV, USA": {Latitude: 38.2, Longitude: -80.8},
		}}
		resolver := NewGeocodeResolver([]GeocodeProvider{primary, secondary}, testLogger())

		coords, err := resolver.Resolve(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, 38.2, coords.Latitude)
		// Both providers see the full address before any simplified query.
		assert.Equal(t, []string{address, "Nettie, WV, USA"}, secondary.queries)
	})

	t.Run("TransportErrorAdvancesChain", func(t *testing.T) {
		broken := &fakeGeocoder{name: "a", err: errors.New("connection refused")}
		working := &fakeGeocoder{name: "b", results: map[string]model.Coordinates{
			address: {Latitude: 38.1, Longitude: -80.9},
		}}
		resolver := NewGeocodeResolver([]GeocodeProvider{broken, working}, testLogger())

		coords, err := resolver.Resolve(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, 38.1, coords.Latitude)
	})

	t.Run("NullIslandIsRejected", func(t *testing.T) {
		junk := &fakeGeocoder{name: "a", results: map[string]model.Coordinates{
			address: {Latitude: 0, Longitude: 0},
		}}
		good := &fakeGeocoder{name: "b", results: map[string]model.Coordinates{
			address: {Latitude: 38.1, Longitude: -80.9},
		}}
		resolver := NewGeocodeResolver([]GeocodeProvider{junk, good}, testLogger())

		coords, err := resolver.Resolve(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, 38.1, coords.Latitude)
	})

	t.Run("ExhaustionReturnsNotGeocodable", func(t *testing.T) {
		resolver := NewGeocodeResolver([]GeocodeProvider{
			&fakeGeocoder{name: "a"},
			&fakeGeocoder{name: "b"},
		}, testLogger())

		_, err := resolver.Resolve(ctx, "asdfgh, qwerty, zxcvb")
		assert.ErrorIs(t, err, ErrNotGeocodable)
	})
}

func TestNominatimClientGeocode(t *testing.T) {
	t.Run("ParsesStringCoordinates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			w.Write([]byte(`[{"lat":"38.1","lon":"-80.9"}]`))
		}))
		defer srv.Close()

		client := NewNominatimClient(srv.URL, testLogger())
		coords, err := client.Geocode(context.Background(), "Nettie, WV, USA")
		require.NoError(t, err)
		assert.Equal(t, 38.1, coords.Latitude)
		assert.Equal(t, -80.9, coords.Longitude)
	})

	t.Run("EmptyResultIsMiss", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		client := NewNominatimClient(srv.URL, testLogger())
		_, err := client.Geocode(context.Background(), "nowhere")
		assert.ErrorIs(t, err, ErrGeocodeMiss)
	})

	t.Run("ServerErrorIsNotMiss", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewNominatimClient(srv.URL, testLogger())
		_, err := client.Geocode(context.Background(), "Nettie, WV, USA")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrGeocodeMiss)
	})
}

func TestGeoapifyClientGeocode(t *testing.T) {
	t.Run("ParsesFeatureProperties", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/geocode/search", r.URL.Path)
			assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
			w.Write([]byte(`{"features":[{"properties":{"lat":38.1,"lon":-80.9}}]}`))
		}))
		defer srv.Close()

		client := NewGeoapifyClient(srv.URL, "test-key", testLogger())
		coords, err := client.Geocode(context.Background(), "Nettie, WV, USA")
		require.NoError(t, err)
		assert.Equal(t, 38.1, coords.Latitude)
	})

	t.Run("NoFeaturesIsMiss", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"features":[]}`))
		}))
		defer srv.Close()

		client := NewGeoapifyClient(srv.URL, "test-key", testLogger())
		_, err := client.Geocode(context.Background(), "nowhere")
		assert.ErrorIs(t, err, ErrGeocodeMiss)
	})
}
