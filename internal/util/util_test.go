package util

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddressKey(t *testing.T) {
	t.Run("EquivalentFormsShareOneKey", func(t *testing.T) {
		variants := []string{
			"62 Gate Ln, Nettie, WV, USA",
			"62 gate ln nettie wv usa",
			"  62 Gate Ln., Nettie,  WV, USA ",
			"62 GATE LN, NETTIE, WV, USA",
		}
		want := NormalizeAddressKey(variants[0])
		for _, v := range variants {
			assert.Equal(t, want, NormalizeAddressKey(v), "variant %q", v)
		}
	})

	t.Run("CollapsesSeparators", func(t *testing.T) {
		assert.Equal(t, "12 main st 4b", NormalizeAddressKey("12 Main St. #4B"))
		assert.Equal(t, "a b", NormalizeAddressKey("a,,,   b"))
	})

	t.Run("TrimsTrailingSeparator", func(t *testing.T) {
		assert.Equal(t, "austin tx", NormalizeAddressKey("Austin, TX,"))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, "", NormalizeAddressKey("   "))
	})
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}

func TestClientIP(t *testing.T) {
	t.Run("ForwardedForTakesFirstHop", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		r.RemoteAddr = "10.0.0.2:1234"
		assert.Equal(t, "203.0.113.9", ClientIP(r))
	})

	t.Run("RealIPFallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Real-IP", "203.0.113.9")
		r.RemoteAddr = "10.0.0.2:1234"
		assert.Equal(t, "203.0.113.9", ClientIP(r))
	})

	t.Run("RemoteAddrFallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.9:5678"
		assert.Equal(t, "203.0.113.9", ClientIP(r))
	})
}

func TestSessionJWTRoundTrip(t *testing.T) {
	token, err := SignSessionJWT("user@example.com", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateSessionJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "user@example.com", claims.Subject)

	_, err = ValidateSessionJWT(token, "wrong-secret")
	assert.Error(t, err)

	expired, err := SignSessionJWT("user@example.com", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateSessionJWT(expired, "secret")
	assert.Error(t, err)
}
