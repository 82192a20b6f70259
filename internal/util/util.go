package util

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the session token payload. Subject carries the account email.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SignSessionJWT mints an HS256 session token for an account email.
func SignSessionJWT(email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// ValidateSessionJWT parses and verifies a session token.
func ValidateSessionJWT(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing session token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

// NormalizeEmail canonicalizes an account identifier.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeAddressKey canonicalizes a postal address into a cache key:
// case-folded, punctuation stripped, whitespace collapsed. Addresses that
// differ only in casing, commas, or spacing map to the same key.
func NormalizeAddressKey(address string) string {
	lowered := strings.ToLower(strings.TrimSpace(address))
	var b strings.Builder
	b.Grow(len(lowered))
	lastSpace := false
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			// Commas, periods, hash signs and runs of whitespace all
			// collapse into a single separator.
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// ClientIP extracts the canonical network identifier for a request. Every
// throttling and abuse-guard call site must use this helper so the same
// caller is scoped consistently.
func ClientIP(r *http.Request) string {
	// X-Forwarded-For holds the original client first when set by a
	// trusted proxy.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
