package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The API owns verification; the expiry only bounds how long profiles stay cached.
func TokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, parseErr := jwt.NewParser().ParseUnverified(token, claims); parseErr != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// cacheLifetime caps defaultTTL at the token's remaining lifetime. Zero means
// the token already expired and nothing should be cached for it.
func cacheLifetime(token string, defaultTTL time.Duration, now time.Time) time.Duration {
	expiresAt, known := TokenExpiry(token)
	if !known {
		return defaultTTL
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if remaining < defaultTTL {
		return remaining
	}
	return defaultTTL
}
