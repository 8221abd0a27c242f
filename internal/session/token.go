package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims reads the claims the client cares about without verifying the
// signature; the backend is the authority on validity.
func tokenClaims(accessToken string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}

// tokenExpiry returns the exp claim as Unix seconds, or 0 when absent or unparseable.
func tokenExpiry(accessToken string) int64 {
	claims, err := tokenClaims(accessToken)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Unix()
}
