package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry derives the absolute access-token expiry from a grant. When
// the backend omits expiresIn, the JWT exp claim is used as a fallback
// hint. The parse is unverified: expiry here only schedules refreshes,
// the backend remains the authority on token validity.
func tokenExpiry(grant TokenGrant, now time.Time) time.Time {
	if grant.ExpiresIn > 0 {
		return now.Add(time.Duration(grant.ExpiresIn) * time.Second)
	}
	if exp, ok := jwtExpiry(grant.AccessToken); ok {
		return exp
	}
	// Unknown lifetime: treat as already stale so the next use refreshes.
	return now
}

func jwtExpiry(raw string) (time.Time, bool) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
