package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
)

const bearerPrefix = "Bearer "

// Claim names the backend may use. The long forms are what ASP.NET identity
// emits for ClaimTypes.Role and ClaimTypes.Email.
var (
	roleClaimNames = []string{
		"role",
		"http://schemas.microsoft.com/ws/2008/06/identity/claims/role",
	}
	emailClaimNames = []string{
		"email",
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress",
	}
)

var ErrNotJWT = errors.New("token is not a JWT")

// TokenInfo is what the backend put in its token. It is informational: the
// signature is never checked here, the backend does that.
type TokenInfo struct {
	Subject   string    `json:"subject,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports false for tokens without an exp claim.
func (t *TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Inspect decodes the claims of a JWT session token without verifying it.
// A leading "Bearer " is ignored.
func Inspect(token string) (*TokenInfo, error) {
	raw := strings.TrimPrefix(token, bearerPrefix)
	if raw == "" {
		return nil, ErrNotJWT
	}

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	info := &TokenInfo{
		Email: firstStringClaim(claims, emailClaimNames),
		Role:  firstStringClaim(claims, roleClaimNames),
	}
	info.Subject, _ = claims["sub"].(string)

	if exp, ok := claims["exp"].(float64); ok {
		info.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return info, nil
}

func firstStringClaim(claims jwt.MapClaims, names []string) string {
	for _, name := range names {
		switch v := claims[name].(type) {
		case string:
			return v
		case []any:
			// multi-role tokens: the first role is the primary one
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
