package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// defaultSessionTTL is used when GenerateSessionToken is given no TTL.
const defaultSessionTTL = time.Hour

// AppMetadata is the server-controlled part of a Supabase session token.
type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// SessionClaims are the claims of a Supabase-style user session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role        string      `json:"role,omitempty"`
	Email       string      `json:"email,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata,omitempty"`
}

// EffectiveRole returns the application role, falling back to the database role.
func (c *SessionClaims) EffectiveRole() string {
	if c.AppMetadata.Role != "" {
		return c.AppMetadata.Role
	}
	return c.Role
}

// GenerateSessionToken signs a session token for subject with HS256.
// It is used by local deployments and tests; production tokens are issued
// by the identity provider.
func GenerateSessionToken(subject, role, secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role:        "authenticated",
		AppMetadata: AppMetadata{Role: role},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken validates an HS256 session token and returns its claims.
// It checks the signature, expiry and that a subject is present.
func ParseSessionToken(tokenString, secret string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// peekSessionClaims decodes a token without verifying it. The REST factory
// forwards the token to PostgREST, which does the verification; the claims
// are only read for logging and the principal.
func peekSessionClaims(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	return claims, nil
}

// bearerToken strips an optional "Bearer " scheme from an Authorization header.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	const scheme = "bearer"
	if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		rest := header[len(scheme):]
		if rest == "" || rest[0] == ' ' {
			return strings.TrimSpace(rest)
		}
	}
	return header
}
