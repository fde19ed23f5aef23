package api

import (
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	ActorKey    contextKey = "actor"
	UsernameKey contextKey = "username"
)

// HTTP header constants
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
)

// HTTP path constants
const (
	HealthPath  = "/health"
	MetricsPath = "/metrics"
)

// AnonymousActor is recorded on writes when no identity was presented
const AnonymousActor = "anonymous"

// Error message constants
const (
	ErrAuthHeaderRequired  = "Authorization header required"
	ErrInvalidAuthHeader   = "Invalid authorization header format"
	ErrInvalidToken        = "Invalid token"
	ErrInvalidTokenClaims  = "invalid token claims"
	ErrTokenExpired        = "token expired"
	ErrTokenIssuedInFuture = "token issued in the future"
	ErrTokenParseFailed    = "failed to parse token: %w"
	ErrMissingSubject      = "token carries no subject"
)

// Log message constants
const (
	LogJWTValidationFailed = "JWT token validation failed"
)

// IdentityClaims are the claims read from the identity provider's token.
// The signature was verified upstream; only the caller's identity is used here.
type IdentityClaims struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}
