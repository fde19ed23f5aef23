package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/pkg/apperrors"
)

// IdentityMiddleware resolves the caller from a bearer token and stores it in
// the request context. Without a token the caller is anonymous, unless
// required is set, in which case the request is rejected.
func IdentityMiddleware(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check and metrics endpoints
			if r.URL.Path == HealthPath || r.URL.Path == MetricsPath {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get(AuthorizationHeader)
			if authHeader == "" {
				if required {
					log.Warn().Str("path", r.URL.Path).Msg("Authorization header missing")
					unauthorized(w, r, ErrAuthHeaderRequired)
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ActorKey, AnonymousActor)))
				return
			}

			if !strings.HasPrefix(authHeader, BearerPrefix) {
				log.Warn().Str("path", r.URL.Path).Msg("Invalid authorization header format")
				unauthorized(w, r, ErrInvalidAuthHeader)
				return
			}

			claims, err := parseIdentity(strings.TrimPrefix(authHeader, BearerPrefix), time.Now())
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg(LogJWTValidationFailed)
				unauthorized(w, r, ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), ActorKey, claims.Subject)
			ctx = context.WithValue(ctx, UsernameKey, claims.PreferredUsername)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseIdentity reads the token claims and checks their timing
func parseIdentity(tokenString string, now time.Time) (*IdentityClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &IdentityClaims{})
	if err != nil {
		return nil, fmt.Errorf(ErrTokenParseFailed, err)
	}
	claims, ok := token.Claims.(*IdentityClaims)
	if !ok {
		return nil, errors.New(ErrInvalidTokenClaims)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(now) {
		return nil, errors.New(ErrTokenExpired)
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil && iat.After(now.Add(time.Minute)) {
		return nil, errors.New(ErrTokenIssuedInFuture)
	}
	if claims.Subject == "" {
		return nil, errors.New(ErrMissingSubject)
	}
	return claims, nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, r, http.StatusUnauthorized, &apperrors.AppError{Reason: "unauthorized", Message: message})
}

// ActorFromContext returns the caller recorded by IdentityMiddleware
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(ActorKey).(string); ok && actor != "" {
		return actor
	}
	return AnonymousActor
}
