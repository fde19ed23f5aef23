// Package cursor turns a store resume key into an opaque, signed pagination
// token. Tokens are bound to the listing that issued them.
package cursor

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/kv"
)

// DefaultTTL bounds how long a continuation token stays usable
const DefaultTTL = 24 * time.Hour

type claims struct {
	PK    string `json:"pk"`
	SK    string `json:"sk"`
	Scope string `json:"scp"`
	jwt.RegisteredClaims
}

// Codec signs and verifies cursors with HMAC-SHA256
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New creates a codec. An empty secret generates a random per-process one,
// which invalidates outstanding cursors on restart.
func New(secret string, ttl time.Duration) (*Codec, error) {
	key := []byte(secret)
	if len(key) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate cursor secret: %w", err)
		}
		key = []byte(hex.EncodeToString(buf))
		log.Warn().Msg("CURSOR_SECRET not set, cursors will not survive a restart")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: key, ttl: ttl, now: time.Now}, nil
}

// Encode returns the token for key, or "" when there is no next page
func (c *Codec) Encode(key *kv.Key, scope string) string {
	if key == nil {
		return ""
	}
	now := c.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		PK:    key.PK,
		SK:    key.SK,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign cursor")
		return ""
	}
	return signed
}

// Decode returns the resume key carried by token. Anything invalid, expired,
// tampered with or issued for another scope yields nil so iteration restarts
// from the beginning.
func (c *Codec) Decode(token, scope string) *kv.Key {
	if token == "" {
		return nil
	}
	var cl claims
	_, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring invalid cursor")
		return nil
	}
	if cl.Scope != scope || cl.PK == "" {
		log.Debug().Str("scope", scope).Msg("Ignoring cursor issued for another listing")
		return nil
	}
	return &kv.Key{PK: cl.PK, SK: cl.SK}
}
