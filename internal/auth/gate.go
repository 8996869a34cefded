// Package auth implements the session gate: a bearer token presented at
// connection time is verified once and resolved to an identity that every
// later message on the connection is attributed to.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aurorahq/aurora/internal/logger"
)

var (
	ErrNoToken      = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Identity is the verified principal attached to a connection.
type Identity struct {
	UserID uuid.UUID
}

// Gate verifies HS256 JWTs whose subject is the user id. Verified tokens are
// cached so repeated handshakes with the same token skip signature checks.
type Gate struct {
	secret []byte
	cache  *ristretto.Cache
	log    *logger.Logger
}

const maxCacheTTL = 5 * time.Minute

func NewGate(secret string, log *logger.Logger) (*Gate, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: empty JWT secret")
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("auth: token cache: %w", err)
	}
	return &Gate{
		secret: []byte(secret),
		cache:  cache,
		log:    log.With("component", "gate"),
	}, nil
}

// Authenticate resolves a raw bearer token to an identity, or fails the
// handshake. No partial session exists on failure.
func (g *Gate) Authenticate(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoToken
	}

	if cached, ok := g.cache.Get(token); ok {
		if id, ok := cached.(Identity); ok {
			return id, nil
		}
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		g.log.Debug("token rejected", "error", err)
		return Identity{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		g.log.Debug("token subject is not a user id", "subject", claims.Subject)
		return Identity{}, ErrInvalidToken
	}

	id := Identity{UserID: userID}
	g.cache.SetWithTTL(token, id, 1, cacheTTL(claims))
	return id, nil
}

// cacheTTL keeps cache entries no longer than the token itself is valid.
func cacheTTL(claims *jwt.RegisteredClaims) time.Duration {
	ttl := maxCacheTTL
	if claims.ExpiresAt != nil {
		if until := time.Until(claims.ExpiresAt.Time); until < ttl {
			ttl = until
		}
	}
	return ttl
}
