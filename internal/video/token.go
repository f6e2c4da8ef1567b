package video

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Participant roles inside a room.
const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

// TokenIssuer mints short-lived, role-scoped room access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer with the shared signing secret.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if secret == "" {
		panic("video: token secret required")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// IssueToken signs a token granting userID access to roomID with the given
// role. Tokens are fresh per call and expire after the configured TTL.
func (i *TokenIssuer) IssueToken(roomID, userID, role string) (string, error) {
	if role != RoleHost && role != RoleGuest {
		return "", fmt.Errorf("video: unknown role %q", role)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"room": roomID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("video: sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns its claims. Used by tests and
// by the room gateway when it shares the secret.
func (i *TokenIssuer) ParseToken(signed string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(signed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("video: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("video: parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("video: invalid token")
	}
	return claims, nil
}
