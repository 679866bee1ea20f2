package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
)

// Token formats accepted by NewTokens.
const (
	FormatJWT    = "jwt"
	FormatPASETO = "paseto"
)

// TokenIssuer mints a signed, time-bound token for a user.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// TokenValidator resolves a token back to the user it was issued for.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// Tokens is implemented by TokenService (JWT) and PasetoService.
type Tokens interface {
	TokenIssuer
	TokenValidator
}

// TokenSettings selects and keys a token format.
type TokenSettings struct {
	Format    string
	JWTSecret string
	PasetoKey string // hex encoded, 32 bytes
	TTL       time.Duration
}

// NewTokens builds the configured token implementation. Any error here is a
// startup misconfiguration.
func NewTokens(s TokenSettings) (Tokens, error) {
	ttl := s.TTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}

	switch s.Format {
	case "", FormatJWT:
		return NewTokenServiceWithTTL(s.JWTSecret, ttl)
	case FormatPASETO:
		key, err := hex.DecodeString(s.PasetoKey)
		if err != nil {
			return nil, fmt.Errorf("auth: decoding PASETO key: %w", err)
		}
		return NewPasetoService(key, ttl)
	default:
		return nil, fmt.Errorf("auth: unknown token format %q", s.Format)
	}
}
