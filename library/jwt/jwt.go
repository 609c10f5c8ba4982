// Package jwt issues and verifies HS256 bearer tokens for the texpad API.
package jwt

import (
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	jwtLib "github.com/golang-jwt/jwt/v5"
)

const defaultTTL = 30 * 24 * time.Hour

// Signer signs and parses tokens with one shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a signer. ttl <= 0 falls back to 30 days.
func NewSigner(secret []byte, ttl time.Duration) (*Signer, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Signer{secret: secret, ttl: ttl, now: gutils.Clock.GetUTCNow}, nil
}

// Sign issues a token for username.
func (s *Signer) Sign(username string) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}

	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwtLib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtLib.NewNumericDate(now),
			ExpiresAt: jwtLib.NewNumericDate(now.Add(s.ttl)),
		},
		Username: username,
	}

	token, err := jwtLib.NewWithClaims(jwtLib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return token, nil
}

// Parse verifies token and returns its claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtLib.ParseWithClaims(token, claims,
		func(*jwtLib.Token) (any, error) { return s.secret, nil },
		jwtLib.WithValidMethods([]string{jwtLib.SigningMethodHS256.Alg()}),
		jwtLib.WithTimeFunc(s.now),
		jwtLib.WithIssuedAt(),
		jwtLib.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if claims.Username == "" {
		return nil, errors.New("token has no username")
	}
	return claims, nil
}
