package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer signs HS256 access tokens for authenticated users.
type Issuer struct {
	cfg JWTConfig
	ttl time.Duration
	now func() time.Time
}

func NewIssuer(cfg JWTConfig, ttl time.Duration) *Issuer {
	return &Issuer{cfg: cfg, ttl: ttl, now: time.Now}
}

// Issue returns a signed token and its claims.
func (i *Issuer) Issue(u *User) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.String(),
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Name:  u.Name,
		Email: u.Email,
		Roles: []string{u.Role},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.SigningKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates a token against the issuer's key and revocation list.
func (i *Issuer) Parse(token string) (*Claims, error) {
	return parseToken(i.cfg, token)
}
