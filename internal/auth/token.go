package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/2beens/contenthub/internal/admin"
	"github.com/2beens/contenthub/pkg"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultSessionTTL = time.Hour

	minSecretLen = 32
	tokenIssuer  = "contenthub"
)

type Claims struct {
	AdminID string `json:"admin_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates stateless HS256 session tokens.
type TokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	NowFunc func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes long, got %d", minSecretLen, len(secret))
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenIssuer{
		secret:  []byte(secret),
		ttl:     ttl,
		NowFunc: time.Now,
	}, nil
}

func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

func (ti *TokenIssuer) Issue(a *admin.Admin, now time.Time) (string, time.Time, error) {
	jti, err := pkg.GenerateRandomString(16)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token id: %w", err)
	}

	expiresAt := now.Add(ti.ttl)
	claims := Claims{
		AdminID: a.ID,
		Email:   a.Email,
		Role:    a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    tokenIssuer,
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	// the token carries second precision only
	return signed, expiresAt.Truncate(time.Second), nil
}

func (ti *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) {
			return ti.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.NowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.AdminID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
