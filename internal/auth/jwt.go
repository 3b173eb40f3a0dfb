// Package auth issues and checks the bearer tokens that guard sync control.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"glossync/pkg/utils"
)

// Roles carried in tokens.
const (
	RoleAdmin  = "admin"
	RoleReader = "reader"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
}

// NewTokenService builds a TokenService from environment-derived settings.
func NewTokenService(cfg utils.AuthConfig) TokenService {
	return TokenService{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Duration: cfg.JWTDuration,
	}
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Sign issues a token for subject with the given role.
func (ts TokenService) Sign(subject, role string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ts.Duration)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

func (ts TokenService) Parse(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return ts.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ts.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
