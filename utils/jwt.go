package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type CustomClaims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens. Tokens are issued by the auth
// service; GenerateToken exists for tooling and tests.
type TokenManager struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{Secret: []byte(secret), Issuer: issuer, TTL: 24 * time.Hour}
}

func (tm *TokenManager) GenerateToken(userID, role string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tm.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (tm *TokenManager) ParseToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
