package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/suPer8Hu/llm-workflow/internal/common"
)

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// SignJWT issues an HS256 access token. Every token gets a ULID jti so that
// it can be revoked on logout.
func SignJWT(userID, secret string, ttl time.Duration) (string, *Claims, error) {
	jti, err := common.NewULID()
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func ParseJWT(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Remaining reports how long the token stays valid, for revocation TTLs.
func (c *Claims) Remaining() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return time.Until(c.ExpiresAt.Time)
}

func (c *Claims) String() string {
	return fmt.Sprintf("uid=%s jti=%s", c.UserID, c.ID)
}
