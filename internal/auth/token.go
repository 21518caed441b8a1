package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role claim required by the administrative endpoints.
const RoleAdmin = "admin"

var (
	ErrMissingSecret = errors.New("admin secret is not configured")
	ErrInvalidToken  = errors.New("invalid admin token")
	ErrNotAdmin      = errors.New("token does not carry the admin role")
)

// IssueAdminToken creates an HS256 token with "sub" = subject and the admin
// role. A ttl of 0 issues a token without expiry.
func IssueAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": RoleAdmin,
		"iat":  time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyAdminToken checks the signature, expiry and role of tokenString and
// returns its subject.
func VerifyAdminToken(secret, tokenString string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if role, _ := claims["role"].(string); role != RoleAdmin {
		return "", ErrNotAdmin
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}
