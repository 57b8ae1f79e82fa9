// Package auth issues and verifies the session tokens behind the API. Each
// verified token yields one Identity, the single typed capability check the
// handlers consult for role and ownership decisions.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agrosight/ndvi-vault/internal/apperr"
	"github.com/agrosight/ndvi-vault/internal/model"
)

// Identity is the authenticated caller: who they are and what they may do.
type Identity struct {
	AccountID uuid.UUID
	Role      model.Role
}

// IsAdmin reports whether the identity has administrative access.
func (i Identity) IsAdmin() bool { return i.Role == model.RoleAdmin }

// Owns reports whether the identity owns the given account's resources.
func (i Identity) Owns(accountID uuid.UUID) bool { return i.AccountID == accountID }

// Claims is the JWT payload carried by session tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for the account.
func IssueToken(secret string, acc model.Account, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(acc.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ParseToken verifies the token and returns the caller's identity.
func ParseToken(secret, tokenStr string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, apperr.Auth("invalid or expired token")
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, apperr.Auth("invalid token subject")
	}

	role := model.Role(claims.Role)
	if role != model.RoleAdmin && role != model.RoleClient {
		return Identity{}, apperr.Auth("invalid token role")
	}

	return Identity{AccountID: accountID, Role: role}, nil
}
