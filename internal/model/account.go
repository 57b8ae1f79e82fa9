package model

import (
	"time"

	"github.com/google/uuid"
)

// Role defines the access level of an account.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleClient Role = "CLIENT"
)

// Account represents a tenant of the portal. Admin accounts upload imagery
// on behalf of client accounts; client accounts only see their own images.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
