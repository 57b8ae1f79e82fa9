package auth

import (
	"context"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/agrosight/ndvi-vault/internal/api/respond"
	"github.com/agrosight/ndvi-vault/internal/apperr"
	"github.com/agrosight/ndvi-vault/internal/auth"
	"github.com/agrosight/ndvi-vault/internal/model"
)

// accounts defines the account operations the login endpoint needs.
type accounts interface {
	Authenticate(ctx context.Context, email, password string) (model.Account, error)
}

// Handler provides the login endpoint issuing session tokens.
type Handler struct {
	accounts  accounts
	jwtSecret string
	tokenTTL  time.Duration
}

// NewHandler creates a new Handler with the given account service and token
// parameters.
func NewHandler(a accounts, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{accounts: a, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// LoginRequest is the body of the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates the caller and returns a signed session token.
func (h *Handler) Login(c *ginext.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("invalid request body"))
		return
	}

	if req.Email == "" || req.Password == "" {
		respond.Error(c, apperr.Validation("email and password are required"))
		return
	}

	acc, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}

	token, err := auth.IssueToken(h.jwtSecret, acc, h.tokenTTL)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to issue token")
		respond.Error(c, err)
		return
	}

	respond.OK(c, map[string]interface{}{
		"success":   true,
		"token":     token,
		"expiresIn": int(h.tokenTTL.Seconds()),
		"role":      acc.Role,
	})
}
