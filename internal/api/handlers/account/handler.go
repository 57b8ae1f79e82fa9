package account

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/agrosight/ndvi-vault/internal/api/respond"
	"github.com/agrosight/ndvi-vault/internal/apperr"
	"github.com/agrosight/ndvi-vault/internal/model"
)

// service defines the account operations exposed over HTTP.
type service interface {
	Create(ctx context.Context, email, password string, role model.Role) (model.Account, error)
	List(ctx context.Context) ([]model.Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler provides admin-only HTTP handlers for account management.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// CreateRequest is the body of the account creation endpoint.
type CreateRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// Create registers a new account.
func (h *Handler) Create(c *ginext.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("invalid request body"))
		return
	}

	if req.Role == "" {
		req.Role = model.RoleClient
	}

	acc, err := h.service.Create(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		respond.Error(c, err)
		return
	}

	zlog.Logger.Info().
		Str("account_id", acc.ID.String()).
		Str("role", string(acc.Role)).
		Msg("account created")

	respond.Created(c, map[string]interface{}{"success": true, "account": acc})
}

// List returns all accounts.
func (h *Handler) List(c *ginext.Context) {
	accounts, err := h.service.List(c.Request.Context())
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to list accounts")
		respond.Error(c, err)
		return
	}

	respond.OK(c, map[string]interface{}{"success": true, "accounts": accounts})
}

// Delete removes an account, its image rows and, best-effort, their stored
// objects.
func (h *Handler) Delete(c *ginext.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Error(c, apperr.Validation("invalid account id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		zlog.Logger.Err(err).Str("account_id", id.String()).Msg("failed to delete account")
		respond.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
