package image

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/agrosight/ndvi-vault/internal/api/respond"
	"github.com/agrosight/ndvi-vault/internal/apperr"
	"github.com/agrosight/ndvi-vault/internal/middleware"
	"github.com/agrosight/ndvi-vault/internal/model"
	imagesvc "github.com/agrosight/ndvi-vault/internal/service/image"
)

// service defines the interface for image-related operations.
type service interface {
	Ingest(ctx context.Context, in imagesvc.IngestInput) (model.Image, error)
	Get(ctx context.Context, id uuid.UUID) (model.Image, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Image, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SignedURL(ctx context.Context, rawURL string, ttl time.Duration) (string, time.Duration, error)
}

// formOverhead covers multipart framing and the account form fields on top
// of the file payload itself.
const formOverhead = 1 << 20

// Handler provides HTTP handlers for image-related endpoints.
type Handler struct {
	service         service
	multipartMemory int64
	maxBytes        int64
}

// NewHandler creates a new Handler with the given service, multipart
// in-memory limit and upload size ceiling.
func NewHandler(s service, multipartMemory, maxBytes int64) *Handler {
	return &Handler{service: s, multipartMemory: multipartMemory, maxBytes: maxBytes}
}

// imageMeta is the metadata block of an API image payload.
type imageMeta struct {
	OriginalFilename string `json:"originalFilename"`
	MimeType         string `json:"mimeType"`
	Size             int64  `json:"size"`
	Dimensions       string `json:"dimensions,omitempty"`
	Width            int    `json:"width,omitempty"`
	Height           int    `json:"height,omitempty"`
	ColorModel       string `json:"colorModel,omitempty"`
	HasAlpha         bool   `json:"hasAlpha"`
	ProcessingStatus string `json:"processingStatus"`
}

// imageResponse is the API shape of one image.
type imageResponse struct {
	ID           uuid.UUID `json:"id"`
	URL          string    `json:"url"`
	ThumbnailURL *string   `json:"thumbnailUrl,omitempty"`
	OptimizedURL *string   `json:"optimizedUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Metadata     imageMeta `json:"metadata"`
}

func toResponse(img model.Image) imageResponse {
	return imageResponse{
		ID:           img.ID,
		URL:          img.URL,
		ThumbnailURL: img.ThumbnailURL,
		OptimizedURL: img.OptimizedURL,
		CreatedAt:    img.CreatedAt,
		Metadata: imageMeta{
			OriginalFilename: img.OriginalFilename,
			MimeType:         img.MimeType,
			Size:             img.Size,
			Dimensions:       img.Dimensions(),
			Width:            img.Width,
			Height:           img.Height,
			ColorModel:       img.ColorModel,
			HasAlpha:         img.HasAlpha,
			ProcessingStatus: string(img.ProcessingStatus),
		},
	}
}

// Upload handles the multipart upload of one image on behalf of a client
// account. Admin only; the target account comes from the "account_id" or
// "email" form field.
func (h *Handler) Upload(c *ginext.Context) {
	// Cap the body while it streams so an oversize upload is cut off
	// mid-read instead of buffered whole and rejected afterwards.
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+formOverhead)
	}

	if err := c.Request.ParseMultipartForm(h.multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, apperr.Newf(apperr.KindTooLarge, "file exceeds the %d byte limit", h.maxBytes))
			return
		}
		respond.Error(c, apperr.Validation("failed to parse multipart form"))
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		respond.Error(c, apperr.Validation("no file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to read uploaded file")
		respond.Error(c, apperr.Validation("failed to read uploaded file"))
		return
	}

	in := imagesvc.IngestInput{
		Data:         data,
		Filename:     header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		AccountEmail: c.PostForm("email"),
	}

	if idStr := c.PostForm("account_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			respond.Error(c, apperr.Validation("invalid account id"))
			return
		}
		in.AccountID = id
	}

	img, err := h.service.Ingest(c.Request.Context(), in)
	if err != nil {
		zlog.Logger.Err(err).Str("filename", header.Filename).Msg("failed to ingest image")
		respond.Error(c, err)
		return
	}

	zlog.Logger.Info().
		Str("image_id", img.ID.String()).
		Str("account_id", img.AccountID.String()).
		Int64("size", img.Size).
		Msg("image ingested")

	respond.Created(c, map[string]interface{}{"success": true, "image": toResponse(img)})
}

// List returns the caller's images. Admins may list any account's images
// via the account_id query parameter.
func (h *Handler) List(c *ginext.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		respond.Error(c, apperr.Auth("authentication required"))
		return
	}

	accountID := ident.AccountID
	if idStr := c.Query("account_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			respond.Error(c, apperr.Validation("invalid account id"))
			return
		}
		if !ident.IsAdmin() && !ident.Owns(id) {
			respond.Error(c, apperr.Authorization("cannot list another account's images"))
			return
		}
		accountID = id
	}

	images, err := h.service.ListByAccount(c.Request.Context(), accountID)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to list images")
		respond.Error(c, err)
		return
	}

	resp := make([]imageResponse, 0, len(images))
	for _, img := range images {
		resp = append(resp, toResponse(img))
	}

	respond.OK(c, map[string]interface{}{"success": true, "images": resp})
}

// Get returns one image's metadata. The caller must own the image or be an
// administrator.
func (h *Handler) Get(c *ginext.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		respond.Error(c, apperr.Auth("authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Error(c, apperr.Validation("invalid image id"))
		return
	}

	img, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, err)
		return
	}

	if !ident.IsAdmin() && !ident.Owns(img.AccountID) {
		respond.Error(c, apperr.Authorization("cannot access another account's image"))
		return
	}

	respond.OK(c, map[string]interface{}{"success": true, "image": toResponse(img)})
}

// Delete removes an image by ID: the metadata row first, then a best-effort
// removal of the stored objects. Owner or admin only.
func (h *Handler) Delete(c *ginext.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		respond.Error(c, apperr.Auth("authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Error(c, apperr.Validation("invalid image id"))
		return
	}

	img, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, err)
		return
	}

	if !ident.IsAdmin() && !ident.Owns(img.AccountID) {
		respond.Error(c, apperr.Authorization("cannot delete another account's image"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		zlog.Logger.Err(err).Str("image_id", id.String()).Msg("failed to delete image")
		respond.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SignedURLRequest is the body of the signed-url endpoint.
type SignedURLRequest struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"` // seconds, optional
}

// SignedURL returns a time-limited URL for a stored object.
func (h *Handler) SignedURL(c *ginext.Context) {
	var req SignedURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("invalid request body"))
		return
	}

	signed, ttl, err := h.service.SignedURL(c.Request.Context(), req.URL, time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		zlog.Logger.Err(err).Str("url", req.URL).Msg("failed to sign url")
		respond.Error(c, err)
		return
	}

	respond.OK(c, map[string]interface{}{
		"success":   true,
		"signedUrl": signed,
		"expiresIn": int(ttl.Seconds()),
	})
}
