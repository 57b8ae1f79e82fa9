package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/agrosight/ndvi-vault/internal/apperr"
	"github.com/agrosight/ndvi-vault/internal/events"
	"github.com/agrosight/ndvi-vault/internal/model"
	"github.com/agrosight/ndvi-vault/internal/processor"
	accountrepo "github.com/agrosight/ndvi-vault/internal/repository/account"
	imagerepo "github.com/agrosight/ndvi-vault/internal/repository/image"
)

// Object key prefixes, one per stored variant.
const (
	prefixOriginal  = "original"
	prefixThumbnail = "thumbnail"
	prefixOptimized = "optimized"
)

// allowedTypes maps accepted declared MIME types and filename extensions to
// normalized extensions for generated object keys.
var allowedTypes = map[string]string{
	"image/tiff": "tiff",
	"image/tif":  "tiff",
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"tiff":       "tiff",
	"tif":        "tiff",
	"png":        "png",
	"jpg":        "jpg",
	"jpeg":       "jpg",
}

// objectStore defines the interface for the object storage backend.
type objectStore interface {
	Put(ctx context.Context, key, contentType string, src io.Reader, size int64) (string, error)
	SignedURL(ctx context.Context, rawURL string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, rawURL string) error
}

// transformer derives thumbnail/optimized variants and metadata.
type transformer interface {
	Process(data []byte) processor.Result
}

// imageRepo persists image metadata rows.
type imageRepo interface {
	SaveImage(ctx context.Context, img model.Image) (model.Image, error)
	GetImage(ctx context.Context, id uuid.UUID) (model.Image, error)
	ListImagesByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Image, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// accountRepo resolves upload targets.
type accountRepo interface {
	GetAccountByID(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (model.Account, error)
}

// publisher emits ingestion lifecycle events.
type publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Service runs the ingestion pipeline: validate the upload, derive variants
// best-effort, persist bytes to the object store, and record metadata.
type Service struct {
	store      objectStore
	transform  transformer
	images     imageRepo
	accounts   accountRepo
	events     publisher
	maxBytes   int64
	defaultTTL time.Duration
}

// NewService creates a Service with its dependencies and limits.
func NewService(store objectStore, t transformer, images imageRepo, accounts accountRepo, ev publisher, maxBytes int64, defaultTTL time.Duration) *Service {
	return &Service{
		store:      store,
		transform:  t,
		images:     images,
		accounts:   accounts,
		events:     ev,
		maxBytes:   maxBytes,
		defaultTTL: defaultTTL,
	}
}

// IngestInput carries one upload through the pipeline.
type IngestInput struct {
	Data         []byte
	Filename     string
	DeclaredType string
	AccountID    uuid.UUID
	AccountEmail string // used when AccountID is zero
}

// Ingest validates the upload, resolves the owning client account, derives
// variants, stores the bytes and writes the metadata row. The original is
// the source of truth: a transform failure only drops the derived variants,
// while a storage failure of the original aborts the whole ingest with no
// metadata row written.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (model.Image, error) {
	ext, err := s.validate(in)
	if err != nil {
		return model.Image{}, err
	}

	owner, err := s.resolveOwner(ctx, in)
	if err != nil {
		return model.Image{}, err
	}

	// Best-effort transform; a zero Result means the source did not decode.
	res := s.transform.Process(in.Data)

	contentType := in.DeclaredType
	if res.Meta != nil && res.Meta.Format != "" {
		contentType = "image/" + res.Meta.Format
	}

	// Collision-resistant keys: never the raw filename, so identically named
	// re-uploads coexist.
	assetID := uuid.New()
	key := objectKey(prefixOriginal, owner.ID, assetID, ext)

	url, err := s.store.Put(ctx, key, contentType, bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return model.Image{}, err
	}

	img := model.Image{
		AccountID:        owner.ID,
		URL:              url,
		OriginalFilename: in.Filename,
		Size:             int64(len(in.Data)),
		MimeType:         contentType,
		ProcessingStatus: model.StatusFailed,
	}

	if res.Meta != nil {
		img.Width = res.Meta.Width
		img.Height = res.Meta.Height
		img.ColorModel = res.Meta.ColorModel
		img.HasAlpha = res.Meta.HasAlpha
		img.ProcessingStatus = model.StatusCompleted
	}

	// Derived variants are optional: a failed store drops the variant but
	// never the upload.
	if len(res.Thumbnail) > 0 {
		thumbKey := objectKey(prefixThumbnail, owner.ID, assetID, "jpg")
		if thumbURL, err := s.store.Put(ctx, thumbKey, "image/jpeg", bytes.NewReader(res.Thumbnail), int64(len(res.Thumbnail))); err != nil {
			zlog.Logger.Warn().Err(err).Str("key", thumbKey).Msg("ingest: failed to store thumbnail")
		} else {
			img.ThumbnailURL = &thumbURL
		}
	}

	if len(res.Optimized) > 0 {
		optKey := objectKey(prefixOptimized, owner.ID, assetID, "jpg")
		if optURL, err := s.store.Put(ctx, optKey, "image/jpeg", bytes.NewReader(res.Optimized), int64(len(res.Optimized))); err != nil {
			zlog.Logger.Warn().Err(err).Str("key", optKey).Msg("ingest: failed to store optimized variant")
		} else {
			img.OptimizedURL = &optURL
		}
	}

	saved, err := s.images.SaveImage(ctx, img)
	if err != nil {
		return model.Image{}, fmt.Errorf("ingest: %w", err)
	}

	if err := s.events.Publish(ctx, events.Event{
		Type:      events.TypeImageIngested,
		ImageID:   saved.ID,
		AccountID: saved.AccountID,
		URL:       saved.URL,
	}); err != nil {
		zlog.Logger.Warn().Err(err).Msg("ingest: failed to publish event")
	}

	return saved, nil
}

// Get returns one image's metadata.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Image, error) {
	img, err := s.images.GetImage(ctx, id)
	if err != nil {
		if errors.Is(err, imagerepo.ErrImageNotFound) {
			return model.Image{}, apperr.NotFound("image not found")
		}
		return model.Image{}, fmt.Errorf("get image: %w", err)
	}

	return img, nil
}

// ListByAccount returns all images owned by the given account.
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Image, error) {
	return s.images.ListImagesByAccount(ctx, accountID)
}

// Delete removes the metadata row, then best-effort removes every stored
// variant. Object deletions that fail leave orphans behind; the row is gone
// either way.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	img, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.images.DeleteImage(ctx, id); err != nil {
		if errors.Is(err, imagerepo.ErrImageNotFound) {
			return apperr.NotFound("image not found")
		}
		return fmt.Errorf("delete image: %w", err)
	}

	s.deleteObjects(ctx, img)

	if err := s.events.Publish(ctx, events.Event{
		Type:      events.TypeImageDeleted,
		ImageID:   img.ID,
		AccountID: img.AccountID,
		URL:       img.URL,
	}); err != nil {
		zlog.Logger.Warn().Err(err).Msg("delete: failed to publish event")
	}

	return nil
}

// DeleteObjects removes every stored variant of the given image from the
// object store, logging failures. Used by the account cascade, where the
// rows are already gone via the foreign key.
func (s *Service) DeleteObjects(ctx context.Context, img model.Image) {
	s.deleteObjects(ctx, img)
}

// SignedURL returns a time-limited URL for the object behind rawURL. A zero
// ttl falls back to the configured default.
func (s *Service) SignedURL(ctx context.Context, rawURL string, ttl time.Duration) (string, time.Duration, error) {
	if rawURL == "" {
		return "", 0, apperr.Validation("url is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	signed, err := s.store.SignedURL(ctx, rawURL, ttl)
	if err != nil {
		return "", 0, err
	}

	return signed, ttl, nil
}

func (s *Service) deleteObjects(ctx context.Context, img model.Image) {
	urls := []string{img.URL}
	if img.ThumbnailURL != nil {
		urls = append(urls, *img.ThumbnailURL)
	}
	if img.OptimizedURL != nil {
		urls = append(urls, *img.OptimizedURL)
	}

	for _, u := range urls {
		if err := s.store.Delete(ctx, u); err != nil {
			zlog.Logger.Warn().Err(err).Str("url", u).Msg("failed to delete stored object")
		}
	}
}

// validate enforces the upload contract before any transform or storage
// call: non-empty buffer, allowed type, size under the ceiling. It returns
// the normalized extension for generated object keys.
func (s *Service) validate(in IngestInput) (string, error) {
	if len(in.Data) == 0 {
		return "", apperr.Validation("no file uploaded")
	}

	if s.maxBytes > 0 && int64(len(in.Data)) > s.maxBytes {
		return "", apperr.Newf(apperr.KindTooLarge, "file exceeds the %d byte limit", s.maxBytes)
	}

	// Multipart part headers may carry parameters ("image/png; charset=binary");
	// only the media type itself decides.
	declared := strings.ToLower(in.DeclaredType)
	if mt, _, err := mime.ParseMediaType(in.DeclaredType); err == nil {
		declared = mt
	}

	if ext, ok := allowedTypes[declared]; ok {
		return ext, nil
	}

	// The filename extension only backs up a missing or generic declared
	// type; an explicit foreign type is rejected outright.
	if declared == "" || declared == "application/octet-stream" {
		fileExt := strings.TrimPrefix(strings.ToLower(filepath.Ext(in.Filename)), ".")
		if ext, ok := allowedTypes[fileExt]; ok {
			return ext, nil
		}
	}

	return "", apperr.Validation("Invalid file type: only TIFF, PNG and JPEG files are allowed")
}

// resolveOwner finds the target client account by ID or email. Uploads only
// land on CLIENT accounts.
func (s *Service) resolveOwner(ctx context.Context, in IngestInput) (model.Account, error) {
	var (
		owner model.Account
		err   error
	)

	switch {
	case in.AccountID != uuid.Nil:
		owner, err = s.accounts.GetAccountByID(ctx, in.AccountID)
	case in.AccountEmail != "":
		owner, err = s.accounts.GetAccountByEmail(ctx, in.AccountEmail)
	default:
		return model.Account{}, apperr.Validation("account id or email is required")
	}

	if err != nil {
		if errors.Is(err, accountrepo.ErrAccountNotFound) {
			return model.Account{}, apperr.NotFound("account not found")
		}
		return model.Account{}, fmt.Errorf("resolve owner: %w", err)
	}

	if owner.Role != model.RoleClient {
		return model.Account{}, apperr.Authorization("images can only be uploaded for client accounts")
	}

	return owner, nil
}

func objectKey(purpose string, accountID, assetID uuid.UUID, ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", purpose, accountID, assetID, ext)
}
