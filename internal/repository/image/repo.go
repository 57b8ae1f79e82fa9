package image

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/agrosight/ndvi-vault/internal/model"
)

var ErrImageNotFound = errors.New("image not found")

type Repository struct {
	db *dbpg.DB
}

func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveImage(ctx context.Context, img model.Image) (model.Image, error) {
	query := `
		INSERT INTO images (
			account_id, url, thumbnail_url, optimized_url, original_filename,
			size_bytes, mime_type, width, height, color_model, has_alpha, processing_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
   `

	err := r.db.Master.QueryRowContext(
		ctx, query,
		img.AccountID, img.URL, img.ThumbnailURL, img.OptimizedURL, img.OriginalFilename,
		img.Size, img.MimeType, img.Width, img.Height, img.ColorModel, img.HasAlpha, img.ProcessingStatus,
	).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return model.Image{}, fmt.Errorf("save: failed to save image: %w", err)
	}

	return img, nil
}

func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (model.Image, error) {
	query := `
		SELECT account_id, url, thumbnail_url, optimized_url, original_filename,
		       size_bytes, mime_type, width, height, color_model, has_alpha,
		       processing_status, created_at
		FROM images
		WHERE id = $1
    `

	var img model.Image
	img.ID = id
	err := r.db.Master.QueryRowContext(
		ctx, query, id,
	).Scan(
		&img.AccountID, &img.URL, &img.ThumbnailURL, &img.OptimizedURL, &img.OriginalFilename,
		&img.Size, &img.MimeType, &img.Width, &img.Height, &img.ColorModel, &img.HasAlpha,
		&img.ProcessingStatus, &img.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Image{}, ErrImageNotFound
		}

		return model.Image{}, fmt.Errorf("get: failed to get image: %w", err)
	}

	return img, nil
}

func (r *Repository) ListImagesByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Image, error) {
	query := `
		SELECT id, url, thumbnail_url, optimized_url, original_filename,
		       size_bytes, mime_type, width, height, color_model, has_alpha,
		       processing_status, created_at
		FROM images
		WHERE account_id = $1
		ORDER BY created_at DESC
    `

	rows, err := r.db.Master.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list: failed to list images: %w", err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		img := model.Image{AccountID: accountID}
		err := rows.Scan(
			&img.ID, &img.URL, &img.ThumbnailURL, &img.OptimizedURL, &img.OriginalFilename,
			&img.Size, &img.MimeType, &img.Width, &img.Height, &img.ColorModel, &img.HasAlpha,
			&img.ProcessingStatus, &img.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("list: failed to scan image: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: rows error: %w", err)
	}

	return images, nil
}

func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM images WHERE id = $1
    `

	rows, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete image: %w", err)
	}

	n, err := rows.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrImageNotFound
	}

	return nil
}
