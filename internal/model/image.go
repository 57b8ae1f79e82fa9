package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus tracks how far an uploaded image got through the
// ingestion pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Image represents one uploaded NDVI asset and its stored variants.
// URL always points at the original; ThumbnailURL and OptimizedURL are set
// only when the transform step produced the derived variants.
type Image struct {
	ID               uuid.UUID        `json:"id"`
	AccountID        uuid.UUID        `json:"account_id"`
	URL              string           `json:"url"`
	ThumbnailURL     *string          `json:"thumbnail_url,omitempty"`
	OptimizedURL     *string          `json:"optimized_url,omitempty"`
	OriginalFilename string           `json:"original_filename"`
	Size             int64            `json:"size"`
	MimeType         string           `json:"mime_type"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	ColorModel       string           `json:"color_model,omitempty"`
	HasAlpha         bool             `json:"has_alpha"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Dimensions returns the "WxH" string used by API clients, or "" when the
// image was never decoded.
func (i Image) Dimensions() string {
	if i.Width == 0 && i.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", i.Width, i.Height)
}
