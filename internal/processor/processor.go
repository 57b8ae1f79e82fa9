// Package processor implements the image transform step of the ingestion
// pipeline: decode, metadata extraction, fixed-size thumbnail and a
// size-capped optimized variant. Failures never escape this package; the
// caller proceeds with the original bytes alone.
package processor

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
)

const jpegQuality = 85

// Meta describes a successfully decoded image.
type Meta struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Format     string `json:"format"`
	ColorModel string `json:"color_model"`
	HasAlpha   bool   `json:"has_alpha"`
}

// Result holds whatever the transform managed to produce. Any field may be
// zero: a nil Meta means the source did not decode, a nil Optimized means
// the source was already within the cap (or encoding failed).
type Result struct {
	Thumbnail        []byte
	Optimized        []byte
	Meta             *Meta
	CompressionRatio float64
}

// Processor derives thumbnail and optimized variants from uploaded bytes.
type Processor struct {
	thumbSize   int // square thumbnail edge, px
	optimizeCap int // longest-edge cap for the optimized variant, px
}

// New creates a Processor with the given thumbnail size and optimize cap.
func New(thumbSize, optimizeCap int) *Processor {
	return &Processor{thumbSize: thumbSize, optimizeCap: optimizeCap}
}

// Process decodes the source bytes and derives the thumbnail and, when the
// source exceeds the cap, the optimized variant. Both variants are encoded
// as JPEG regardless of source format so multi-band TIFF originals still get
// browser-displayable previews. Process never returns an error: decode or
// encode failures are logged and reported as absent fields.
func (p *Processor) Process(data []byte) Result {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("transform: failed to decode image, skipping derived variants")
		return Result{}
	}

	bounds := img.Bounds()
	res := Result{
		Meta: &Meta{
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Format:     SniffFormat(data),
			ColorModel: colorModelName(img),
			HasAlpha:   hasAlpha(img),
		},
	}

	// Thumbnail: fixed square, cover fit (resize to fill, center crop).
	thumb := imaging.Fill(img, p.thumbSize, p.thumbSize, imaging.Center, imaging.Lanczos)
	if out, err := encodeJPEG(thumb); err != nil {
		zlog.Logger.Warn().Err(err).Msg("transform: failed to encode thumbnail")
	} else {
		res.Thumbnail = out
	}

	// Optimized: contain fit under the longest-edge cap, never upscaled.
	if bounds.Dx() > p.optimizeCap || bounds.Dy() > p.optimizeCap {
		fitted := imaging.Fit(img, p.optimizeCap, p.optimizeCap, imaging.Lanczos)
		if out, err := encodeJPEG(fitted); err != nil {
			zlog.Logger.Warn().Err(err).Msg("transform: failed to encode optimized variant")
		} else {
			res.Optimized = out
			if len(data) > 0 {
				res.CompressionRatio = float64(len(out)) / float64(len(data))
			}
		}
	}

	return res
}

func encodeJPEG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func colorModelName(img image.Image) string {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "gray"
	case *image.CMYK:
		return "cmyk"
	case *image.YCbCr:
		return "ycbcr"
	case *image.Paletted:
		return "paletted"
	default:
		return "rgb"
	}
}

func hasAlpha(img image.Image) bool {
	type opaquer interface {
		Opaque() bool
	}
	if o, ok := img.(opaquer); ok {
		return !o.Opaque()
	}
	return false
}
