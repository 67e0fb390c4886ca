package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"

	"github.com/nfnt/resize"

	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/store"
)

// GetCover returns a fiction's cover image, downscaled and cached for a
// month. Covers are served straight off the CDN with no session attached.
func (s *Service) GetCover(ctx context.Context, fictionID int64, coverURL string) ([]byte, string, error) {
	key := store.CacheKey("cover", fictionID)
	if data, contentType, ok, err := s.st.GetImage(key); err == nil && ok {
		return data, contentType, nil
	} else if err != nil {
		log.Printf("Cover cache read for fiction %d failed: %v", fictionID, err)
	}

	if coverURL == "" {
		return nil, "", fmt.Errorf("%w: no cover for fiction %d", models.ErrNotFound, fictionID)
	}

	data, contentType, err := s.fetcher.FetchImage(ctx, coverURL)
	if err != nil {
		return nil, "", err
	}

	data, contentType = s.downscaleCover(data, contentType)

	if err := s.st.PutImage(key, data, contentType, TTLCover); err != nil {
		log.Printf("Failed to cache cover for fiction %d: %v", fictionID, err)
	}
	return data, contentType, nil
}

// downscaleCover shrinks oversized covers to the configured width. Anything
// that fails to decode (webp, gif, truncated data) is passed through
// untouched; the original bytes are always a valid answer.
func (s *Service) downscaleCover(data []byte, contentType string) ([]byte, string) {
	if s.coverMaxWidth <= 0 {
		return data, contentType
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, contentType
	}
	if img.Bounds().Dx() <= s.coverMaxWidth {
		return data, contentType
	}

	scaled := resize.Resize(uint(s.coverMaxWidth), 0, img, resize.Lanczos3)
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, scaled); err != nil {
			return data, contentType
		}
		return buf.Bytes(), "image/png"
	default:
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85}); err != nil {
			return data, contentType
		}
		return buf.Bytes(), "image/jpeg"
	}
}
