package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxImageBytes caps a single uploaded photo.
	MaxImageBytes = 10 << 20
	// MaxImageSide is the longest edge kept after normalization.
	MaxImageSide = 1920
)

var (
	ErrImageTooLarge   = errors.New("image exceeds the upload size limit")
	ErrUnsupportedType = errors.New("only jpeg and png images are accepted")
)

var acceptedTypes = []string{"image/jpeg", "image/png"}

// NormalizeImage sniffs the content of r, applies the EXIF orientation,
// shrinks it to MaxImageSide and re-encodes it as JPEG.
func NormalizeImage(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", ErrImageTooLarge
	}
	if !mimetype.EqualsAny(mimetype.Detect(data).String(), acceptedTypes...) {
		return nil, "", ErrUnsupportedType
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	b := img.Bounds()
	if b.Dx() > MaxImageSide || b.Dy() > MaxImageSide {
		img = imaging.Fit(img, MaxImageSide, MaxImageSide, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return out.Bytes(), "image/jpeg", nil
}
