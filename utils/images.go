// kex/utils/images.go
package utils

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"kex/config"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp decoder
)

var (
	// ErrInvalidImage means the upload could not be decoded or carries a
	// disallowed extension.
	ErrInvalidImage = errors.New("unrecognized image; please use a common format such as JPG or PNG")
	// ErrImageTooLarge means compression gave up before reaching the
	// byte budget.
	ErrImageTooLarge = errors.New("image still exceeds 512KB after compression; please upload a smaller photo")
)

// AllowedImageName reports whether a filename carries a whitelisted
// image extension.
func AllowedImageName(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return ext != "" && config.AllowedImageExtensions[ext]
}

// CompressImage decodes an upload and re-encodes it as JPEG under the
// configured byte budget. Quality steps down first; once it hits the
// floor, dimensions shrink 10% per pass instead. Animated inputs keep
// only their first frame.
func CompressImage(r io.Reader) ([]byte, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrInvalidImage
	}

	img := imaging.Clone(src) // forces NRGBA; alpha flattens on JPEG encode
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	quality := config.StartQuality

	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, err
		}

		if buf.Len() <= config.MaxImageBytes ||
			(quality <= config.QualityFloor && max(width, height) <= config.SoftStopEdge) {
			break
		}

		if quality > config.QualityFloor {
			quality -= config.QualityStep
		} else {
			width = max(1, int(float64(width)*0.9))
			height = max(1, int(float64(height)*0.9))
			img = imaging.Resize(img, width, height, imaging.Lanczos)
		}

		if quality <= config.QualityHardStop && max(width, height) <= config.HardStopEdge {
			break
		}
	}

	if buf.Len() > config.MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	return buf.Bytes(), nil
}
