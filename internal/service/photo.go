package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BlobStore keeps registry photos. DeleteByURL treats an already missing blob as success.
type BlobStore interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}

// PhotoUpload is an optional image attached to a registry report.
type PhotoUpload struct {
	FileName string
	Data     []byte
}

// DefaultMaxPhotoPixels caps the decoded size of a photo when PhotoConfig leaves MaxPixels at zero.
const DefaultMaxPhotoPixels = 40_000_000

// PhotoConfig bounds accepted photos and the re-encoded output. MaxPixels limits the declared
// width*height, checked from the header before any pixel buffer is allocated.
type PhotoConfig struct {
	MaxBytes     int64
	MaxPixels    int64
	MaxDimension int
	JPEGQuality  int
}

var allowedPhotoTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// CompressPhoto validates an image and re-encodes it as JPEG, shrinking it so that neither side
// exceeds MaxDimension.
func CompressPhoto(data []byte, cfg PhotoConfig) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: photo is empty", ErrInvalidInput)
	}
	if cfg.MaxBytes > 0 && int64(len(data)) > cfg.MaxBytes {
		return nil, fmt.Errorf("%w: photo exceeds %d bytes", ErrInvalidInput, cfg.MaxBytes)
	}

	detected := mimetype.Detect(data)
	if _, ok := allowedPhotoTypes[detected.String()]; !ok {
		return nil, fmt.Errorf("%w: unsupported photo type %s", ErrInvalidInput, detected.String())
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode photo: %v", ErrInvalidInput, err)
	}
	maxPixels := cfg.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPhotoPixels
	}
	if header.Width <= 0 || header.Height <= 0 || int64(header.Width)*int64(header.Height) > maxPixels {
		return nil, fmt.Errorf("%w: photo is %dx%d pixels, limit is %d", ErrInvalidInput, header.Width, header.Height, maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode photo: %v", ErrInvalidInput, err)
	}

	bounds := src.Bounds()
	width, height := scaledSize(bounds.Dx(), bounds.Dy(), cfg.MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 70
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return out.Bytes(), nil
}

func scaledSize(width, height, limit int) (int, int) {
	if limit <= 0 || (width <= limit && height <= limit) {
		return width, height
	}
	if width >= height {
		scaled := height * limit / width
		if scaled < 1 {
			scaled = 1
		}
		return limit, scaled
	}
	scaled := width * limit / height
	if scaled < 1 {
		scaled = 1
	}
	return scaled, limit
}

// PhotoBlobName builds "<unix millis>_<name>.jpg" with the name folded to lowercase ASCII.
func PhotoBlobName(at time.Time, fileName string) string {
	base := strings.TrimSuffix(path.Base(fileName), path.Ext(fileName))

	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), base)
	if err != nil {
		folded = base
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "photo"
	}
	return fmt.Sprintf("%d_%s.jpg", at.UnixMilli(), name)
}
