package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/image/draw"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image format (use jpg or png)")
	ErrInvalidUpload    = errors.New("invalid upload")
)

// IsClientError reports whether err was caused by the uploaded file rather than the backend.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedImage) || errors.Is(err, ErrInvalidUpload)
}

// DefaultMaxPixels caps the decoded size of a photo (about 40 megapixels).
const DefaultMaxPixels = 40_000_000

// Uploader stores multipart uploads, re-encoding photos to bounded JPEGs.
type Uploader struct {
	Storage   Storage
	MaxWidth  int
	MaxHeight int
	Quality   int
	MaxBytes  int64
	MaxPixels int64 // 0 = DefaultMaxPixels
	Now       func() time.Time
}

func (u *Uploader) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

// SavePhoto decodes a JPEG/PNG upload, downscales it to fit MaxWidth x MaxHeight and stores it as JPEG.
func (u *Uploader) SavePhoto(ctx context.Context, folder string, fh *multipart.FileHeader) (Object, error) {
	all, err := u.readAll(fh)
	if err != nil {
		return Object{}, err
	}
	ct := http.DetectContentType(all)
	if ct != "image/jpeg" && ct != "image/png" {
		return Object{}, ErrUnsupportedImage
	}
	// the header is read first so a small file declaring a huge canvas is never decoded
	cfg, _, err := image.DecodeConfig(bytes.NewReader(all))
	if err != nil {
		return Object{}, ErrUnsupportedImage
	}
	maxPx := u.MaxPixels
	if maxPx <= 0 {
		maxPx = DefaultMaxPixels
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > maxPx {
		return Object{}, fmt.Errorf("%w: image is %dx%d, over the %d pixel limit", ErrInvalidUpload, cfg.Width, cfg.Height, maxPx)
	}
	img, _, err := image.Decode(bytes.NewReader(all))
	if err != nil {
		return Object{}, ErrUnsupportedImage
	}
	img = Downscale(img, u.MaxWidth, u.MaxHeight)

	q := u.Quality
	if q <= 0 || q > 100 {
		q = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return Object{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return u.Storage.Put(ctx, NewKey(folder, "photo.jpg", u.now()), &buf, "image/jpeg")
}

// SaveFile stores an upload as-is.
func (u *Uploader) SaveFile(ctx context.Context, folder string, fh *multipart.FileHeader) (Object, error) {
	all, err := u.readAll(fh)
	if err != nil {
		return Object{}, err
	}
	ct := http.DetectContentType(all)
	return u.Storage.Put(ctx, NewKey(folder, fh.Filename, u.now()), bytes.NewReader(all), ct)
}

// Discard removes an object after a failed downstream operation; errors are only logged by callers.
func (u *Uploader) Discard(ctx context.Context, obj *Object) error {
	if obj == nil || obj.Key == "" {
		return nil
	}
	return u.Storage.Delete(ctx, obj.Key)
}

func (u *Uploader) readAll(fh *multipart.FileHeader) ([]byte, error) {
	if fh == nil {
		return nil, fmt.Errorf("%w: missing file", ErrInvalidUpload)
	}
	if u.MaxBytes > 0 && fh.Size > u.MaxBytes {
		return nil, fmt.Errorf("%w: file too large (max %d bytes)", ErrInvalidUpload, u.MaxBytes)
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	all, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}
	return all, nil
}

// Downscale keeps the aspect ratio; images already inside the box are returned unchanged.
func Downscale(src image.Image, maxW, maxH int) image.Image {
	if maxW <= 0 && maxH <= 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if (maxW <= 0 || w <= maxW) && (maxH <= 0 || h <= maxH) {
		return src
	}
	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
