package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"SIKON-backend/internal/platform/config"
)

// Object is a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the storage driver selected by cfg.Driver.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "oss":
		return NewOSSStorage(cfg.OSS)
	case "local", "":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

var unsafeExt = regexp.MustCompile(`[^a-z0-9.]+`)

// NewKey returns "<folder>/<yyyymmdd>/<ulid><ext>".
func NewKey(folder, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	ext = unsafeExt.ReplaceAllString(ext, "")
	if len(ext) > 8 {
		ext = ext[:8]
	}
	id := ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0))
	return path.Join(strings.Trim(folder, "/"), now.UTC().Format("20060102"), id.String()+ext)
}
