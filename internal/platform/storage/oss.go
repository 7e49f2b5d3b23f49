package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"SIKON-backend/internal/platform/config"
)

// OSSStorage stores objects in an Aliyun OSS bucket.
type OSSStorage struct {
	bucket  *oss.Bucket
	baseURL string
}

func NewOSSStorage(cfg config.OSSConfig) (*OSSStorage, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("missing oss endpoint/access key/secret/bucket")
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bkt, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket: %w", err)
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
		base = "https://" + cfg.Bucket + "." + host
	}
	log.Printf("[INFO] storage: oss bucket=%s", cfg.Bucket)
	return &OSSStorage{bucket: bkt, baseURL: base}, nil
}

func (s *OSSStorage) Put(ctx context.Context, key string, r io.Reader, contentType string) (Object, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	cr := &countingReader{r: r}
	err := s.bucket.PutObject(key, cr,
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
	)
	if err != nil {
		return Object{}, fmt.Errorf("oss put %s: %w", key, err)
	}
	return Object{Key: key, URL: s.URL(key), ContentType: contentType, Size: cr.n}, nil
}

func (s *OSSStorage) Delete(ctx context.Context, key string) error {
	return s.bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (s *OSSStorage) URL(key string) string {
	return s.baseURL + "/" + key
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
