package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	_ "golang.org/x/image/webp"

	"github.com/sportshop/api/internal/config"
	"github.com/sportshop/api/internal/dto"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrImageTooLarge    = errors.New("image exceeds the size limit")
)

const (
	maxUploadBytes = 5 << 20
	maxImageWidth  = 1920
	thumbWidth     = 300
	jpegQuality    = 85
)

// UploadService resizes product images and stores them in S3-compatible
// object storage. Every upload produces the full-size rendition and a
// thumbnail next to it with a _thumb suffix.
type UploadService struct {
	client *minio.Client
	cfg    config.S3Config
}

func NewUploadService(client *minio.Client, cfg config.S3Config) *UploadService {
	return &UploadService{client: client, cfg: cfg}
}

// EnsureBucket creates the bucket on startup when it does not exist.
func (s *UploadService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (s *UploadService) UploadImage(ctx context.Context, r io.Reader) (*dto.UploadResponse, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(raw) > maxUploadBytes {
		return nil, ErrImageTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrUnsupportedImage
	}

	if img.Bounds().Dx() > maxImageWidth {
		img = imaging.Resize(img, maxImageWidth, 0, imaging.Lanczos)
	}
	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)

	key := fmt.Sprintf("products/%s.jpg", uuid.NewString())
	thumbKey := strings.TrimSuffix(key, ".jpg") + "_thumb.jpg"

	if err := s.put(ctx, key, img); err != nil {
		return nil, err
	}
	if err := s.put(ctx, thumbKey, thumb); err != nil {
		return nil, err
	}

	return &dto.UploadResponse{
		Key:      key,
		URL:      s.publicURL(key),
		ThumbURL: s.publicURL(thumbKey),
	}, nil
}

func (s *UploadService) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	thumbKey := strings.TrimSuffix(key, path.Ext(key)) + "_thumb" + path.Ext(key)
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, thumbKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove thumbnail: %w", err)
	}
	return nil
}

func (s *UploadService) put(ctx context.Context, key string, img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *UploadService) publicURL(key string) string {
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, key)
}
