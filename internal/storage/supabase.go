package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gosimple/slug"
	storage_go "github.com/supabase-community/storage-go"

	"github.com/studyhub/assessment-service/internal/config"
)

var ErrStorageDisabled = errors.New("file storage is not configured")

// Uploader stores export artifacts and returns their public URL
type Uploader interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}

// bucketClient is the part of the storage-go client used for uploads
type bucketClient interface {
	UploadFile(bucketID string, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
}

// SupabaseUploader writes into one Supabase Storage bucket
type SupabaseUploader struct {
	client  bucketClient
	baseURL string
	bucket  string
}

func NewSupabaseUploader(cfg config.StorageConfig) *SupabaseUploader {
	client := storage_go.NewClient(cfg.SupabaseURL+"/storage/v1", cfg.SupabaseKey, nil)
	return &SupabaseUploader{
		client:  client,
		baseURL: cfg.SupabaseURL,
		bucket:  cfg.Bucket,
	}
}

// Upload overwrites any previous object at the same path
func (s *SupabaseUploader) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	upsert := true
	_, err := s.client.UploadFile(s.bucket, objectPath, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}
	return s.PublicURL(objectPath), nil
}

// PublicURL is the public object URL for a path in the bucket
func (s *SupabaseUploader) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
}

// DisabledUploader is used when no storage is configured
type DisabledUploader struct{}

func (DisabledUploader) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	return "", ErrStorageDisabled
}

// ObjectPath builds "<folder>/<slug-of-parts>.<ext>"
func ObjectPath(folder, ext string, parts ...string) string {
	name := slug.Make(strings.Join(parts, " "))
	if name == "" {
		name = "export"
	}
	return path.Join(folder, name+"."+strings.TrimPrefix(ext, "."))
}
