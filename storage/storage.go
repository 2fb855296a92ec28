// Package storage keeps uploaded post images on local disk or in an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cppla/guildboard/config"
)

// ImagesPrefix is the namespace every post image is stored under.
const ImagesPrefix = "images"

var (
	// ErrNotFound is returned when deleting an object that does not exist.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidPath is returned for keys that are absolute or escape the root.
	ErrInvalidPath = errors.New("storage: invalid path")
)

// Storage is the backend-neutral API used by the post views.
type Storage interface {
	// Save writes r under the slash separated key name.
	Save(ctx context.Context, name string, r io.Reader, contentType string) error
	// Delete removes the object stored under name.
	Delete(ctx context.Context, name string) error
	// URL returns the public address of name.
	URL(name string) string
}

// New builds the backend selected by STORAGE_DRIVER.
func New(cfg config.AppConfig) (Storage, error) {
	switch cfg.StorageDriver {
	case "", "disk":
		return NewDiskStorage(cfg.MediaRoot, cfg.MediaURL), nil
	case "s3":
		return NewS3Storage(S3Options{
			Bucket:         cfg.S3Bucket,
			Region:         cfg.S3Region,
			Endpoint:       cfg.S3Endpoint,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Prefix:         cfg.S3Prefix,
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// NewImageName returns a fresh key under ImagesPrefix keeping the upload's extension.
func NewImageName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	return path.Join(ImagesPrefix, uuid.NewString()+ext)
}

// cleanName normalizes a key and rejects anything that could leave the storage root.
func cleanName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
