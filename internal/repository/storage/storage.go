package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Content types stored by the service
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ObjectRepository defines the interface for object storage operations.
// Upload returns the object key; links are produced on demand with PresignedURL.
type ObjectRepository interface {
	Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error)
	Delete(ctx context.Context, objectPath string) error
	PresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error)
}

// ObjectPath creates a unique object path such as clients/7/cnic/<uuid>_display.jpg
func ObjectPath(entityType string, entityID int32, kind, variant, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := uuid.New().String()
	if variant != "" {
		name += "_" + variant
	}
	return path.Join(entityType, fmt.Sprintf("%d", entityID), kind, name+ext)
}
