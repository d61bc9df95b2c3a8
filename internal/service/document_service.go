package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/repository/storage"
	"github.com/innovators/mlms/mlms-backend/internal/websocket"
	"github.com/rs/zerolog/log"
)

const (
	MaxDocumentSize      = 5 * 1024 * 1024 // 5MB
	MinDocumentWidth     = 50
	MinDocumentHeight    = 50
	DocumentThumbWidth   = 200
	DocumentDisplayWidth = 1200
	JPEGQuality          = 85

	// DocumentLinkExpiry is how long a CNIC document link stays valid
	DocumentLinkExpiry = 15 * time.Minute
)

var (
	ErrDocumentTooLarge             = errors.New("file too large. Maximum size is 5MB")
	ErrInvalidFormat                = errors.New("invalid format. Supported: JPEG, PNG")
	ErrImageTooSmall                = errors.New("image too small. Minimum 50x50 pixels")
	ErrInvalidImageData             = errors.New("invalid image data")
	ErrDocumentStorageNotConfigured = errors.New("document storage not configured")
	ErrNoCNICDocument               = errors.New("client has no CNIC document")
)

// AllowedExtensions maps extensions to content types
var AllowedExtensions = map[string]string{
	".jpg":  storage.ContentTypeJPEG,
	".jpeg": storage.ContentTypeJPEG,
	".png":  storage.ContentTypePNG,
}

var documentVariants = []struct {
	name     string
	maxWidth int
}{
	{"thumb", DocumentThumbWidth},
	{"display", DocumentDisplayWidth},
}

// DocumentService validates, resizes and stores client identity documents
type DocumentService struct {
	clientRepo     domain.ClientRepository
	storage        storage.ObjectRepository
	eventPublisher websocket.EventPublisher
}

// NewDocumentService creates a new DocumentService. objects may be nil.
func NewDocumentService(clientRepo domain.ClientRepository, objects storage.ObjectRepository) *DocumentService {
	return &DocumentService{
		clientRepo: clientRepo,
		storage:    objects,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *DocumentService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *DocumentService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(websocket.TopicPortfolio, event)
	}
}

// IsEnabled indicates whether uploads are supported (storage configured)
func (s *DocumentService) IsEnabled() bool {
	return s != nil && s.storage != nil
}

// ValidateImage validates image format and size
func (s *DocumentService) ValidateImage(data []byte, filename string) error {
	_, err := validateAndDecode(data, filename)
	return err
}

func validateAndDecode(data []byte, filename string) (image.Image, error) {
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := AllowedExtensions[ext]; !ok {
		return nil, ErrInvalidFormat
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImageData
	}

	bounds := img.Bounds()
	if bounds.Dx() < MinDocumentWidth || bounds.Dy() < MinDocumentHeight {
		return nil, ErrImageTooSmall
	}

	return img, nil
}

// UploadCNIC stores a scan of the client's CNIC and records the display variant's key.
// A previous document is removed once the new one is stored.
func (s *DocumentService) UploadCNIC(ctx context.Context, clientID int32, data []byte, filename string) (*domain.Client, error) {
	if !s.IsEnabled() {
		return nil, ErrDocumentStorageNotConfigured
	}

	client, err := s.clientRepo.GetByID(clientID)
	if err != nil {
		return nil, err
	}
	var previousKey string
	if client.CNICDocumentKey != nil {
		previousKey = *client.CNICDocumentKey
	}

	img, err := validateAndDecode(data, filename)
	if err != nil {
		return nil, err
	}

	base := path.Join("clients", strconv.Itoa(int(clientID)), "cnic", uuid.New().String())
	keys := make(map[string]string, len(documentVariants))

	for _, variant := range documentVariants {
		processed := img
		if img.Bounds().Dx() > variant.maxWidth {
			processed = imaging.Resize(img, variant.maxWidth, 0, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			s.cleanupVariants(ctx, keys)
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}

		key, err := s.storage.Upload(ctx, base+"_"+variant.name+".jpg", bytes.NewReader(buf.Bytes()), storage.ContentTypeJPEG, int64(buf.Len()))
		if err != nil {
			s.cleanupVariants(ctx, keys)
			return nil, fmt.Errorf("failed to upload %s variant: %w", variant.name, err)
		}
		keys[variant.name] = key
	}

	updated, err := s.clientRepo.SetCNICDocumentKey(clientID, keys["display"])
	if err != nil {
		s.cleanupVariants(ctx, keys)
		return nil, err
	}

	if previousKey != "" {
		s.deleteAllVariants(ctx, previousKey)
	}

	log.Info().Int32("client_id", clientID).Str("key", keys["display"]).Msg("CNIC document stored")
	s.publishEvent(websocket.ClientDocumentUploaded(updated))
	return updated, nil
}

// CNICDocumentURL returns a temporary link to the client's CNIC scan
func (s *DocumentService) CNICDocumentURL(ctx context.Context, clientID int32) (string, error) {
	if !s.IsEnabled() {
		return "", ErrDocumentStorageNotConfigured
	}

	client, err := s.clientRepo.GetByID(clientID)
	if err != nil {
		return "", err
	}
	if client.CNICDocumentKey == nil || *client.CNICDocumentKey == "" {
		return "", ErrNoCNICDocument
	}

	return s.storage.PresignedURL(ctx, *client.CNICDocumentKey, DocumentLinkExpiry)
}

// cleanupVariants removes variants uploaded during a failed operation
func (s *DocumentService) cleanupVariants(ctx context.Context, keys map[string]string) {
	for _, key := range keys {
		_ = s.storage.Delete(ctx, key)
	}
}

// deleteAllVariants removes every variant sharing the display key's base path
func (s *DocumentService) deleteAllVariants(ctx context.Context, displayKey string) {
	base := strings.TrimSuffix(displayKey, "_display.jpg")
	if base == displayKey {
		return
	}
	for _, variant := range documentVariants {
		if err := s.storage.Delete(ctx, base+"_"+variant.name+".jpg"); err != nil {
			log.Warn().Err(err).Str("key", base).Msg("Failed to delete previous CNIC document")
		}
	}
}
