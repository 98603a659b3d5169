package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/kendall-kelly/autoshop-crm-api/utils"
)

// ImageService validates and stores images such as car photos
type ImageService interface {
	// UploadImage validates the file and stores it under prefix, returning its key
	UploadImage(ctx context.Context, prefix string, fileHeader *multipart.FileHeader) (string, error)

	// GetImageURL returns a URL for reading a stored image
	GetImageURL(ctx context.Context, imageKey string) (string, error)

	// DeleteImage removes an image from storage
	DeleteImage(ctx context.Context, imageKey string) error
}

// StoredImageService implements ImageService on top of an ObjectStore
type StoredImageService struct {
	store ObjectStore
}

var imageServiceInstance ImageService

// InitImageService initializes the image service with the given store
func InitImageService(store ObjectStore) ImageService {
	imageServiceInstance = &StoredImageService{store: store}
	return imageServiceInstance
}

// GetImageService returns the initialized image service instance
func GetImageService() ImageService {
	return imageServiceInstance
}

// SetImageService sets the image service instance (primarily for testing)
func SetImageService(service ImageService) {
	imageServiceInstance = service
}

// UploadImage validates and uploads an image
func (s *StoredImageService) UploadImage(ctx context.Context, prefix string, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	key, err := s.store.UploadFile(ctx, prefix, fileHeader)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return key, nil
}

// GetImageURL returns a (presigned) URL for the image
func (s *StoredImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	url, err := s.store.GetPresignedURL(ctx, imageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}
	return url, nil
}

// DeleteImage removes an image
func (s *StoredImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}

	if err := s.store.DeleteFile(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
