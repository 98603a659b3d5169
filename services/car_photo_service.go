package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CarPhotoService stores pictures of cars taken at intake
type CarPhotoService struct {
	db     *gorm.DB
	images ImageService
}

// NewCarPhotoService creates a car photo service
func NewCarPhotoService(db *gorm.DB, images ImageService) *CarPhotoService {
	return &CarPhotoService{db: db, images: images}
}

// Upload validates and stores a photo for a car of the shop
func (s *CarPhotoService) Upload(ctx context.Context, shopID, carID uint, fileHeader *multipart.FileHeader, byStaffID *uint) (*models.CarPhoto, error) {
	var car models.Car
	if err := findInShop(s.db.WithContext(ctx), &car, shopID, carID, "car"); err != nil {
		return nil, err
	}

	key, err := s.images.UploadImage(ctx, fmt.Sprintf("shops/%d/cars/%d", shopID, carID), fileHeader)
	if err != nil {
		return nil, err
	}

	photo := models.CarPhoto{
		ShopID:           shopID,
		CarID:            carID,
		StorageKey:       key,
		UploadedByStaff:  byStaffID,
		OriginalFilename: fileHeader.Filename,
	}
	if err := s.db.WithContext(ctx).Create(&photo).Error; err != nil {
		if delErr := s.images.DeleteImage(ctx, key); delErr != nil {
			log.WithError(delErr).WithField("key", key).Warn("Failed to remove orphaned photo")
		}
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}

	s.attachURL(ctx, &photo)
	log.WithFields(log.Fields{"shop_id": shopID, "car_id": carID, "photo_id": photo.ID}).Info("Car photo uploaded")
	return &photo, nil
}

// List returns a car's photos with readable URLs, newest first
func (s *CarPhotoService) List(ctx context.Context, shopID, carID uint) ([]models.CarPhoto, error) {
	var car models.Car
	if err := findInShop(s.db.WithContext(ctx), &car, shopID, carID, "car"); err != nil {
		return nil, err
	}

	var photos []models.CarPhoto
	if err := s.db.WithContext(ctx).
		Where("shop_id = ? AND car_id = ?", shopID, carID).
		Order("created_at DESC, id DESC").
		Find(&photos).Error; err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	for i := range photos {
		s.attachURL(ctx, &photos[i])
	}
	return photos, nil
}

// Delete removes a photo record and its stored object
func (s *CarPhotoService) Delete(ctx context.Context, shopID, carID, photoID uint) error {
	var photo models.CarPhoto
	if err := s.db.WithContext(ctx).
		Where("shop_id = ? AND car_id = ? AND id = ?", shopID, carID, photoID).
		First(&photo).Error; err != nil {
		return notFound("photo", photoID)
	}
	if err := s.db.WithContext(ctx).Delete(&photo).Error; err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if err := s.images.DeleteImage(ctx, photo.StorageKey); err != nil {
		log.WithError(err).WithField("key", photo.StorageKey).Warn("Photo record deleted but object removal failed")
	}
	return nil
}

func (s *CarPhotoService) attachURL(ctx context.Context, photo *models.CarPhoto) {
	url, err := s.images.GetImageURL(ctx, photo.StorageKey)
	if err != nil {
		log.WithError(err).WithField("photo_id", photo.ID).Warn("Failed to build photo URL")
		return
	}
	photo.URL = url
}
