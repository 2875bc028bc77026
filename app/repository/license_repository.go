package repository

import (
	"time"

	"github.com/sciencedream/jukustream/app/models"
	"gorm.io/gorm"
)

// licenseRepository implements the LicenseRepository interface
type licenseRepository struct {
	db *gorm.DB
}

// NewLicenseRepository creates a new license repository instance
func NewLicenseRepository(db *gorm.DB) LicenseRepository {
	return &licenseRepository{db: db}
}

func (r *licenseRepository) GetByUserID(userID uint) (*models.License, error) {
	var license models.License
	err := r.db.Where("user_id = ?", userID).First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// GetValidByUserID returns the user's license only while it grants access.
// Expiry is checked in SQL so clock handling stays in one place; the
// canceled-subscription rule lives on the model.
func (r *licenseRepository) GetValidByUserID(userID uint, now time.Time) (*models.License, error) {
	var license models.License
	err := r.db.Where("user_id = ? AND expires_at > ?", userID, now).First(&license).Error
	if err != nil {
		return nil, err
	}
	if !license.IsValidAt(now) {
		return nil, gorm.ErrRecordNotFound
	}
	return &license, nil
}

func (r *licenseRepository) List(offset, limit int) ([]models.License, error) {
	var licenses []models.License
	err := r.db.Order("id DESC").Offset(offset).Limit(limit).Find(&licenses).Error
	return licenses, err
}

func (r *licenseRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.License{}).Count(&count).Error
	return count, err
}
