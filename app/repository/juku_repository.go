package repository

import (
	"strings"

	"github.com/sciencedream/jukustream/app/models"
	"gorm.io/gorm"
)

// jukuRepository implements the JukuRepository interface
type jukuRepository struct {
	db *gorm.DB
}

// NewJukuRepository creates a new juku repository instance
func NewJukuRepository(db *gorm.DB) JukuRepository {
	return &jukuRepository{db: db}
}

func (r *jukuRepository) Create(juku *models.Juku) error {
	return r.db.Create(juku).Error
}

func (r *jukuRepository) GetByID(id uint) (*models.Juku, error) {
	var juku models.Juku
	err := r.db.First(&juku, id).Error
	if err != nil {
		return nil, err
	}
	return &juku, nil
}

func (r *jukuRepository) GetByCode(code string) (*models.Juku, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var juku models.Juku
	err := r.db.Where("code = ?", trimmed).First(&juku).Error
	if err != nil {
		return nil, err
	}
	return &juku, nil
}

func (r *jukuRepository) GetAll() ([]models.Juku, error) {
	var jukus []models.Juku
	err := r.db.Order("name ASC").Find(&jukus).Error
	return jukus, err
}

func (r *jukuRepository) Update(juku *models.Juku) error {
	return r.db.Save(juku).Error
}

func (r *jukuRepository) Delete(id uint) error {
	return r.db.Delete(&models.Juku{}, id).Error
}

func (r *jukuRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Juku{}).Count(&count).Error
	return count, err
}
