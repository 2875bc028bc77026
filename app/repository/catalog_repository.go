package repository

import (
	"strings"

	"github.com/sciencedream/jukustream/app/models"
	"gorm.io/gorm"
)

// subjectRepository implements the SubjectRepository interface
type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository creates a new subject repository instance
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) Create(subject *models.Subject) error {
	return r.db.Create(subject).Error
}

func (r *subjectRepository) GetByID(id uint) (*models.Subject, error) {
	var subject models.Subject
	err := r.db.First(&subject, id).Error
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *subjectRepository) GetByLocale(locale string) ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.db.Where("locale = ?", locale).
		Order("display_order ASC, id ASC").
		Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepository) GetAll() ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.db.Order("locale ASC, display_order ASC, id ASC").Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepository) Update(subject *models.Subject) error {
	return r.db.Save(subject).Error
}

// Delete removes the subject and everything below it. Videos go first so a
// mid-way failure rolls the whole branch back.
func (r *subjectRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var gradeIDs []uint
		if err := tx.Model(&models.Grade{}).Where("subject_id = ?", id).
			Pluck("id", &gradeIDs).Error; err != nil {
			return err
		}
		if len(gradeIDs) > 0 {
			if err := tx.Where("grade_id IN ?", gradeIDs).Delete(&models.Video{}).Error; err != nil {
				return err
			}
			if err := tx.Where("subject_id = ?", id).Delete(&models.Grade{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Subject{}, id).Error
	})
}

func (r *subjectRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Subject{}).Count(&count).Error
	return count, err
}

// gradeRepository implements the GradeRepository interface
type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository creates a new grade repository instance
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) Create(grade *models.Grade) error {
	return r.db.Create(grade).Error
}

func (r *gradeRepository) GetByID(id uint) (*models.Grade, error) {
	var grade models.Grade
	err := r.db.Preload("Subject").First(&grade, id).Error
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

func (r *gradeRepository) GetBySubjectID(subjectID uint) ([]models.Grade, error) {
	var grades []models.Grade
	err := r.db.Where("subject_id = ?", subjectID).Order("id ASC").Find(&grades).Error
	return grades, err
}

func (r *gradeRepository) GetByLocale(locale string) ([]models.Grade, error) {
	var grades []models.Grade
	err := r.db.Where("locale = ?", locale).Order("subject_id ASC, id ASC").Find(&grades).Error
	return grades, err
}

func (r *gradeRepository) Update(grade *models.Grade) error {
	return r.db.Save(grade).Error
}

// Delete removes the grade and its videos in one transaction.
func (r *gradeRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("grade_id = ?", id).Delete(&models.Video{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Grade{}, id).Error
	})
}

func (r *gradeRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Grade{}).Count(&count).Error
	return count, err
}

// videoRepository implements the VideoRepository interface
type videoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new video repository instance
func NewVideoRepository(db *gorm.DB) VideoRepository {
	return &videoRepository{db: db}
}

func (r *videoRepository) Create(video *models.Video) error {
	return r.db.Create(video).Error
}

func (r *videoRepository) GetByID(id uint) (*models.Video, error) {
	var video models.Video
	err := r.db.Preload("Grade").First(&video, id).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepository) GetByUUID(uuid string) (*models.Video, error) {
	var video models.Video
	err := r.db.Preload("Grade").Where("uuid = ?", uuid).First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepository) GetByGradeID(gradeID uint) ([]models.Video, error) {
	var videos []models.Video
	err := r.db.Where("grade_id = ?", gradeID).Order("id ASC").Find(&videos).Error
	return videos, err
}

func (r *videoRepository) Update(video *models.Video) error {
	return r.db.Save(video).Error
}

func (r *videoRepository) Delete(id uint) error {
	return r.db.Delete(&models.Video{}, id).Error
}

func (r *videoRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Video{}).Count(&count).Error
	return count, err
}

func (r *videoRepository) Search(query string) ([]models.Video, error) {
	var videos []models.Video
	searchPattern := "%" + strings.TrimSpace(query) + "%"
	err := r.db.Where("title LIKE ? OR description LIKE ?", searchPattern, searchPattern).
		Find(&videos).Error
	return videos, err
}

// AddViewCount applies a batched view-counter delta from the cache flush.
func (r *videoRepository) AddViewCount(id uint, delta uint64) error {
	if delta == 0 {
		return nil
	}
	return r.db.Model(&models.Video{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", delta)).Error
}
