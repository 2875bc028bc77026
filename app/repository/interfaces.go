package repository

import (
	"time"

	"github.com/sciencedream/jukustream/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByStripeCustomerID(stripeCustomerID string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
	ListByJukuID(jukuID uint) ([]models.User, error)
	CountByJukuID(jukuID uint) (int64, error)
	UpdateLastLogin(id uint) error
}

// SubjectRepository defines the interface for subject catalog operations
type SubjectRepository interface {
	Create(subject *models.Subject) error
	GetByID(id uint) (*models.Subject, error)
	GetByLocale(locale string) ([]models.Subject, error)
	GetAll() ([]models.Subject, error)
	Update(subject *models.Subject) error
	// Delete removes the subject together with its grades and their videos
	// in one transaction.
	Delete(id uint) error
	Count() (int64, error)
}

// GradeRepository defines the interface for grade catalog operations
type GradeRepository interface {
	Create(grade *models.Grade) error
	GetByID(id uint) (*models.Grade, error)
	GetBySubjectID(subjectID uint) ([]models.Grade, error)
	GetByLocale(locale string) ([]models.Grade, error)
	Update(grade *models.Grade) error
	// Delete removes the grade together with its videos in one transaction.
	Delete(id uint) error
	Count() (int64, error)
}

// VideoRepository defines the interface for video catalog operations
type VideoRepository interface {
	Create(video *models.Video) error
	GetByID(id uint) (*models.Video, error)
	GetByUUID(uuid string) (*models.Video, error)
	GetByGradeID(gradeID uint) ([]models.Video, error)
	Update(video *models.Video) error
	Delete(id uint) error
	Count() (int64, error)
	Search(query string) ([]models.Video, error)
	AddViewCount(id uint, delta uint64) error
}

// LicenseRepository defines the interface for license reads outside the
// billing transaction path.
type LicenseRepository interface {
	GetByUserID(userID uint) (*models.License, error)
	GetValidByUserID(userID uint, now time.Time) (*models.License, error)
	List(offset, limit int) ([]models.License, error)
	Count() (int64, error)
}

// SaleRepository defines the interface for the append-only sales log.
type SaleRepository interface {
	Create(sale *models.Sale) error
	List(offset, limit int) ([]models.Sale, error)
	ListByJukuID(jukuID uint, offset, limit int) ([]models.Sale, error)
	Count() (int64, error)
	CountByJukuID(jukuID uint) (int64, error)
	TotalAmount() (int64, error)
	TotalAmountByJukuID(jukuID uint) (int64, error)
	MonthlyTotals(jukuID uint, months int) ([]MonthlySales, error)
	MonthlyTotalsAll(months int) ([]MonthlySales, error)
}

// JukuRepository defines the interface for tenant (cram school) operations.
type JukuRepository interface {
	Create(juku *models.Juku) error
	GetByID(id uint) (*models.Juku, error)
	GetByCode(code string) (*models.Juku, error)
	GetAll() ([]models.Juku, error)
	Update(juku *models.Juku) error
	Delete(id uint) error
	Count() (int64, error)
}

// MonthlySales is one month of aggregated sale revenue.
type MonthlySales struct {
	Year      int
	Month     int
	SaleCount int64
	Total     int64
}

// Repositories struct holds all repository instances
type Repositories struct {
	User    UserRepository
	Subject SubjectRepository
	Grade   GradeRepository
	Video   VideoRepository
	License LicenseRepository
	Sale    SaleRepository
	Juku    JukuRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Subject: NewSubjectRepository(db),
		Grade:   NewGradeRepository(db),
		Video:   NewVideoRepository(db),
		License: NewLicenseRepository(db),
		Sale:    NewSaleRepository(db),
		Juku:    NewJukuRepository(db),
	}
}
