package billing

import (
	"time"

	"github.com/sciencedream/jukustream/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the billing service.
type Repository interface {
	// Transaction runs fn against a repository bound to a single DB
	// transaction; the per-event writes (user, license, sale) go through it.
	Transaction(fn func(Repository) error) error

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	// ListFailedWebhookEvents returns rows whose processing failed, plus
	// unmarked rows created before the cutoff (rows newer than the cutoff
	// may still be in flight on their original delivery).
	ListFailedWebhookEvents(unmarkedBefore time.Time, limit int) ([]models.WebhookEvent, error)

	MarkUserSubscribed(userID uint, stripeCustomerID string) error
	FindLicenseByUserID(userID uint) (*models.License, error)
	CreateLicense(license *models.License) error
	SaveLicense(license *models.License) error
	UpdateLicensesByStripeCustomerID(stripeCustomerID string, updates map[string]interface{}) (int64, error)
	CreateSale(sale *models.Sale) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) ListFailedWebhookEvents(unmarkedBefore time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.
		Where("(processed_at IS NULL AND created_at < ?) OR processing_error <> ''", unmarkedBefore).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *gormRepository) MarkUserSubscribed(userID uint, stripeCustomerID string) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_subscribed":      true,
			"stripe_customer_id": stripeCustomerID,
		}).Error
}

func (r *gormRepository) FindLicenseByUserID(userID uint) (*models.License, error) {
	var license models.License
	err := r.db.Where("user_id = ?", userID).First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *gormRepository) CreateLicense(license *models.License) error {
	return r.db.Create(license).Error
}

func (r *gormRepository) SaveLicense(license *models.License) error {
	return r.db.Save(license).Error
}

func (r *gormRepository) UpdateLicensesByStripeCustomerID(stripeCustomerID string, updates map[string]interface{}) (int64, error) {
	tx := r.db.Model(&models.License{}).
		Where("stripe_customer_id = ?", stripeCustomerID).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// CreateSale inserts the sale unless one already exists for the same
// provider event id.
func (r *gormRepository) CreateSale(sale *models.Sale) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(sale).Error
}
