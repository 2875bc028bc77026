package repository

import (
	"github.com/sciencedream/jukustream/app/models"
	"gorm.io/gorm"
)

// saleRepository implements the SaleRepository interface
type saleRepository struct {
	db *gorm.DB
}

// NewSaleRepository creates a new sale repository instance
func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(sale *models.Sale) error {
	return r.db.Create(sale).Error
}

func (r *saleRepository) List(offset, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&sales).Error
	return sales, err
}

func (r *saleRepository) ListByJukuID(jukuID uint, offset, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.db.Where("juku_id = ?", jukuID).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&sales).Error
	return sales, err
}

func (r *saleRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Sale{}).Count(&count).Error
	return count, err
}

func (r *saleRepository) CountByJukuID(jukuID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Sale{}).Where("juku_id = ?", jukuID).Count(&count).Error
	return count, err
}

func (r *saleRepository) TotalAmount() (int64, error) {
	var total int64
	err := r.db.Model(&models.Sale{}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *saleRepository) TotalAmountByJukuID(jukuID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.Sale{}).
		Where("juku_id = ?", jukuID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// MonthlyTotals aggregates one cram school's revenue per calendar month,
// newest first, limited to the last `months` months that had sales.
func (r *saleRepository) MonthlyTotals(jukuID uint, months int) ([]MonthlySales, error) {
	return r.monthlyTotals(r.db.Where("juku_id = ?", jukuID), months)
}

// MonthlyTotalsAll aggregates platform-wide revenue per calendar month.
func (r *saleRepository) MonthlyTotalsAll(months int) ([]MonthlySales, error) {
	return r.monthlyTotals(r.db, months)
}

func (r *saleRepository) monthlyTotals(tx *gorm.DB, months int) ([]MonthlySales, error) {
	if months <= 0 {
		months = 12
	}
	var rows []MonthlySales
	err := tx.Model(&models.Sale{}).
		Select("YEAR(created_at) AS year, MONTH(created_at) AS month, COUNT(*) AS sale_count, COALESCE(SUM(amount), 0) AS total").
		Group("YEAR(created_at), MONTH(created_at)").
		Order("year DESC, month DESC").
		Limit(months).
		Scan(&rows).Error
	return rows, err
}
