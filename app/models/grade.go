package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Grade belongs to a subject and groups the videos students license.
// StripePriceID is the recurring price used when checking out this grade.
type Grade struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubjectID     uint      `gorm:"not null;index" json:"subject_id" validate:"required"`
	Subject       *Subject  `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	Name          string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Locale        string    `gorm:"type:varchar(8);not null;default:'ja';index" json:"locale" validate:"required,max=8"`
	StripePriceID string    `gorm:"type:varchar(191);default:''" json:"stripe_price_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (g *Grade) Validate() error {
	v := validator.New()

	return v.Struct(g)
}
