package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Subject is the top level of the catalog hierarchy (Subject -> Grade -> Video).
type Subject struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Locale       string    `gorm:"type:varchar(8);not null;default:'ja';index" json:"locale" validate:"required,max=8"`
	DisplayOrder int       `gorm:"default:0" json:"display_order"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subject) Validate() error {
	v := validator.New()

	return v.Struct(s)
}
