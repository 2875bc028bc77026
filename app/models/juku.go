package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Juku is a cram school tenant; sales are attributed to it for payouts.
type Juku struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Code         string    `gorm:"type:varchar(50);uniqueIndex" json:"code" validate:"required,min=2,max=50"`
	ContactEmail string    `gorm:"type:varchar(200);default:''" json:"contact_email" validate:"omitempty,email"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *Juku) Validate() error {
	v := validator.New()

	return v.Struct(j)
}
