package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Video is a single lecture. URL points at the external host (YouTube embed);
// the storefront only ever hands it out to licensed viewers.
type Video struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        string    `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	GradeID     uint      `gorm:"not null;index" json:"grade_id" validate:"required"`
	Grade       *Grade    `gorm:"foreignKey:GradeID" json:"grade,omitempty"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=1,max=200"`
	URL         string    `gorm:"type:varchar(500);not null" json:"url" validate:"required,url,max=500"`
	Description string    `gorm:"type:text" json:"description"`
	Locale      string    `gorm:"type:varchar(8);not null;default:'ja';index" json:"locale" validate:"required,max=8"`
	ViewCount   int64     `gorm:"default:0" json:"view_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v *Video) Validate() error {
	return validator.New().Struct(v)
}

// BeforeCreate assigns a UUID when none is set
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.UUID == "" {
		v.UUID = uuid.New().String()
	}
	return nil
}
