package models

import "time"

// Sale is an append-only ledger row written once per successful checkout or
// renewal. It is never updated; juku payouts are aggregated from it. Every
// sale originates from exactly one webhook event; the unique event id makes
// the insert idempotent under replays and overlapping deliveries.
type Sale struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	JukuID          *uint     `gorm:"index" json:"juku_id,omitempty"`
	GradeID         *uint     `gorm:"index" json:"grade_id,omitempty"`
	LicenseType     string    `gorm:"type:varchar(50);not null;default:'default'" json:"license_type"`
	Amount          int64     `gorm:"not null;default:0" json:"amount"`
	ProviderEventID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_sales_provider_event" json:"-"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
