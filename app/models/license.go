package models

import "time"

// AllAccessGradeID is the sentinel grade granting access to every grade's
// videos. Subscription checkouts always create licenses against it.
const AllAccessGradeID = 999

const (
	LicenseTypeSubscription = "subscription"
	LicenseTypeOneTime      = "onetime"
)

// License grants a user time-bounded access to one grade's videos (or all of
// them via the sentinel grade id). Rows are never hard-deleted; expiry is
// logical and cancellation is a flag flipped by webhook reconciliation.
type License struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	GradeID          uint      `gorm:"not null;index" json:"grade_id"`
	LicenseType      string    `gorm:"type:varchar(50);not null;default:'subscription'" json:"license_type"`
	StripeCustomerID string    `gorm:"type:varchar(191);default:'';index" json:"-"`
	PurchasedAt      time.Time `gorm:"type:timestamp;not null" json:"purchased_at"`
	ExpiresAt        time.Time `gorm:"type:timestamp;not null;index" json:"expires_at"`
	IsCanceled       bool      `gorm:"default:false" json:"is_canceled"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsValidAt reports whether the license still grants access at the given
// time. An expired license never grants access, whatever the cancellation
// flag says; a canceled subscription is denied even before its expiry, while
// a canceled one-time license stays valid until it expires.
func (l *License) IsValidAt(now time.Time) bool {
	if !l.ExpiresAt.After(now) {
		return false
	}
	if l.LicenseType == LicenseTypeSubscription && l.IsCanceled {
		return false
	}
	return true
}

// CoversGrade reports whether the license unlocks the given grade.
func (l *License) CoversGrade(gradeID uint) bool {
	return l.GradeID == AllAccessGradeID || l.GradeID == gradeID
}
