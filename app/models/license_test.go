package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLicenseIsValidAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		license License
		want    bool
	}{
		{
			name: "active subscription",
			license: License{
				LicenseType: LicenseTypeSubscription,
				ExpiresAt:   now.Add(24 * time.Hour),
			},
			want: true,
		},
		{
			name: "expired subscription",
			license: License{
				LicenseType: LicenseTypeSubscription,
				ExpiresAt:   now.Add(-time.Second),
			},
			want: false,
		},
		{
			name: "expired but not canceled never grants access",
			license: License{
				LicenseType: LicenseTypeSubscription,
				ExpiresAt:   now.Add(-24 * time.Hour),
				IsCanceled:  false,
			},
			want: false,
		},
		{
			name: "canceled subscription loses access before expiry",
			license: License{
				LicenseType: LicenseTypeSubscription,
				ExpiresAt:   now.Add(24 * time.Hour),
				IsCanceled:  true,
			},
			want: false,
		},
		{
			name: "canceled one-time keeps access until expiry",
			license: License{
				LicenseType: LicenseTypeOneTime,
				ExpiresAt:   now.Add(24 * time.Hour),
				IsCanceled:  true,
			},
			want: true,
		},
		{
			name: "expires exactly now",
			license: License{
				LicenseType: LicenseTypeSubscription,
				ExpiresAt:   now,
			},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.license.IsValidAt(now))
		})
	}
}

func TestLicenseCoversGrade(t *testing.T) {
	allAccess := License{GradeID: AllAccessGradeID}
	assert.True(t, allAccess.CoversGrade(1))
	assert.True(t, allAccess.CoversGrade(42))

	single := License{GradeID: 5}
	assert.True(t, single.CoversGrade(5))
	assert.False(t, single.CoversGrade(6))
}
