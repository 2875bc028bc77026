package monetization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sciencedream/jukustream/app/models"
)

func TestRegistryForLocale(t *testing.T) {
	registry := NewRegistry([]string{"ja", " EN ", ""})

	assert.Equal(t, Subscription, registry.ForLocale("ja"))
	assert.Equal(t, Subscription, registry.ForLocale("JA"))
	assert.Equal(t, Subscription, registry.ForLocale("en"))
	assert.Equal(t, OneTime, registry.ForLocale("vi"))
	assert.Equal(t, OneTime, registry.ForLocale(""))
}

func TestByPlan(t *testing.T) {
	assert.Equal(t, OneTime, ByPlan(models.LicenseTypeOneTime))
	assert.Equal(t, OneTime, ByPlan(" ONETIME "))
	assert.Equal(t, Subscription, ByPlan(models.LicenseTypeSubscription))
	// Untagged checkouts default to the subscription path.
	assert.Equal(t, Subscription, ByPlan(""))
	assert.Equal(t, Subscription, ByPlan("garbage"))
}

func TestStrategyDurations(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, Subscription.LicenseDuration())
	assert.Equal(t, 365*24*time.Hour, OneTime.LicenseDuration())
	assert.Equal(t, "subscription", Subscription.CheckoutMode())
	assert.Equal(t, "payment", OneTime.CheckoutMode())
}
