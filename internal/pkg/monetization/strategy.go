package monetization

import (
	"strings"
	"time"

	"github.com/sciencedream/jukustream/app/models"
)

// Strategy describes how a storefront locale monetizes: recurring
// subscriptions or one-time purchases. A strategy is picked once per request
// locale from the registry built at startup, instead of re-branching on the
// locale string in every handler.
type Strategy interface {
	// Plan is the metadata label carried through checkout and read back by
	// webhook reconciliation.
	Plan() string
	// CheckoutMode is the payment-processor checkout mode.
	CheckoutMode() string
	// LicenseType is the label stored on licenses and sales.
	LicenseType() string
	// LicenseDuration is how long a freshly purchased or refreshed license
	// stays valid.
	LicenseDuration() time.Duration
}

type subscription struct{}

func (subscription) Plan() string                  { return models.LicenseTypeSubscription }
func (subscription) CheckoutMode() string          { return "subscription" }
func (subscription) LicenseType() string           { return models.LicenseTypeSubscription }
func (subscription) LicenseDuration() time.Duration { return 30 * 24 * time.Hour }

type oneTime struct{}

func (oneTime) Plan() string                  { return models.LicenseTypeOneTime }
func (oneTime) CheckoutMode() string          { return "payment" }
func (oneTime) LicenseType() string           { return models.LicenseTypeOneTime }
func (oneTime) LicenseDuration() time.Duration { return 365 * 24 * time.Hour }

var (
	Subscription Strategy = subscription{}
	OneTime      Strategy = oneTime{}
)

// Registry maps locales to their monetization strategy. Built once at
// startup; unknown locales fall back to the default strategy.
type Registry struct {
	byLocale map[string]Strategy
	fallback Strategy
}

// NewRegistry builds a registry where the given locales sell subscriptions
// and everything else sells one-time licenses.
func NewRegistry(subscriptionLocales []string) *Registry {
	byLocale := make(map[string]Strategy, len(subscriptionLocales))
	for _, l := range subscriptionLocales {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		byLocale[l] = Subscription
	}
	return &Registry{byLocale: byLocale, fallback: OneTime}
}

// ForLocale returns the strategy configured for a locale.
func (r *Registry) ForLocale(locale string) Strategy {
	if s, ok := r.byLocale[strings.ToLower(strings.TrimSpace(locale))]; ok {
		return s
	}
	return r.fallback
}

// ByPlan resolves the metadata plan label back to its strategy. Unknown
// labels resolve to the subscription strategy, matching the legacy webhook
// behavior of treating untagged checkouts as subscriptions.
func ByPlan(plan string) Strategy {
	if strings.ToLower(strings.TrimSpace(plan)) == models.LicenseTypeOneTime {
		return OneTime
	}
	return Subscription
}
