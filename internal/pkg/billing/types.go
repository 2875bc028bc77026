package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CheckoutMetadata is the typed envelope carried on every checkout session.
// It is the only linkage between a hosted payment session and local rows, so
// it is validated at both ends: when the session is created and when the
// completed event comes back on the webhook.
type CheckoutMetadata struct {
	UserID     uint
	JukuID     uint // 0 = no tenant attribution
	SchoolCode string
	Locale     string
	Plan       string
}

// Encode renders the envelope as the string map the payment processor stores.
func (m CheckoutMetadata) Encode() map[string]string {
	md := map[string]string{
		"user_id": strconv.FormatUint(uint64(m.UserID), 10),
		"locale":  m.Locale,
		"plan":    m.Plan,
	}
	if m.JukuID != 0 {
		md["juku_id"] = strconv.FormatUint(uint64(m.JukuID), 10)
	}
	if m.SchoolCode != "" {
		md["school_code"] = m.SchoolCode
	}
	return md
}

// DecodeCheckoutMetadata parses and validates the metadata bag from a
// checkout session. A missing or unparsable user_id fails with
// ErrMissingMetadata; juku_id is optional and ignored when malformed.
func DecodeCheckoutMetadata(md map[string]string) (CheckoutMetadata, error) {
	out := CheckoutMetadata{
		SchoolCode: strings.TrimSpace(md["school_code"]),
		Locale:     strings.TrimSpace(md["locale"]),
		Plan:       strings.TrimSpace(md["plan"]),
	}

	raw := strings.TrimSpace(md["user_id"])
	if raw == "" {
		return out, fmt.Errorf("%w: user_id", ErrMissingMetadata)
	}
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || userID == 0 {
		return out, fmt.Errorf("%w: user_id %q", ErrMissingMetadata, raw)
	}
	out.UserID = uint(userID)

	if rawJuku := strings.TrimSpace(md["juku_id"]); rawJuku != "" {
		if jukuID, err := strconv.ParseUint(rawJuku, 10, 32); err == nil {
			out.JukuID = uint(jukuID)
		}
	}

	return out, nil
}

// WebhookEventInput is the normalized input for webhook ledger persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}

// CheckoutCompletedInput is the normalized checkout.session.completed event.
// ProviderEventID keys the sale row so re-applying the event cannot append a
// second sale.
type CheckoutCompletedInput struct {
	ProviderEventID  string
	Metadata         CheckoutMetadata
	StripeCustomerID string
	AmountTotal      int64
}

// SubscriptionUpdatedInput is the normalized customer.subscription.updated
// event. The event carries no user reference, only the payment customer id.
type SubscriptionUpdatedInput struct {
	StripeCustomerID  string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
}

// SubscriptionDeletedInput is the normalized customer.subscription.deleted
// event.
type SubscriptionDeletedInput struct {
	StripeCustomerID string
}
