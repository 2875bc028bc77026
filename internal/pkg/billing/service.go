package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sciencedream/jukustream/app/models"
	"github.com/sciencedream/jukustream/internal/pkg/monetization"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// Service translates payment-processor lifecycle events into local license,
// user and sale state, exactly once per event. The dedup ledger row is
// written before any side effect; the per-event writes run in one DB
// transaction so a failure never leaves a half-applied event behind.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// RecordWebhookEvent persists the dedup ledger row idempotently. The second
// return reports whether the row was newly created; a duplicate delivery
// returns the stored row so callers can decide whether to retry processing.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" || strings.TrimSpace(in.ProviderEventID) == "" {
		return false, nil, errors.New("provider and provider_event_id are required")
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: strings.TrimSpace(in.ProviderEventID),
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// Dispatch applies the state transition for one event. Unrecognized event
// kinds are accepted and ignored.
func (s *Service) Dispatch(ctx context.Context, providerEventID, eventType string, data []byte) error {
	switch eventType {
	case "checkout.session.completed":
		in, err := parseCheckoutCompleted(data)
		if err != nil {
			return err
		}
		in.ProviderEventID = providerEventID
		return s.ApplyCheckoutCompleted(ctx, in)
	case "customer.subscription.updated":
		in, err := parseSubscriptionUpdated(data)
		if err != nil {
			return err
		}
		return s.ApplySubscriptionUpdated(ctx, in)
	case "customer.subscription.deleted":
		in, err := parseSubscriptionDeleted(data)
		if err != nil {
			return err
		}
		return s.ApplySubscriptionDeleted(ctx, in)
	default:
		return nil
	}
}

// ApplyCheckoutCompleted marks the buyer as paid, creates or refreshes the
// license and appends the sale, all in one transaction. The sale insert is
// keyed on the provider event id, so re-applying the same event (repair job,
// redelivery racing the first attempt) cannot append a second sale.
func (s *Service) ApplyCheckoutCompleted(ctx context.Context, in CheckoutCompletedInput) error {
	_ = ctx
	strategy := monetization.ByPlan(in.Metadata.Plan)
	now := time.Now()
	expiresAt := now.Add(strategy.LicenseDuration())

	err := s.repo.Transaction(func(repo Repository) error {
		if err := repo.MarkUserSubscribed(in.Metadata.UserID, in.StripeCustomerID); err != nil {
			return fmt.Errorf("mark user subscribed: %w", err)
		}

		license, err := repo.FindLicenseByUserID(in.Metadata.UserID)
		switch {
		case err == nil:
			license.StripeCustomerID = in.StripeCustomerID
			license.LicenseType = strategy.LicenseType()
			license.IsCanceled = false
			license.ExpiresAt = expiresAt
			if err := repo.SaveLicense(license); err != nil {
				return fmt.Errorf("refresh license: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			license = &models.License{
				UserID:           in.Metadata.UserID,
				GradeID:          models.AllAccessGradeID,
				LicenseType:      strategy.LicenseType(),
				StripeCustomerID: in.StripeCustomerID,
				PurchasedAt:      now,
				ExpiresAt:        expiresAt,
				IsCanceled:       false,
			}
			if err := repo.CreateLicense(license); err != nil {
				return fmt.Errorf("create license: %w", err)
			}
		default:
			return fmt.Errorf("license lookup: %w", err)
		}

		sale := &models.Sale{
			UserID:          in.Metadata.UserID,
			LicenseType:     strategy.LicenseType(),
			Amount:          in.AmountTotal,
			ProviderEventID: in.ProviderEventID,
		}
		if in.Metadata.JukuID != 0 {
			jukuID := in.Metadata.JukuID
			sale.JukuID = &jukuID
		}
		if err := repo.CreateSale(sale); err != nil {
			return fmt.Errorf("record sale: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

// ApplySubscriptionUpdated recomputes the license expiry from the
// processor-reported period end and mirrors the cancel-at-period-end flag.
// Matching runs on the payment customer id; the event carries no user ref.
func (s *Service) ApplySubscriptionUpdated(ctx context.Context, in SubscriptionUpdatedInput) error {
	_ = ctx
	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	if in.CurrentPeriodEnd != nil {
		expiresAt = *in.CurrentPeriodEnd
	}

	affected, err := s.repo.UpdateLicensesByStripeCustomerID(in.StripeCustomerID, map[string]interface{}{
		"is_canceled": in.CancelAtPeriodEnd,
		"expires_at":  expiresAt,
	})
	if err != nil {
		return fmt.Errorf("%w: update licenses: %v", ErrStoreWrite, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: no license for customer %s", ErrNotFound, in.StripeCustomerID)
	}
	return nil
}

// ApplySubscriptionDeleted revokes access immediately.
func (s *Service) ApplySubscriptionDeleted(ctx context.Context, in SubscriptionDeletedInput) error {
	_ = ctx
	affected, err := s.repo.UpdateLicensesByStripeCustomerID(in.StripeCustomerID, map[string]interface{}{
		"is_canceled": true,
		"expires_at":  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("%w: revoke licenses: %v", ErrStoreWrite, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: no license for customer %s", ErrNotFound, in.StripeCustomerID)
	}
	return nil
}

// repairInFlightAge is how long an unprocessed ledger row is presumed to
// still be in flight on its original delivery. The repair job only picks up
// unmarked rows older than this, so it never races a live dispatch.
const repairInFlightAge = 10 * time.Minute

// ReprocessFailedEvents re-applies ledger rows whose processing never
// completed. Sale writes are keyed on the event id, so re-applying cannot
// double-append; the repair job can run as often as it likes. Returns how
// many events were repaired.
func (s *Service) ReprocessFailedEvents(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	events, err := s.repo.ListFailedWebhookEvents(time.Now().Add(-repairInFlightAge), limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, event := range events {
		var envelope stripe.Event
		if err := json.Unmarshal([]byte(event.PayloadJSON), &envelope); err != nil {
			_ = s.repo.MarkWebhookProcessed(event.ID, fmt.Sprintf("unparsable payload: %v", err))
			continue
		}
		dispatchErr := s.Dispatch(ctx, event.ProviderEventID, event.EventType, envelope.Data.Raw)
		if markErr := s.MarkWebhookProcessed(ctx, event.ID, dispatchErr); markErr != nil {
			return repaired, markErr
		}
		if dispatchErr == nil {
			repaired++
		}
	}
	return repaired, nil
}

func parseCheckoutCompleted(data []byte) (CheckoutCompletedInput, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return CheckoutCompletedInput{}, fmt.Errorf("unmarshal checkout session: %w", err)
	}

	meta, err := DecodeCheckoutMetadata(session.Metadata)
	if err != nil {
		return CheckoutCompletedInput{}, err
	}

	in := CheckoutCompletedInput{
		Metadata:    meta,
		AmountTotal: session.AmountTotal,
	}
	if session.Customer != nil {
		in.StripeCustomerID = session.Customer.ID
	}
	return in, nil
}

func parseSubscriptionUpdated(data []byte) (SubscriptionUpdatedInput, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return SubscriptionUpdatedInput{}, fmt.Errorf("unmarshal subscription: %w", err)
	}

	in := SubscriptionUpdatedInput{
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		in.StripeCustomerID = sub.Customer.ID
	}

	// Older API versions carry current_period_end on the subscription, newer
	// ones moved it onto the items. Accept both, fall back to +30 days.
	var aux struct {
		CurrentPeriodEnd int64 `json:"current_period_end"`
	}
	if err := json.Unmarshal(data, &aux); err == nil && aux.CurrentPeriodEnd > 0 {
		t := time.Unix(aux.CurrentPeriodEnd, 0)
		in.CurrentPeriodEnd = &t
	} else if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd > 0 {
		t := time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0)
		in.CurrentPeriodEnd = &t
	}

	return in, nil
}

func parseSubscriptionDeleted(data []byte) (SubscriptionDeletedInput, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return SubscriptionDeletedInput{}, fmt.Errorf("unmarshal subscription: %w", err)
	}

	in := SubscriptionDeletedInput{}
	if sub.Customer != nil {
		in.StripeCustomerID = sub.Customer.ID
	}
	return in, nil
}
