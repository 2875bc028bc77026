package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/sciencedream/jukustream/app/models"
	"github.com/sciencedream/jukustream/internal/pkg/billing"
)

// WebhookController receives payment-processor events. The flow is
// ledger-first: signature check, then the dedup ledger row, then the domain
// writes in one transaction, then the processed mark. A failure after the
// ledger row leaves a repairable row behind instead of a silent partial
// update.
type WebhookController struct {
	service       *billing.Service
	webhookSecret string
}

// NewWebhookController creates a webhook controller.
func NewWebhookController(service *billing.Service, webhookSecret string) *WebhookController {
	return &WebhookController{
		service:       service,
		webhookSecret: webhookSecret,
	}
}

// HandleStripeWebhook processes one inbound Stripe event.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	// The body must stay raw; the signature covers the exact bytes.
	payload := c.Body()
	signature := c.Get("Stripe-Signature")

	event, err := billing.VerifyStripeEvent(payload, signature, wc.webhookSecret)
	if err != nil {
		// Nothing is persisted for an unverified payload.
		log.Warnf("webhook signature verification failed: %v", err)
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Webhook signature verification failed")
	}

	created, stored, err := wc.service.RecordWebhookEvent(c.Context(), billing.WebhookEventInput{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
	})
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "store_write_failed", "Failed to record event")
	}

	// Only the delivery that created the ledger row dispatches. A duplicate
	// of a fully processed event is an idempotent replay; a duplicate of an
	// unmarked row is racing the original delivery (or the original died),
	// and recovery belongs to the repair job, never a second live dispatch.
	if !created {
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	}

	dispatchErr := wc.service.Dispatch(c.Context(), event.ID, string(event.Type), event.Data.Raw)
	if markErr := wc.service.MarkWebhookProcessed(c.Context(), stored.ID, dispatchErr); markErr != nil {
		log.Errorf("failed to mark webhook %s processed: %v", event.ID, markErr)
	}

	if dispatchErr != nil {
		log.Errorf("webhook %s (%s) processing failed: %v", event.ID, event.Type, dispatchErr)
		if errors.Is(dispatchErr, billing.ErrMissingMetadata) {
			// Non-retryable: the checkout session was created without the
			// required envelope. The ledger row keeps the evidence.
			return jsonError(c, fiber.StatusBadRequest, "missing_metadata", dispatchErr.Error())
		}
		if errors.Is(dispatchErr, billing.ErrNotFound) {
			// No local license matches the payment customer. The ledger row
			// keeps the evidence and the repair job retries once the
			// out-of-order checkout event lands.
			return jsonError(c, fiber.StatusBadRequest, "not_found", dispatchErr.Error())
		}
		// 5xx so the processor redelivers; the repair job also retries.
		return jsonError(c, fiber.StatusInternalServerError, "store_write_failed", "Event processing failed")
	}

	return c.JSON(fiber.Map{"received": true})
}
