package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/sciencedream/jukustream/app/repository"
	"github.com/sciencedream/jukustream/internal/pkg/billing"
	"github.com/sciencedream/jukustream/internal/pkg/monetization"
	"github.com/sciencedream/jukustream/internal/pkg/usercontext"
)

// CheckoutController opens hosted payment sessions. The payment client and
// the monetization registry are injected at startup so handlers never touch
// package-level processor state.
type CheckoutController struct {
	payments billing.PaymentClient
	plans    *monetization.Registry
	baseURL  string
}

// NewCheckoutController creates a checkout controller.
func NewCheckoutController(payments billing.PaymentClient, plans *monetization.Registry, baseURL string) *CheckoutController {
	return &CheckoutController{
		payments: payments,
		plans:    plans,
		baseURL:  baseURL,
	}
}

type createCheckoutRequest struct {
	GradeID uint `json:"grade_id"`
}

// HandleCreateCheckout opens a checkout session for one grade's price and
// returns the redirect URL. The session carries the typed metadata envelope
// that webhook reconciliation reads back later.
func (cc *CheckoutController) HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var req createCheckoutRequest
	if err := c.BodyParser(&req); err != nil || req.GradeID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "grade_id is required")
	}

	factory := repository.GetGlobalFactory()
	grade, err := factory.GetGradeRepository().GetByID(req.GradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Grade not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load grade")
	}
	if grade.StripePriceID == "" {
		return jsonError(c, fiber.StatusUnprocessableEntity, "checkout_init_failed", "Grade has no price configured")
	}

	user, err := factory.GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	locale := user.Locale
	if locale == "" {
		locale = requestLocale(c)
	}
	strategy := cc.plans.ForLocale(locale)

	metadata := billing.CheckoutMetadata{
		UserID: user.ID,
		Locale: locale,
		Plan:   strategy.Plan(),
	}
	if user.JukuID != nil {
		metadata.JukuID = *user.JukuID
		if juku, err := factory.GetJukuRepository().GetByID(*user.JukuID); err == nil {
			metadata.SchoolCode = juku.Code
		}
	}

	url, err := cc.payments.CreateCheckoutSession(c.Context(), billing.CheckoutSessionParams{
		PriceID:       grade.StripePriceID,
		Mode:          strategy.CheckoutMode(),
		CustomerEmail: user.Email,
		Locale:        locale,
		SuccessURL:    cc.baseURL + "/subscribe/complete?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     cc.baseURL + "/subscribe/cancel",
		Metadata:      metadata,
	})
	if err != nil {
		log.Errorf("checkout session creation failed for user %d: %v", user.ID, err)
		return jsonError(c, fiber.StatusBadGateway, "checkout_init_failed", "Failed to create checkout session")
	}

	return c.JSON(fiber.Map{"checkout_url": url})
}

// HandleBillingPortal opens a billing portal session for the logged-in user.
func (cc *CheckoutController) HandleBillingPortal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}
	if user.StripeCustomerID == "" {
		return jsonError(c, fiber.StatusNotFound, "not_found", "No payment customer on record")
	}

	url, err := cc.payments.CreateBillingPortalSession(c.Context(), billing.PortalSessionParams{
		StripeCustomerID: user.StripeCustomerID,
		ReturnURL:        cc.baseURL + "/account",
	})
	if err != nil {
		log.Errorf("billing portal session failed for user %d: %v", user.ID, err)
		return jsonError(c, fiber.StatusBadGateway, "checkout_init_failed", "Failed to create billing portal session")
	}

	return c.JSON(fiber.Map{"portal_url": url})
}
