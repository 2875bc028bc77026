package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sciencedream/jukustream/app/repository"
	"github.com/sciencedream/jukustream/internal/pkg/usercontext"
)

// HandleSubscriptionStatus reports the viewer's license state. The catalog
// UI polls this to decide whether to gate playback.
func HandleSubscriptionStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	factory := repository.GetGlobalFactory()
	user, err := factory.GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	response := fiber.Map{
		"is_subscribed": user.IsSubscribed,
		"license":       nil,
	}

	now := time.Now()
	license, err := factory.GetLicenseRepository().GetByUserID(userCtx.UserID)
	switch {
	case err == nil:
		response["license"] = licenseResponse(license, now)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No license yet; is_subscribed stays whatever the user row says.
	default:
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load license")
	}

	return c.JSON(response)
}

// HandleSubscribeComplete is the landing endpoint after a hosted checkout.
// The license itself is written by webhook reconciliation, which may lag the
// redirect by a few seconds; this endpoint only reports what has landed.
func HandleSubscribeComplete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	now := time.Now()
	license, err := repository.GetGlobalFactory().GetLicenseRepository().
		GetValidByUserID(userCtx.UserID, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{
				"status":  "pending",
				"message": "Payment received, license activation in progress",
			})
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load license")
	}

	return c.JSON(fiber.Map{
		"status":  "active",
		"license": licenseResponse(license, now),
	})
}
