package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sciencedream/jukustream/internal/pkg/usercontext"
)

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(usercontext.KeyFromProtected); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// parseUintParam reads a numeric path parameter; 0 means missing or invalid.
func parseUintParam(c *fiber.Ctx, name string) uint {
	v, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

// requestLocale resolves the storefront locale: explicit query param first,
// then the logged-in user's locale, then the default.
func requestLocale(c *fiber.Ctx) string {
	if l := c.Query("locale"); l != "" {
		return l
	}
	if userCtx := usercontext.GetUserContext(c); userCtx.Locale != "" {
		return userCtx.Locale
	}
	return "ja"
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}
