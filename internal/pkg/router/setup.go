package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sciencedream/jukustream/app/controllers"
)

// Router installs a set of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries the controllers that are constructed with injected clients
// at startup instead of package-level state.
type Deps struct {
	Checkout *controllers.CheckoutController
	Webhook  *controllers.WebhookController
}

func InstallRouter(app *fiber.App, deps Deps) {
	// Install HttpRouter first to initialize session store, oauth providers,
	// and the global UserContext middleware. Then register API routes which
	// depend on that middleware.
	setup(app, NewHttpRouter(), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
