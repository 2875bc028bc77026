package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sciencedream/jukustream/app/controllers"
	"github.com/sciencedream/jukustream/internal/pkg/middleware"
	"github.com/sciencedream/jukustream/internal/pkg/oauth"
	"github.com/sciencedream/jukustream/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// OAuth flow lives outside the API group; Goth manages its own session
	// store on these paths.
	app.Get("/auth/:provider", controllers.HandleOAuthLogin)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
	app.Get("/auth/logout", controllers.HandleOAuthLogout)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
