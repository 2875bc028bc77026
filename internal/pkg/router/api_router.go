package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/sciencedream/jukustream/app/controllers"
	"github.com/sciencedream/jukustream/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// The webhook receiver stays outside the rate limiter; the payment
	// processor controls delivery and retries on 429 look like failures.
	app.Post("/webhooks/stripe", h.deps.Webhook.HandleStripeWebhook)

	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// auth
	v1.Post("/auth/signup", controllers.HandleSignup)
	v1.Post("/auth/login", controllers.HandleLogin)
	v1.Post("/auth/logout", controllers.HandleLogout)
	v1.Get("/me", middleware.RequireAuth, controllers.HandleMe)

	// catalog
	v1.Get("/subjects", controllers.HandleListSubjects)
	v1.Get("/subjects/:id/grades", controllers.HandleListGrades)
	v1.Get("/grades/:id/videos", controllers.HandleListVideos)
	v1.Get("/videos/:uuid", controllers.HandleGetVideo)

	// payments
	v1.Post("/checkout", middleware.RequireAuth, h.deps.Checkout.HandleCreateCheckout)
	v1.Post("/billing-portal", middleware.RequireAuth, h.deps.Checkout.HandleBillingPortal)
	v1.Post("/subscription/status", middleware.RequireAuth, controllers.HandleSubscriptionStatus)
	v1.Post("/subscribe/complete", middleware.RequireAuth, controllers.HandleSubscribeComplete)

	// admin dashboard
	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Get("/stats", controllers.HandleAdminStats)
	admin.Get("/subjects", controllers.HandleAdminListSubjects)
	admin.Post("/subjects", controllers.HandleAdminCreateSubject)
	admin.Put("/subjects/:id", controllers.HandleAdminUpdateSubject)
	admin.Delete("/subjects/:id", controllers.HandleAdminDeleteSubject)
	admin.Post("/grades", controllers.HandleAdminCreateGrade)
	admin.Put("/grades/:id", controllers.HandleAdminUpdateGrade)
	admin.Delete("/grades/:id", controllers.HandleAdminDeleteGrade)
	admin.Post("/videos", controllers.HandleAdminCreateVideo)
	admin.Put("/videos/:id", controllers.HandleAdminUpdateVideo)
	admin.Delete("/videos/:id", controllers.HandleAdminDeleteVideo)
	admin.Get("/users", controllers.HandleAdminListUsers)
	admin.Get("/jukus", controllers.HandleAdminListJukus)
	admin.Post("/jukus", controllers.HandleAdminCreateJuku)
	admin.Put("/jukus/:id", controllers.HandleAdminUpdateJuku)
	admin.Delete("/jukus/:id", controllers.HandleAdminDeleteJuku)
	admin.Get("/sales", controllers.HandleAdminListSales)
	admin.Get("/payouts", controllers.HandleAdminPayouts)
	admin.Post("/invoices/send", controllers.HandleAdminSendInvoices)

	// juku dashboard
	juku := v1.Group("/juku", middleware.RequireJuku)
	juku.Get("/sales", controllers.HandleJukuSales)
	juku.Get("/sales/monthly", controllers.HandleJukuMonthlySales)
	juku.Get("/students", controllers.HandleJukuStudents)
	juku.Post("/invoice/send", controllers.HandleJukuInvoiceSend)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
