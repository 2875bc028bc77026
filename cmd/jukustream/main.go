package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sciencedream/jukustream/app/controllers"
	"github.com/sciencedream/jukustream/app/repository"
	"github.com/sciencedream/jukustream/internal/pkg/billing"
	"github.com/sciencedream/jukustream/internal/pkg/cache"
	"github.com/sciencedream/jukustream/internal/pkg/database"
	"github.com/sciencedream/jukustream/internal/pkg/env"
	"github.com/sciencedream/jukustream/internal/pkg/jobqueue"
	"github.com/sciencedream/jukustream/internal/pkg/monetization"
	"github.com/sciencedream/jukustream/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// background workers: webhook repair, invoice emails, counter flush
	jobqueue.GetManager().Start()
	defer jobqueue.GetManager().Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())

	// Payment client and monetization registry are built once here and
	// injected into the controllers that need them.
	payments := billing.NewStripeClient(
		env.GetEnv("STRIPE_SECRET_KEY", ""),
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
	)
	plans := monetization.NewRegistry(
		strings.Split(env.GetEnv("SUBSCRIPTION_LOCALES", "ja"), ","),
	)
	baseURL := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if baseURL == "" {
		baseURL = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}

	deps := router.Deps{
		Checkout: controllers.NewCheckoutController(payments, plans, baseURL),
		Webhook: controllers.NewWebhookController(
			billing.NewServiceFromDB(database.GetDB()),
			env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		),
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "jukustream",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	if basePath := findBasePath(); basePath != "" {
		openAPICfg := swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}
		app.Use(swagger.New(openAPICfg))
	}

	// ROUTER
	router.InstallRouter(app, deps)

	return app
}

// findBasePath locates the project root relative to the working directory.
func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "public/docs"); !os.IsNotExist(err) {
			return path
		}
	}
	return ""
}
