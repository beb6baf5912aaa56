package handlers

import (
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Auth     *services.AuthService
	Products *services.ProductService
	Orders   *services.OrderService
	Users    *services.UserService
	Log      *slog.Logger
	// AccessLog receives one line per request. Nil disables the access log.
	AccessLog io.Writer
	// Health reports the state of optional backends, e.g. {"events": "rabbitmq"}.
	Health map[string]string
}

// NewApp builds the Fiber app with every route under /api/v1, plus /health and /metrics.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ErrorHandler: ErrorHandler(d.Log),
	})

	app.Use(recover.New())
	if d.AccessLog != nil {
		app.Use(logger.New(logger.Config{Output: d.AccessLog}))
	}
	app.Use(middleware.Metrics())

	app.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		}
		for k, v := range d.Health {
			body[k] = v
		}
		return c.JSON(body)
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authRequired := middleware.AuthRequired(d.Auth, d.Log)
	adminRequired := middleware.AdminRequired()

	apiV1 := app.Group("/api/v1")
	NewAuthHandler(d.Auth).RegisterRoutes(apiV1, authRequired)
	NewProductHandler(d.Products).RegisterRoutes(apiV1, authRequired, adminRequired)
	NewOrderHandler(d.Orders).RegisterRoutes(apiV1, authRequired, adminRequired)
	NewUserHandler(d.Users).RegisterRoutes(apiV1, authRequired, adminRequired)

	return app
}
