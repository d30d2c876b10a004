package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/tawandakembo/PikichaPay/app/controllers"
	"github.com/tawandakembo/PikichaPay/internal/pkg/cache"
	"github.com/tawandakembo/PikichaPay/internal/pkg/env"
	"github.com/tawandakembo/PikichaPay/internal/pkg/middleware"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Use(middleware.AuthMiddleware(middleware.NewHTTPTokenVerifier()))

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Pikicha payments API",
		})
	})

	v1 := api.Group("/v1")

	// Provider callbacks: no auth, authenticity comes from signatures.
	payments := v1.Group("/payments")
	payments.Post("/webhook/ecocash", controllers.HandleEcocashWebhook)
	payments.Post("/webhook/paynow", controllers.HandlePaynowWebhook)
	payments.Post("/initiate", middleware.RequireAuth, controllers.HandleInitiatePayment)
	payments.Get("/status", middleware.RequireAuth, controllers.HandlePaymentStatus)

	orders := v1.Group("/orders", middleware.RequireAuth)
	orders.Post("/", controllers.HandleCreateOrder)
	orders.Get("/", controllers.HandleListMyOrders)
	orders.Get("/:id", controllers.HandleGetOrder)

	subscriptions := v1.Group("/subscriptions", middleware.RequireAuth)
	subscriptions.Get("/me", controllers.HandleGetMySubscription)
	subscriptions.Delete("/me", controllers.HandleCancelMySubscription)

	v1.Get("/transactions", middleware.RequireAuth, controllers.HandleListMyTransactions)
	v1.Get("/transactions/:id", middleware.RequireAuth, controllers.HandleGetTransaction)

	// The main app spends a credit here before each picture generation.
	v1.Post("/credits/consume", middleware.RequireAuth, controllers.HandleConsumeCredit)

	// Admin surface: user-token admins or machine callers with the
	// shared key both pass.
	admin := v1.Group("/admin", middleware.RequireAdminOrKey())
	admin.Get("/orders", controllers.HandleAdminListOrders)
	admin.Put("/orders/:id/fulfillment", controllers.HandleAdminSetFulfillment)
	admin.Post("/orders/:id/payment-failed", controllers.HandleAdminFailOrderPayment)
	admin.Post("/subscriptions/sweep", controllers.HandleAdminSweepSubscriptions)
	admin.Get("/users", controllers.HandleAdminGetUser)
	admin.Get("/stats", controllers.HandleAdminStats)
}

// newLimiterStorage backs the rate limiter with Redis so limits hold
// across instances. Database 1 keeps limiter keys out of the cache DB.
func newLimiterStorage() *redisstorage.Storage {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")

	if client := cache.GetClient(); client != nil {
		addr := client.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
