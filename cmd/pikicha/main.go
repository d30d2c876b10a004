package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tawandakembo/PikichaPay/app/controllers"
	"github.com/tawandakembo/PikichaPay/app/repository"
	"github.com/tawandakembo/PikichaPay/internal/pkg/cache"
	"github.com/tawandakembo/PikichaPay/internal/pkg/database"
	"github.com/tawandakembo/PikichaPay/internal/pkg/env"
	"github.com/tawandakembo/PikichaPay/internal/pkg/mail"
	"github.com/tawandakembo/PikichaPay/internal/pkg/notify"
	"github.com/tawandakembo/PikichaPay/internal/pkg/router"
)

func main() {
	app, queue := NewApplication()

	// graceful shutdown: drain notification workers before exiting
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		queue.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *notify.Queue) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.SetGlobalFactory(repository.NewFactory(database.GetDB()))

	// notification side channel
	queue := notify.NewQueue(cache.GetClient(), mail.SMTPMailer{}, 2)
	queue.Start()
	controllers.SetNotifier(notify.NewDispatcher(queue))

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // 1 MiB; this API moves JSON and form posts only
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app, queue
}
