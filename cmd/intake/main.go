package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/casedesk/intake/cmd/intake/container"
	intakemw "github.com/casedesk/intake/cmd/intake/middleware"
	"github.com/casedesk/intake/cmd/intake/repository"
	"github.com/casedesk/intake/cmd/intake/routes"
	"github.com/casedesk/intake/common/bootstrap"
	"github.com/casedesk/intake/common/db"
	"github.com/casedesk/intake/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, queue, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "intake",
		bootstrap.WithDBInitHook(func(database *db.DB) error {
			return repository.InitSchema(database)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap intake: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(ctx, components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.Close()

	// Notification consumer runs in-process alongside the API
	if serviceContainer.Notifier != nil {
		if err := serviceContainer.Notifier.Start(ctx); err != nil {
			components.Logger.Error("failed to start notifier", "error", err)
			os.Exit(1)
		}
	}

	e := setupEcho()
	setupMiddleware(e, serviceContainer)
	setupHealthCheck(e, serviceContainer)
	registerRoutes(e, serviceContainer)

	srv := server.New("intake", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, c *container.Container) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: c.Components.Config.CORS.AllowedOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.PATCH, echo.OPTIONS},
	}))
	if c.Components.Telemetry != nil {
		e.Use(intakemw.Telemetry(c.Components.Telemetry))
	}
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		if err := c.Components.Health(ec.Request().Context()); err != nil {
			return ec.JSON(503, map[string]string{
				"status":  "degraded",
				"service": "intake",
			})
		}
		return ec.JSON(200, map[string]string{
			"status":  "ok",
			"service": "intake",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, c *container.Container) {
	routes.RegisterIntakeRoutes(e, c)
	routes.RegisterAdminRoutes(e, c)
}
