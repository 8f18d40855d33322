package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"github.com/akarpov87/userfleet/internal/config"
	"github.com/akarpov87/userfleet/internal/db"
	"github.com/akarpov87/userfleet/internal/handlers"
	"github.com/akarpov87/userfleet/internal/logger"
	"github.com/akarpov87/userfleet/internal/services"
)

const userCollection = "User"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := db.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		l.Fatal("failed to connect to mongodb", "error", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			l.Error("failed to disconnect from mongodb", "error", err)
		}
	}()

	col := client.Database(cfg.Mongo.Database).Collection(userCollection)
	if err := db.EnsureUserIndexes(ctx, col); err != nil {
		l.Fatal("failed to ensure indexes", "error", err)
	}

	userService := services.NewUserService(col, cfg.MaxCars, l)
	userHandler := handlers.NewUserHandler(userService)

	// Emails arrive percent-encoded in path segments, so the router
	// must unescape before matching and param extraction.
	app := fiber.New(fiber.Config{UnescapePath: true})
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	handlers.RegisterRoutes(app, userHandler)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			l.Fatal("server stopped", "error", err)
		}
	}()
	l.Info("server started", "port", cfg.Port)

	<-ctx.Done()
	l.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		l.Error("failed to shut down server", "error", err)
	}
}
