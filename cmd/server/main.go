package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glsbox/backend/internal/config"
	"github.com/glsbox/backend/internal/database"
	"github.com/glsbox/backend/internal/handlers"
	"github.com/glsbox/backend/internal/middleware"
	"github.com/glsbox/backend/internal/services"
	"github.com/glsbox/backend/internal/storage"
	"github.com/glsbox/backend/pkg/logger"
	"github.com/glsbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	store, err := newObjectStore(cfg)
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}

	permissionService := services.NewPermissionService(db)
	commentService := services.NewCommentService(db)

	notifyService, err := services.NewNotifyService(db, cfg.Bot.Token, cfg.Server.HostURL)
	if err != nil {
		log.Fatalf("telegram bot initialization failed: %v", err)
	}
	go notifyService.Run()

	authHandler := handlers.NewAuthHandler(db)
	usersHandler := handlers.NewUsersHandler(db, permissionService)
	shadersHandler := handlers.NewShadersHandler(db, store, permissionService)
	commentsHandler := handlers.NewCommentsHandler(db, commentService, notifyService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 50 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	if cfg.Storage.Backend == "local" {
		app.Static("/blobs", cfg.Storage.LocalRoot)
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)

	api.Get("/users/me", authMiddleware.RequireAuth, authHandler.Me)

	userRoutes := api.Group("/users", authMiddleware.OptionalAuth)
	userRoutes.Get("/:id", usersHandler.Get)
	userRoutes.Patch("/:id", authMiddleware.RequireAuth, usersHandler.Update)
	userRoutes.Get("/:id/shaders", usersHandler.ListShaders)
	userRoutes.Get("/:id/comments", usersHandler.ListComments)
	userRoutes.Get("/:id/commented-shaders", usersHandler.CommentedShaders)

	shaderRoutes := api.Group("/shaders", authMiddleware.OptionalAuth)
	shaderRoutes.Post("/", authMiddleware.RequireAuth, shadersHandler.Create)
	shaderRoutes.Get("/", shadersHandler.List)
	shaderRoutes.Get("/:id", shadersHandler.Get)
	shaderRoutes.Patch("/:id", authMiddleware.RequireAuth, shadersHandler.Update)
	shaderRoutes.Delete("/:id", authMiddleware.RequireAuth, shadersHandler.Delete)
	shaderRoutes.Patch("/:id/publish", authMiddleware.RequireAuth, shadersHandler.Publish)
	shaderRoutes.Patch("/:id/like", authMiddleware.RequireAuth, shadersHandler.Like)

	commentRoutes := api.Group("/comments")
	commentRoutes.Post("/", authMiddleware.RequireAuth, commentsHandler.Create)
	commentRoutes.Patch("/", authMiddleware.RequireAuth, commentsHandler.Update)
	commentRoutes.Get("/:shaderId", commentsHandler.GetTree)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":            cfg.Server.Port,
		"address":         listenAddr,
		"storage_backend": cfg.Storage.Backend,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

func newObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "local":
		return storage.NewLocalStore(cfg.Storage.LocalRoot, cfg.Server.HostURL+"/blobs")
	case "minio":
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(context.Background()); err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
