// Package server exposes the platform over HTTP: workflow execution with
// optional event streaming, and the bubble catalog.
package server

import (
	"context"
	"fmt"

	"github.com/bubblelabai/bubblelab/internal/controllers"
	"github.com/bubblelabai/bubblelab/internal/initialization"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
)

type Server struct {
	app  *fiber.App
	port int
}

func NewServer(container *initialization.Container) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "bubblelab",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	executionController := controllers.NewExecutionController(controllers.ExecutionControllerDependencies{
		FlowService: container.FlowService,
	})
	bubbleController := controllers.NewBubbleController(controllers.BubbleControllerDependencies{
		Registry: container.Registry,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "healthy",
			"service": "bubblelab",
		})
	})

	v1 := app.Group("/v1")
	v1.Post("/executions", executionController.RunWorkflow)
	v1.Get("/bubbles", bubbleController.ListBubbles)

	return &Server{
		app:  app,
		port: container.Config.HTTPPort,
	}
}

func (s *Server) Start() error {
	log.Info().Int("port", s.port).Msg("starting http server")

	return s.app.Listen(fmt.Sprintf(":%d", s.port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
