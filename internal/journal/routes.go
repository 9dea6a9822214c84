package journal

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"
)

// NewApp 构建源站 Fiber 应用：REST API + 嵌入的静态资源。
func NewApp(store *Storage, logger *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})
	app.Use(recover.New())
	if logger != nil {
		app.Use(requestLogger(logger))
	}

	RegisterAPIRoutes(app, store)
	app.Get("/*", assetHandler(staticFS()))
	return app
}

// RegisterAPIRoutes 挂载 /api/reflections 与 /api/projects。
func RegisterAPIRoutes(app *fiber.App, store *Storage) {
	app.Get("/api/reflections", func(c fiber.Ctx) error {
		return c.JSON(store.Reflections())
	})

	app.Get("/api/reflections/:id", func(c fiber.Ctx) error {
		reflection, ok := store.Reflection(c.Params("id"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reflection not found"})
		}
		return c.JSON(reflection)
	})

	app.Post("/api/reflections", func(c fiber.Ctx) error {
		input, err := ParseNewReflection(c.Body())
		if err != nil {
			return writeInvalid(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(store.CreateReflection(input))
	})

	app.Put("/api/reflections/:id", func(c fiber.Ctx) error {
		patch, err := ParseReflectionPatch(c.Body())
		if errors.Is(err, ErrNoData) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No data provided"})
		}
		if err != nil {
			return writeInvalid(c, err)
		}
		updated, ok := store.UpdateReflection(c.Params("id"), patch)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reflection not found"})
		}
		return c.JSON(updated)
	})

	app.Delete("/api/reflections/:id", func(c fiber.Ctx) error {
		if !store.DeleteReflection(c.Params("id")) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reflection not found"})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/api/projects", func(c fiber.Ctx) error {
		return c.JSON(store.Projects())
	})

	app.Get("/api/projects/:id", func(c fiber.Ctx) error {
		project, ok := store.Project(c.Params("id"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Project not found"})
		}
		return c.JSON(project)
	})

	app.Post("/api/projects", func(c fiber.Ctx) error {
		input, err := ParseNewProject(c.Body())
		if err != nil {
			return writeInvalid(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(store.CreateProject(input))
	})

	app.Delete("/api/projects/:id", func(c fiber.Ctx) error {
		if !store.DeleteProject(c.Params("id")) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Project not found"})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.All("/api/*", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	})
}

func writeInvalid(c fiber.Ctx, err error) error {
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		return err
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "Invalid data",
		"details": invalid.Issues,
	})
}

func requestLogger(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		err := c.Next()
		logger.WithFields(logrus.Fields{
			"action":     "origin_request",
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"elapsed_ms": time.Since(started).Milliseconds(),
		}).Debug("origin_request")
		return err
	}
}
