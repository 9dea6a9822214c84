package routes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/learning-journal/journal-cache/internal/cache"
	"github.com/learning-journal/journal-cache/internal/logging"
	"github.com/learning-journal/journal-cache/internal/worker"
)

// RegisterWorkerRoutes 暴露 /-/sw 控制与诊断接口。base 提供新版本沿用的策略参数，
// 注册新版本时只替换 Version。
func RegisterWorkerRoutes(app *fiber.App, registration *worker.Registration, base worker.Options, logger *logrus.Logger) {
	if app == nil || registration == nil {
		return
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	app.Get("/-/sw/status", func(c fiber.Ctx) error {
		status, err := registration.Status(requestContext(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "status_unavailable"})
		}
		return c.JSON(status)
	})

	app.Post("/-/sw/message", func(c fiber.Ctx) error {
		var msg worker.Message
		if err := json.Unmarshal(c.Body(), &msg); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_message"})
		}
		if err := registration.PostMessage(requestContext(c), msg); err != nil {
			logger.WithFields(logrus.Fields{"action": "worker_message", "type": msg.Type}).
				WithError(err).Warn("message_not_delivered")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
	})

	app.Post("/-/sw/register", func(c fiber.Ctx) error {
		var payload struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(c.Body(), &payload); err != nil || strings.TrimSpace(payload.Version) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "version_required"})
		}

		opts := base
		opts.Version = strings.TrimSpace(payload.Version)
		ctrl, err := registration.Register(requestContext(c), opts)
		switch {
		case err == nil:
			return c.Status(fiber.StatusCreated).JSON(encodeController(ctrl))
		case errors.Is(err, worker.ErrAlreadyActive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "version_active"})
		case errors.Is(err, worker.ErrInstallFailed):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "install_failed", "detail": err.Error()})
		case errors.Is(err, cache.ErrInvalidName):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_version"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "register_failed", "detail": err.Error()})
		}
	})

	app.Delete("/-/sw/clients/:id", func(c fiber.Ctx) error {
		released, err := registration.ReleaseClient(requestContext(c), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "activate_failed", "detail": err.Error()})
		}
		if !released {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client_not_found"})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

type controllerPayload struct {
	Version string       `json:"version"`
	Cache   string       `json:"cache"`
	State   worker.State `json:"state"`
}

func encodeController(ctrl *worker.Controller) controllerPayload {
	return controllerPayload{
		Version: ctrl.Version(),
		Cache:   ctrl.CacheName(),
		State:   ctrl.State(),
	}
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
