package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docuchat/backend/internal/apperr"
	"github.com/docuchat/backend/pkg/logger"
)

// fail maps the error taxonomy to HTTP statuses. Internal failure classes
// are logged here with their cause and surfaced with a generic message;
// caller-fault classes travel to the client verbatim.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrDuplicateDocument):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrDocumentNotFound), errors.Is(err, apperr.ErrConversationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}
