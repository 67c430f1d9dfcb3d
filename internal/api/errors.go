package api

import (
	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"github.com/gofiber/fiber/v2"
)

// respondError maps a service error to its HTTP response. Typed errors keep
// their status and message; anything else is a sanitized 500.
func respondError(c *fiber.Ctx, err error) error {
	appErr := models.SanitizeError(err)
	return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
		"error": appErr,
	})
}
