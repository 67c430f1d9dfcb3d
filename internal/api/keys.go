package api

import (
	"strings"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/apikeys"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/middleware"
	"github.com/gofiber/fiber/v2"
)

// KeyHandler manages the user's bring-your-own provider API keys.
type KeyHandler struct {
	keyService *apikeys.Service
}

func NewKeyHandler(keyService *apikeys.Service) *KeyHandler {
	return &KeyHandler{keyService: keyService}
}

func (h *KeyHandler) RegisterRoutes(app *fiber.App, basePath string) {
	group := app.Group(basePath)
	group.Get("/", h.List)
	group.Put("/:provider", h.Set)
	group.Delete("/:provider", h.Delete)
}

func (h *KeyHandler) List(c *fiber.Ctx) error {
	keys, err := h.keyService.ListKeys(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"keys": keys,
	})
}

func (h *KeyHandler) Set(c *fiber.Ctx) error {
	var req models.SetProviderKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "api_key is required",
		})
	}

	provider := strings.ToLower(c.Params("provider"))
	if err := h.keyService.SetKey(c.Context(), middleware.UserID(c), provider, req.APIKey); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"provider": provider,
	})
}

func (h *KeyHandler) Delete(c *fiber.Ctx) error {
	provider := strings.ToLower(c.Params("provider"))
	if err := h.keyService.DeleteKey(c.Context(), middleware.UserID(c), provider); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
