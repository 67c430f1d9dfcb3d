package api

import (
	"strconv"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/services/middleware"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/usage"
	"github.com/gofiber/fiber/v2"
)

type UsageHandler struct {
	usageService *usage.Service
}

func NewUsageHandler(usageService *usage.Service) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
	}
}

func (h *UsageHandler) RegisterRoutes(app *fiber.App, basePath string) {
	group := app.Group(basePath)
	group.Get("/stats", h.GetStats)
	group.Get("/history", h.GetHistory)
	group.Get("/by-period", h.GetByPeriod)
}

// GetStats returns today's per-provider counts and token totals against the
// caller's caps.
func (h *UsageHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.usageService.GetUsageStats(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *UsageHandler) GetHistory(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	records, err := h.usageService.GetUsageHistory(c.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"usage": records,
		"count": len(records),
	})
}

func (h *UsageHandler) GetByPeriod(c *fiber.Ctx) error {
	var startDate, endDate time.Time
	var err error

	if s := c.Query("startDate"); s != "" {
		startDate, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid start date format",
			})
		}
	}
	if s := c.Query("endDate"); s != "" {
		endDate, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid end date format",
			})
		}
	}
	groupBy := c.Query("groupBy", "day")

	stats, err := h.usageService.GetUsageByPeriod(c.Context(), middleware.UserID(c), startDate, endDate, groupBy)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
