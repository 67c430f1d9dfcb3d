package api

import (
	"strconv"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/meetings"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/middleware"
	"github.com/gofiber/fiber/v2"
)

// MeetingHandler exposes the meeting lifecycle: job creation, status polling,
// reprocess, transcript Q&A, and deletion.
type MeetingHandler struct {
	meetingService *meetings.Service
	orchestrator   *meetings.Orchestrator
}

func NewMeetingHandler(meetingService *meetings.Service, orchestrator *meetings.Orchestrator) *MeetingHandler {
	return &MeetingHandler{
		meetingService: meetingService,
		orchestrator:   orchestrator,
	}
}

func (h *MeetingHandler) RegisterRoutes(app *fiber.App, basePath string) {
	group := app.Group(basePath)
	group.Post("/", h.Create)
	group.Get("/", h.List)
	group.Get("/:id", h.Get)
	group.Delete("/:id", h.Delete)
	group.Post("/:id/reprocess", h.Reprocess)
	group.Post("/:id/ask", h.Ask)
}

// Create accepts a transcription job. Processing continues after the response;
// clients poll GET /:id for the terminal status.
func (h *MeetingHandler) Create(c *fiber.Ctx) error {
	var req models.CreateMeetingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.orchestrator.CreateTranscriptionJob(c.Context(), middleware.UserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (h *MeetingHandler) Get(c *fiber.Ctx) error {
	meeting, err := h.meetingService.GetByID(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(meeting)
}

func (h *MeetingHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	results, err := h.meetingService.List(c.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"meetings": results,
		"count":    len(results),
	})
}

func (h *MeetingHandler) Delete(c *fiber.Ctx) error {
	if err := h.meetingService.Delete(c.Context(), c.Params("id"), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MeetingHandler) Reprocess(c *fiber.Ctx) error {
	var req models.ReprocessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	meetingID := c.Params("id")
	if err := h.orchestrator.Reprocess(c.Context(), middleware.UserID(c), meetingID, &req); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(models.CreateMeetingResponse{
		Success:   true,
		MeetingID: meetingID,
	})
}

func (h *MeetingHandler) Ask(c *fiber.Ctx) error {
	var req models.AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.orchestrator.Ask(c.Context(), middleware.UserID(c), c.Params("id"), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}
