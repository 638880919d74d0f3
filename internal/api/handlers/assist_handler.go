package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ticketmind/backend/internal/assistant"
	"github.com/ticketmind/backend/internal/kb"
	"github.com/ticketmind/backend/internal/record"
	"github.com/ticketmind/backend/pkg/logger"
)

type AssistHandler struct {
	service  *assistant.Service
	searcher *kb.Searcher
}

func NewAssistHandler(service *assistant.Service, searcher *kb.Searcher) *AssistHandler {
	return &AssistHandler{
		service:  service,
		searcher: searcher,
	}
}

func (h *AssistHandler) HandleAnalyze(c *fiber.Ctx) error {
	var req struct {
		RecordID int64  `json:"record_id"`
		Kind     string `json:"kind"`
		UserID   int64  `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	result, err := h.service.Analyze(c.Context(), req.UserID, req.RecordID, req.Kind)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"answer":      result.Answer,
		"suggestions": result.Suggestions,
		"sources":     result.Sources,
		"degraded":    result.Degraded,
		"turn_id":     result.TurnID,
	})
}

func (h *AssistHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		RecordID int64  `json:"record_id"`
		Kind     string `json:"kind"`
		UserID   int64  `json:"user_id"`
		Message  string `json:"message"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	result, err := h.service.Chat(c.Context(), req.UserID, req.RecordID, req.Kind, req.Message)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"answer":   result.Answer,
		"sources":  result.Sources,
		"degraded": result.Degraded,
		"turn_id":  result.TurnID,
	})
}

func (h *AssistHandler) HandleFeedback(c *fiber.Ctx) error {
	var req struct {
		TurnID  int64  `json:"turn_id"`
		Helpful bool   `json:"helpful"`
		Comment string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	id, err := h.service.Feedback(c.Context(), req.TurnID, req.Helpful, req.Comment)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"feedback_id": id,
	})
}

func (h *AssistHandler) HandleHistory(c *fiber.Ctx) error {
	recordID := int64(c.QueryInt("record_id"))
	kind := c.Query("kind")
	limit := c.QueryInt("limit")

	turns, err := h.service.History(c.Context(), recordID, kind, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"history": turns,
	})
}

func (h *AssistHandler) HandleProviderHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":   true,
		"enabled":   h.service.Enabled(),
		"providers": h.service.ProviderHealth(c.Context()),
	})
}

func (h *AssistHandler) HandlePopularArticles(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 5)

	articles, err := h.searcher.Popular(c.Context(), limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"articles": articles,
	})
}

// respondError maps pipeline errors onto the HTTP surface. Transport
// failures toward the model backend deliberately come back as 200 with
// success=false so clients render the friendly message inline.
func respondError(c *fiber.Ctx, err error) error {
	if msg, ok := assistant.Friendly(err); ok {
		return c.JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}

	switch {
	// Missing and inaccessible records answer identically so callers
	// cannot probe for existence.
	case errors.Is(err, record.ErrNotFound):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "You don't have access to this record",
		})
	case errors.Is(err, assistant.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	case errors.Is(err, assistant.ErrDisabled):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "Assistant is disabled",
		})
	case errors.Is(err, kb.ErrUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "Knowledge base is unavailable",
		})
	default:
		logger.Error("Unhandled assist error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Internal server error",
		})
	}
}
