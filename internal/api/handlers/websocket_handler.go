package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ticketmind/backend/internal/assistant"
	"github.com/ticketmind/backend/internal/record"
	"github.com/ticketmind/backend/pkg/logger"
)

type WebSocketHandler struct {
	service *assistant.Service
}

func NewWebSocketHandler(service *assistant.Service) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
	}
}

// HandleConnection drives one chat session over a websocket. Each inbound
// "chat" frame runs the full pipeline; the reply comes back as a single
// "reply" frame followed by any sources.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			RecordID int64  `json:"record_id"`
			Kind     string `json:"kind"`
			UserID   int64  `json:"user_id"`
			Message  string `json:"message"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "chat" {
			continue
		}

		result, err := h.service.Chat(context.Background(), msg.UserID, msg.RecordID, msg.Kind, msg.Message)
		if err != nil {
			h.sendError(c, err)
			continue
		}

		if err := c.WriteJSON(map[string]interface{}{
			"type":     "reply",
			"answer":   result.Answer,
			"sources":  result.Sources,
			"degraded": result.Degraded,
			"turn_id":  result.TurnID,
		}); err != nil {
			logger.Error("Failed to write WebSocket reply", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, err error) {
	msg := "Failed to process message"
	switch {
	case errors.Is(err, assistant.ErrInvalidInput):
		msg = err.Error()
	case errors.Is(err, record.ErrNotFound):
		msg = "You don't have access to this record"
	default:
		if friendly, ok := assistant.Friendly(err); ok {
			msg = friendly
		} else {
			logger.Error("WebSocket chat failed", zap.Error(err))
		}
	}

	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": msg,
	})
}
