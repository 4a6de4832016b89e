package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/jumppguru/backend/internal/orchestrator"
	"github.com/jumppguru/backend/pkg/logger"
)

// WebSocketHandler runs the same resolution pipeline as the HTTP query
// endpoint but delivers the answer word by word, then a terminal frame with
// the provenance metadata.
type WebSocketHandler struct {
	orch *orchestrator.Orchestrator
}

func NewWebSocketHandler(orch *orchestrator.Orchestrator) *WebSocketHandler {
	return &WebSocketHandler{orch: orch}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			Query    string `json:"query"`
			UserID   string `json:"userId"`
			Language string `json:"language"`
			ChatID   string `json:"chatId"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}
		if msg.Query == "" || msg.UserID == "" {
			h.sendError(c, "query and userId are required")
			continue
		}

		err := h.streamAnswer(c, orchestrator.Request{
			UserID:       msg.UserID,
			Query:        msg.Query,
			LanguageHint: msg.Language,
			ChatID:       msg.ChatID,
		})
		if err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, req orchestrator.Request) error {
	h.send(c, "status", "Thinking...")

	result, err := h.orch.Resolve(context.Background(), req)
	if err != nil {
		return err
	}

	words := strings.Fields(result.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := h.send(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":     "complete",
		"answer":   result.Answer,
		"language": result.Language,
		"source":   result.Source,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
