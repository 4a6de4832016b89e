package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jumppguru/backend/internal/orchestrator"
	"github.com/jumppguru/backend/pkg/logger"
)

type QueryHandler struct {
	orch          *orchestrator.Orchestrator
	conversations orchestrator.ConversationStore
	historyLimit  int
}

func NewQueryHandler(orch *orchestrator.Orchestrator, conversations orchestrator.ConversationStore, historyLimit int) *QueryHandler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &QueryHandler{
		orch:          orch,
		conversations: conversations,
		historyLimit:  historyLimit,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query    string `json:"query"`
		UserID   string `json:"userId"`
		Language string `json:"language"`
		ChatID   string `json:"chatId"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	result, err := h.orch.Resolve(c.Context(), orchestrator.Request{
		UserID:       req.UserID,
		Query:        req.Query,
		LanguageHint: req.Language,
		ChatID:       req.ChatID,
	})
	if err != nil {
		logger.Error("Failed to resolve query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(fiber.Map{
		"answer":   result.Answer,
		"language": result.Language,
		"source":   result.Source,
	})
}

// GetHistory returns the recent turns of one conversation, oldest first. The
// chatId scopes the window when given; otherwise the userId does.
func (h *QueryHandler) GetHistory(c *fiber.Ctx) error {
	userID := c.Query("userId")
	chatID := c.Query("chatId")
	if userID == "" && chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId or chatId is required",
		})
	}

	key := chatID
	if key == "" {
		key = userID
	}

	limit := c.QueryInt("limit", h.historyLimit)
	if limit <= 0 || limit > h.historyLimit {
		limit = h.historyLimit
	}

	turns, err := h.conversations.RecentMessages(c.Context(), key, limit)
	if err != nil {
		logger.Error("Failed to load history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	messages := make([]fiber.Map, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, fiber.Map{
			"role":      t.Role,
			"content":   t.Content,
			"createdAt": t.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"history": messages,
	})
}
