package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/docuchat/backend/internal/apperr"
	"github.com/docuchat/backend/internal/chat"
)

// PromptService answers questions against the indexed corpus.
type PromptService interface {
	Answer(ctx context.Context, question, conversationID string) (*chat.Answer, error)
}

// ConversationDeleter removes a conversation and its messages.
type ConversationDeleter interface {
	DeleteConversation(ctx context.Context, id string) error
}

type PromptHandler struct {
	prompts       PromptService
	conversations ConversationDeleter
}

func NewPromptHandler(prompts PromptService, conversations ConversationDeleter) *PromptHandler {
	return &PromptHandler{prompts: prompts, conversations: conversations}
}

type promptRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

func (h *PromptHandler) Prompt(c *fiber.Ctx) error {
	var req promptRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, apperr.Wrapf(apperr.ErrValidation, "invalid request body"))
	}

	answer, err := h.prompts.Answer(c.Context(), req.Question, req.ConversationID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(answer)
}

func (h *PromptHandler) DeleteConversation(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return fail(c, apperr.Wrapf(apperr.ErrValidation, "conversation id is required"))
	}

	if err := h.conversations.DeleteConversation(c.Context(), id); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"conversation_id": id,
		"deleted":         true,
	})
}
