package api

import (
	"context"

	"docchat/types"

	"github.com/gofiber/fiber/v2"
)

type Chatter interface {
	Chat(ctx context.Context, params types.ChatParams) (*types.ChatResponse, error)
}

type ChatHandler struct {
	chatter Chatter
}

func NewChatHandler(chatter Chatter) *ChatHandler {
	return &ChatHandler{
		chatter: chatter,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	resp, err := h.chatter.Chat(c.UserContext(), params)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
