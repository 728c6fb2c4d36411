package server

import (
	"snapgrid/internal/models"
	"snapgrid/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SendMessageRequest is the body of POST /api/messages.
type SendMessageRequest struct {
	RecipientID uint   `json:"recipient_id"`
	Content     string `json:"content"`
}

// SendMessage handles POST /api/messages
// @Summary Send a direct message
// @Description Creates the conversation on first contact and reuses it afterwards
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SendMessageRequest true "Message"
// @Success 201 {object} models.SuccessResponse{data=service.SentMessage}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	sent, err := s.chatService.SendMessage(c.UserContext(), service.SendMessageInput{
		SenderID:    currentUserID(c),
		RecipientID: req.RecipientID,
		Content:     req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, "Message sent", sent)
}

// DeleteMessage handles DELETE /api/messages/:id
// @Summary Delete own message
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Message ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /messages/{id} [delete]
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.chatService.DeleteMessage(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Message deleted", nil)
}

// GetConversations handles GET /api/conversations
// @Summary List conversations, most recent first
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=pagination.Result[models.Conversation]}
// @Router /conversations [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	convs, err := s.chatService.ListConversations(c.UserContext(), currentUserID(c), s.pageParams(c, maxConversationsPage))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Conversations retrieved", convs)
}

// GetMessages handles GET /api/conversations/:id/messages
// @Summary List messages of a conversation, oldest first
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} models.SuccessResponse{data=pagination.Result[models.Message]}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	msgs, err := s.chatService.ListMessages(c.UserContext(), currentUserID(c), id, s.pageParams(c, maxMessagesPage))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Messages retrieved", msgs)
}

// MarkConversationRead handles POST /api/conversations/:id/read
// @Summary Mark received messages read
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/read [post]
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	n, err := s.chatService.MarkRead(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Conversation read", fiber.Map{"updated": n})
}

// DeleteConversation handles DELETE /api/conversations/:id
// @Summary Delete a conversation
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id} [delete]
func (s *Server) DeleteConversation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.chatService.DeleteConversation(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Conversation deleted", nil)
}
