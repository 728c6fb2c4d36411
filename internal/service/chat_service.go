package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"snapgrid/internal/models"
	"snapgrid/internal/pagination"
	"snapgrid/internal/repository"
)

// ChatService provides direct-message business logic.
type ChatService struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
	emitter  EventEmitter
	now      func() time.Time
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	SenderID    uint
	RecipientID uint
	Content     string
}

// SentMessage is a stored message and the conversation it went to.
type SentMessage struct {
	Message             *models.Message `json:"message"`
	ConversationID      uint            `json:"conversation_id"`
	ConversationCreated bool            `json:"conversation_created"`
}

// MessagesRead is the payload of the message:read event.
type MessagesRead struct {
	ConversationID uint      `json:"conversation_id"`
	ReaderID       uint      `json:"reader_id"`
	Count          int64     `json:"count"`
	ReadAt         time.Time `json:"read_at"`
}

// NewChatService returns a new ChatService.
func NewChatService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	emitter EventEmitter,
) *ChatService {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &ChatService{
		chatRepo: chatRepo,
		userRepo: userRepo,
		emitter:  emitter,
		now:      time.Now,
	}
}

// SendMessage delivers a message to the recipient, reusing the pair's
// conversation or creating it on first contact, and pushes message:new.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*SentMessage, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Message content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return nil, models.NewValidationError("Message too long (max 5000 characters)")
	}
	if in.RecipientID == 0 {
		return nil, models.NewValidationError("recipient_id is required")
	}
	if in.RecipientID == in.SenderID {
		return nil, models.NewValidationError("You cannot message yourself")
	}

	if _, err := s.userRepo.GetByID(ctx, in.RecipientID, models.VisibleOnly); err != nil {
		return nil, err
	}

	conv, created, err := s.chatRepo.GetOrCreateConversation(ctx, in.SenderID, in.RecipientID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Content:        content,
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if sender, err := s.userRepo.GetByID(ctx, in.SenderID, models.IncludeDeleted); err == nil {
		sender.Email = ""
		msg.Sender = sender
	}

	s.emitter.EmitToUser(ctx, in.RecipientID, models.EventMessageNew, msg)

	return &SentMessage{Message: msg, ConversationID: conv.ID, ConversationCreated: created}, nil
}

// ListConversations returns the user's conversations, most recent first,
// each with the other participant and the user's unread count.
func (s *ChatService) ListConversations(ctx context.Context, userID uint, p pagination.Params) (*pagination.Result[*models.Conversation], error) {
	convs, total, err := s.chatRepo.ListConversations(ctx, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	unread, err := s.chatRepo.UnreadCounts(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		present(c, userID)
		c.UnreadCount = unread[c.ID]
	}

	result := pagination.NewResult(convs, total, p)
	return &result, nil
}

// GetConversation returns a conversation the user takes part in.
func (s *ChatService) GetConversation(ctx context.Context, userID, convID uint) (*models.Conversation, error) {
	conv, err := s.participantConversation(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	present(conv, userID)
	return conv, nil
}

// ListMessages returns one page of a conversation in chronological order.
// Pages count back from the newest message.
func (s *ChatService) ListMessages(ctx context.Context, userID, convID uint, p pagination.Params) (*pagination.Result[*models.Message], error) {
	if _, err := s.participantConversation(ctx, userID, convID); err != nil {
		return nil, err
	}
	msgs, total, err := s.chatRepo.ListMessages(ctx, convID, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}
	result := pagination.NewResult(msgs, total, p)
	return &result, nil
}

// MarkRead marks the other participant's messages read and tells them so.
func (s *ChatService) MarkRead(ctx context.Context, userID, convID uint) (int64, error) {
	conv, err := s.participantConversation(ctx, userID, convID)
	if err != nil {
		return 0, err
	}
	count, err := s.chatRepo.MarkConversationRead(ctx, convID, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.emitter.EmitToUser(ctx, conv.OtherParticipant(userID), models.EventMessageRead, MessagesRead{
			ConversationID: convID,
			ReaderID:       userID,
			Count:          count,
			ReadAt:         s.now().UTC(),
		})
	}
	return count, nil
}

// DeleteMessage removes one of the user's own messages.
func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID uint) error {
	msg, err := s.chatRepo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return models.NewForbiddenError("You can only delete your own messages")
	}
	return s.chatRepo.DeleteMessage(ctx, messageID)
}

// DeleteConversation removes the conversation and all of its messages.
func (s *ChatService) DeleteConversation(ctx context.Context, userID, convID uint) error {
	if _, err := s.participantConversation(ctx, userID, convID); err != nil {
		return err
	}
	return s.chatRepo.DeleteConversation(ctx, convID)
}

func (s *ChatService) participantConversation(ctx context.Context, userID, convID uint) (*models.Conversation, error) {
	conv, err := s.chatRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}
	return conv, nil
}

// present fills the viewer-relative fields of a conversation.
func present(conv *models.Conversation, viewerID uint) {
	other := &conv.ParticipantA
	if conv.ParticipantAID == viewerID {
		other = &conv.ParticipantB
	}
	profile := other.Public()
	conv.OtherUser = &profile
}
