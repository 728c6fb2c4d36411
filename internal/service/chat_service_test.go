package service

import (
	"context"
	"strings"
	"testing"

	"snapgrid/internal/models"
	"snapgrid/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatService_SendMessage_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, h.db)

	tests := []struct {
		name string
		in   SendMessageInput
	}{
		{"empty", SendMessageInput{SenderID: u.ID, RecipientID: u.ID + 1, Content: "  "}},
		{"too long", SendMessageInput{SenderID: u.ID, RecipientID: u.ID + 1, Content: strings.Repeat("m", models.MaxMessageLength+1)}},
		{"no recipient", SendMessageInput{SenderID: u.ID, Content: "hi"}},
		{"self", SendMessageInput{SenderID: u.ID, RecipientID: u.ID, Content: "hi"}},
	}
	for _, tt := range tests {
		_, err := h.chat.SendMessage(ctx, tt.in)
		assertValidationError(t, err)
	}

	_, err := h.chat.SendMessage(ctx, SendMessageInput{SenderID: u.ID, RecipientID: 9999, Content: "hi"})
	assertCode(t, err, models.CodeNotFound)
}

func TestChatService_ConversationReuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u1 := testutil.CreateUser(t, h.db)
	u2 := testutil.CreateUser(t, h.db)

	first, err := h.chat.SendMessage(ctx, SendMessageInput{SenderID: u1.ID, RecipientID: u2.ID, Content: "hey"})
	require.NoError(t, err)
	assert.True(t, first.ConversationCreated)

	second, err := h.chat.SendMessage(ctx, SendMessageInput{SenderID: u1.ID, RecipientID: u2.ID, Content: "you there?"})
	require.NoError(t, err)
	assert.False(t, second.ConversationCreated)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	reverse, err := h.chat.SendMessage(ctx, SendMessageInput{SenderID: u2.ID, RecipientID: u1.ID, Content: "yes"})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, reverse.ConversationID)

	var count int64
	require.NoError(t, h.db.Model(&models.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	pushed := h.emitter.named(models.EventMessageNew)
	require.Len(t, pushed, 3)
	assert.Equal(t, u2.ID, pushed[0].UserID)
	msg := pushed[0].Data.(*models.Message)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, u1.Username, msg.Sender.Username)
	assert.Empty(t, msg.Sender.Email)
}

func TestChatService_ReadStateAndListing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u1 := testutil.CreateUser(t, h.db)
	u2 := testutil.CreateUser(t, h.db)
	stranger := testutil.CreateUser(t, h.db)

	var convID uint
	for _, text := range []string{"one", "two"} {
		sent, err := h.chat.SendMessage(ctx, SendMessageInput{SenderID: u1.ID, RecipientID: u2.ID, Content: text})
		require.NoError(t, err)
		convID = sent.ConversationID
	}

	convs, err := h.chat.ListConversations(ctx, u2.ID, firstPage(10))
	require.NoError(t, err)
	require.Len(t, convs.Items, 1)
	assert.EqualValues(t, 2, convs.Items[0].UnreadCount)
	require.NotNil(t, convs.Items[0].OtherUser)
	assert.Equal(t, u1.ID, convs.Items[0].OtherUser.ID)
	require.NotNil(t, convs.Items[0].LastMessage)
	assert.Equal(t, "two", convs.Items[0].LastMessage.Content)

	msgs, err := h.chat.ListMessages(ctx, u2.ID, convID, firstPage(10))
	require.NoError(t, err)
	require.Len(t, msgs.Items, 2)
	assert.Equal(t, "one", msgs.Items[0].Content)

	_, err = h.chat.ListMessages(ctx, stranger.ID, convID, firstPage(10))
	assertForbiddenError(t, err)

	read, err := h.chat.MarkRead(ctx, u2.ID, convID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, read)

	events := h.emitter.named(models.EventMessageRead)
	require.Len(t, events, 1)
	assert.Equal(t, u1.ID, events[0].UserID)
	assert.EqualValues(t, 2, events[0].Data.(MessagesRead).Count)

	again, err := h.chat.MarkRead(ctx, u2.ID, convID)
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Len(t, h.emitter.named(models.EventMessageRead), 1)
}

func TestChatService_DeletePermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u1 := testutil.CreateUser(t, h.db)
	u2 := testutil.CreateUser(t, h.db)
	stranger := testutil.CreateUser(t, h.db)

	sent, err := h.chat.SendMessage(ctx, SendMessageInput{SenderID: u1.ID, RecipientID: u2.ID, Content: "oops"})
	require.NoError(t, err)

	assertForbiddenError(t, h.chat.DeleteMessage(ctx, u2.ID, sent.Message.ID))
	require.NoError(t, h.chat.DeleteMessage(ctx, u1.ID, sent.Message.ID))
	assertCode(t, h.chat.DeleteMessage(ctx, u1.ID, sent.Message.ID), models.CodeNotFound)

	assertForbiddenError(t, h.chat.DeleteConversation(ctx, stranger.ID, sent.ConversationID))
	require.NoError(t, h.chat.DeleteConversation(ctx, u2.ID, sent.ConversationID))
	_, err = h.chat.GetConversation(ctx, u1.ID, sent.ConversationID)
	assertCode(t, err, models.CodeNotFound)
}
