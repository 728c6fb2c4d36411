package server

import (
	"fmt"
	"net/http"
	"testing"

	"snapgrid/internal/models"
	"snapgrid/internal/service"
	"snapgrid/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectMessages(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db)
	bob := testutil.CreateUser(t, ts.db)
	eve := testutil.CreateUser(t, ts.db)
	aliceToken := ts.tokenFor(t, alice.ID)
	bobToken := ts.tokenFor(t, bob.ID)

	status, env := ts.do(t, http.MethodPost, "/api/messages", aliceToken, SendMessageRequest{RecipientID: bob.ID, Content: "hi bob"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	first := decodeData[service.SentMessage](t, env)
	assert.True(t, first.ConversationCreated)

	status, env = ts.do(t, http.MethodPost, "/api/messages", bobToken, SendMessageRequest{RecipientID: alice.ID, Content: "hey"})
	require.Equal(t, http.StatusCreated, status)
	reply := decodeData[service.SentMessage](t, env)
	assert.False(t, reply.ConversationCreated)
	assert.Equal(t, first.ConversationID, reply.ConversationID)

	status, _ = ts.do(t, http.MethodPost, "/api/messages", aliceToken, SendMessageRequest{RecipientID: alice.ID, Content: "me"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, "/api/messages", aliceToken, SendMessageRequest{RecipientID: 999999, Content: "anyone?"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(t, http.MethodPost, "/api/messages", aliceToken, SendMessageRequest{RecipientID: bob.ID})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = ts.do(t, http.MethodGet, "/api/conversations", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	convs := decodeData[page[models.Conversation]](t, env)
	require.Len(t, convs.Items, 1)
	assert.EqualValues(t, 1, convs.Items[0].UnreadCount)
	require.NotNil(t, convs.Items[0].OtherUser)
	assert.Equal(t, alice.ID, convs.Items[0].OtherUser.ID)

	convPath := fmt.Sprintf("/api/conversations/%d", first.ConversationID)
	status, env = ts.do(t, http.MethodGet, convPath+"/messages", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	msgs := decodeData[page[models.Message]](t, env)
	require.Len(t, msgs.Items, 2)
	assert.Equal(t, "hi bob", msgs.Items[0].Content, "oldest first")

	status, _ = ts.do(t, http.MethodGet, convPath+"/messages", ts.tokenFor(t, eve.ID), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = ts.do(t, http.MethodPost, convPath+"/read", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, decodeData[map[string]int64](t, env)["updated"])

	status, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d", first.Message.ID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d", first.Message.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodDelete, convPath, ts.tokenFor(t, eve.ID), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodDelete, convPath, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodGet, convPath+"/messages", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
