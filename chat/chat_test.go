package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-vehicle-market/api"
	"github.com/jrsteele09/go-vehicle-market/chat"
	"github.com/jrsteele09/go-vehicle-market/internal/apitest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupConversation(t *testing.T, opts ...chat.Option) (*apitest.Backend, *chat.Conversation) {
	t.Helper()
	b := apitest.New(t)
	client, err := api.New(b.URL(), api.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	opts = append([]chat.Option{chat.WithLogger(zerolog.Nop())}, opts...)
	return b, chat.NewConversation(client, opts...)
}

func TestSendAppendsQuestionAndReply(t *testing.T) {
	b, conv := setupConversation(t, chat.WithGreeting("How can I help?"))
	ctx := context.Background()

	reply, err := conv.Send(ctx, "Is the Supra fast?", map[string]any{"vehicle_id": "3"})
	require.NoError(t, err)
	require.Equal(t, "You asked: Is the Supra fast?", reply)

	var sent struct {
		Message string         `json:"message"`
		Context map[string]any `json:"context"`
		History []chat.Message `json:"history"`
	}
	require.NoError(t, json.Unmarshal(b.LastBody(http.MethodPost, "/chat/"), &sent))
	require.Equal(t, "Is the Supra fast?", sent.Message)
	require.Equal(t, "3", sent.Context["vehicle_id"])
	require.Equal(t, []chat.Message{
		{Role: chat.RoleAssistant, Content: "How can I help?"},
		{Role: chat.RoleUser, Content: "Is the Supra fast?"},
	}, sent.History)

	require.Equal(t, []chat.Message{
		{Role: chat.RoleAssistant, Content: "How can I help?"},
		{Role: chat.RoleUser, Content: "Is the Supra fast?"},
		{Role: chat.RoleAssistant, Content: "You asked: Is the Supra fast?"},
	}, conv.History())
}

func TestSendFailureLeavesHistory(t *testing.T) {
	b, conv := setupConversation(t)
	b.Override(http.MethodPost, "/chat/", func(w http.ResponseWriter, _ *http.Request) {
		apitest.JSON(w, http.StatusBadGateway, map[string]string{"error": "assistant offline"})
	})

	_, err := conv.Send(context.Background(), "hello", nil)
	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.Status)
	require.Empty(t, conv.History())
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	b, conv := setupConversation(t)

	_, err := conv.Send(context.Background(), "", nil)
	require.ErrorIs(t, err, api.ErrValidationFailed)
	require.Zero(t, b.Calls(http.MethodPost, "/chat/"))
}

func TestSendIsRateLimited(t *testing.T) {
	_, conv := setupConversation(t, chat.WithRateLimit(time.Hour, 1))

	_, err := conv.Send(context.Background(), "first", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = conv.Send(ctx, "second", nil)
	require.Error(t, err)
	require.Len(t, conv.History(), 2)
}

func TestResetStartsNewConversation(t *testing.T) {
	_, conv := setupConversation(t, chat.WithGreeting("Hi"))
	first := conv.ID()

	_, err := conv.Send(context.Background(), "hello", nil)
	require.NoError(t, err)
	conv.Reset()

	require.NotEqual(t, first, conv.ID())
	require.Equal(t, []chat.Message{{Role: chat.RoleAssistant, Content: "Hi"}}, conv.History())
}
