package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestTelegramSinkSendsVideoAnnouncement(t *testing.T) {
	var got sendVideoRequest
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink, err := NewTelegramSink(TelegramConfig{
		BotToken:    "bot-token",
		ChatID:      "chat-1",
		VideoURL:    "https://example.com/mint.mp4",
		ExplorerURL: "https://basescan.org/tx/",
		BaseURL:     ts.URL,
	}, zerolog.Nop())
	require.NoError(t, err)

	err = sink.MintSucceeded(context.Background(), "0xabc", "Gold", "0xdeadbeef")
	require.NoError(t, err)

	require.Equal(t, "/botbot-token/sendVideo", path)
	require.Equal(t, "chat-1", got.ChatID)
	require.Equal(t, "https://example.com/mint.mp4", got.Video)
	require.Contains(t, got.Caption, "https://basescan.org/tx/0xdeadbeef")
	require.Contains(t, got.Caption, "Gold")
}

func TestTelegramSinkReportsAPIFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	sink, err := NewTelegramSink(TelegramConfig{
		BotToken: "bot-token",
		ChatID:   "chat-1",
		BaseURL:  ts.URL,
	}, zerolog.Nop())
	require.NoError(t, err)

	err = sink.MintSucceeded(context.Background(), "0xabc", "Gold", "0xdeadbeef")
	require.Error(t, err)
}

func TestNewTelegramSinkRequiresCredentials(t *testing.T) {
	_, err := NewTelegramSink(TelegramConfig{}, zerolog.Nop())
	require.Error(t, err)
}
