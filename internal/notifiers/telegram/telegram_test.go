package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shyim/docker-pg-backup/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramType_Create_Errors(t *testing.T) {
	_, err := (&TelegramType{}).Create("chat", map[string]string{"chat-id": "1"})
	assert.ErrorContains(t, err, "token")

	_, err = (&TelegramType{}).Create("chat", map[string]string{"token": "t"})
	assert.ErrorContains(t, err, "chat-id")
}

func TestTelegramNotifier_Send(t *testing.T) {
	var path string
	var payload map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := (&TelegramType{}).Create("chat", map[string]string{
		"token":   "123:abc",
		"chat-id": "42",
		"api-url": srv.URL + "/",
	})
	require.NoError(t, err)

	err = n.Send(context.Background(), notification.Event{
		Type:          notification.EventBackupCompleted,
		ContainerName: "pg-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "HTML", payload["parse_mode"])
	assert.Contains(t, payload["text"], "<b>Backup Completed</b>")
}

func TestTelegramNotifier_Send_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n, err := (&TelegramType{}).Create("chat", map[string]string{"token": "t", "chat-id": "1", "api-url": srv.URL})
	require.NoError(t, err)

	err = n.Send(context.Background(), notification.Event{Type: notification.EventBackupFailed})
	assert.ErrorContains(t, err, "status 403")
}

func TestTelegramNotifier_FormatMessage(t *testing.T) {
	tn := &TelegramNotifier{}

	msg := tn.formatMessage(notification.Event{
		Type:          notification.EventBackupFailed,
		ContainerName: "pg-1",
		Database:      "data",
		Size:          1536,
		Error:         errors.New("exit code 1: <fatal>"),
	})

	assert.Contains(t, msg, "❌ <b>Backup Failed</b>")
	assert.Contains(t, msg, "Container: <code>pg-1</code>")
	assert.Contains(t, msg, "Database: <code>data</code>")
	assert.Contains(t, msg, "Size: 1.5 KiB")
	assert.Contains(t, msg, "&lt;fatal&gt;", "error text is escaped")
}

func TestTelegramNotifier_FormatMessage_Rotation(t *testing.T) {
	tn := &TelegramNotifier{}

	msg := tn.formatMessage(notification.Event{
		Type:    notification.EventRotationCompleted,
		Kept:    5,
		Deleted: 1,
	})

	assert.Contains(t, msg, "✅ <b>Rotation Completed</b>")
	assert.Contains(t, msg, "Kept 5, deleted 1")
}
