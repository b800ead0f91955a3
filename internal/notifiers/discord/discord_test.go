package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shyim/docker-pg-backup/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordType_Create_MissingWebhook(t *testing.T) {
	_, err := (&DiscordType{}).Create("team", map[string]string{})
	assert.ErrorContains(t, err, "webhook-url")
}

func TestDiscordNotifier_Send(t *testing.T) {
	var payload struct {
		Username string                   `json:"username"`
		Embeds   []map[string]interface{} `json:"embeds"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := (&DiscordType{}).Create("team", map[string]string{"webhook-url": srv.URL})
	require.NoError(t, err)

	err = n.Send(context.Background(), notification.Event{
		Type:          notification.EventBackupCompleted,
		ContainerName: "pg-1",
		Database:      "data",
		Size:          3 * 1024 * 1024,
		Timestamp:     time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "Docker PG Backup", payload.Username)
	require.Len(t, payload.Embeds, 1)
	embed := payload.Embeds[0]
	assert.Equal(t, "Backup Completed", embed["title"])
	assert.Equal(t, float64(3066993), embed["color"])
	assert.Equal(t, "2024-01-15T10:30:00Z", embed["timestamp"])
}

func TestDiscordNotifier_Send_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n, err := (&DiscordType{}).Create("team", map[string]string{"webhook-url": srv.URL})
	require.NoError(t, err)

	err = n.Send(context.Background(), notification.Event{Type: notification.EventRotationFailed})
	assert.ErrorContains(t, err, "status 400")
}

func TestDiscordNotifier_CreateEmbed_Failure(t *testing.T) {
	d := &DiscordNotifier{}
	embed := d.createEmbed(notification.Event{
		Type:          notification.EventRotationFailed,
		ContainerName: "pg-1",
		Error:         errors.New("listing failed"),
	})

	assert.Equal(t, "Rotation Failed", embed["title"])
	assert.Equal(t, 15158332, embed["color"])

	fields := embed["fields"].([]map[string]interface{})
	require.Len(t, fields, 2)
	assert.Equal(t, "Error", fields[1]["name"])
}

func TestDiscordNotifier_CreateEmbed_Rotation(t *testing.T) {
	d := &DiscordNotifier{}
	embed := d.createEmbed(notification.Event{
		Type:    notification.EventRotationCompleted,
		Kept:    10,
		Deleted: 2,
	})

	fields := embed["fields"].([]map[string]interface{})
	require.Len(t, fields, 1)
	assert.Equal(t, "10 kept, 2 deleted", fields[0]["value"])
}

func TestDiscordNotifier_CreateEmbed_LongMessage(t *testing.T) {
	d := &DiscordNotifier{}
	embed := d.createEmbed(notification.Event{
		Type:    notification.EventErrorLogged,
		Message: strings.Repeat("x", 5000),
	})

	desc := embed["description"].(string)
	assert.Len(t, desc, maxDescription)
	assert.True(t, strings.HasSuffix(desc, "..."))
}
