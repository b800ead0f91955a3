package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Event represents a backup or rotation event that can be notified
type Event struct {
	Type          EventType
	ContainerName string
	Database      string
	BackupKey     string
	Size          int64
	Duration      time.Duration
	Deleted       int
	Kept          int
	Message       string
	Error         error
	Timestamp     time.Time
}

// EventType represents the type of event
type EventType string

const (
	EventBackupCompleted   EventType = "backup_completed"
	EventBackupFailed      EventType = "backup_failed"
	EventRotationCompleted EventType = "rotation_completed"
	EventRotationFailed    EventType = "rotation_failed"
	EventErrorLogged       EventType = "error_logged"
)

// Title returns a short human readable title for the event type
func (e Event) Title() string {
	switch e.Type {
	case EventBackupCompleted:
		return "Backup Completed"
	case EventBackupFailed:
		return "Backup Failed"
	case EventRotationCompleted:
		return "Rotation Completed"
	case EventRotationFailed:
		return "Rotation Failed"
	case EventErrorLogged:
		return "Error"
	default:
		return string(e.Type)
	}
}

// Failed reports whether the event describes a failure
func (e Event) Failed() bool {
	switch e.Type {
	case EventBackupFailed, EventRotationFailed, EventErrorLogged:
		return true
	}
	return false
}

// Text renders the event as plain text, one field per line
func (e Event) Text() string {
	var b strings.Builder

	if e.ContainerName != "" {
		fmt.Fprintf(&b, "Container: %s\n", e.ContainerName)
	}
	if e.Database != "" {
		fmt.Fprintf(&b, "Database: %s\n", e.Database)
	}
	if e.BackupKey != "" {
		fmt.Fprintf(&b, "Key: %s\n", e.BackupKey)
	}
	if e.Size > 0 {
		fmt.Fprintf(&b, "Size: %s\n", humanize.IBytes(uint64(e.Size)))
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", e.Duration.Round(time.Millisecond))
	}
	if e.Type == EventRotationCompleted {
		fmt.Fprintf(&b, "Kept: %d, deleted: %d\n", e.Kept, e.Deleted)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, "%s\n", e.Message)
	}
	if e.Error != nil {
		fmt.Fprintf(&b, "Error: %s\n", e.Error)
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Notifier defines the interface for notification providers
type Notifier interface {
	// Name returns the notifier instance name
	Name() string

	// Type returns the notifier type (e.g., "telegram", "discord")
	Type() string

	// Send sends a notification for the given event
	Send(ctx context.Context, event Event) error
}

// NotifierType creates Notifier instances from configuration
type NotifierType interface {
	// Name returns the type identifier ("telegram", "pushbullet", etc.)
	Name() string

	// Create instantiates a notifier from configuration options
	Create(name string, options map[string]string) (Notifier, error)
}
