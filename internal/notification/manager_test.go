package notification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct {
	name  string
	kind  string
	err   error
	delay time.Duration
	sent  atomic.Int32
}

func (n *countingNotifier) Name() string { return n.name }
func (n *countingNotifier) Type() string { return n.kind }

func (n *countingNotifier) Send(ctx context.Context, event Event) error {
	n.sent.Add(1)
	if n.delay > 0 {
		time.Sleep(n.delay)
	}
	return n.err
}

func newTestManager(names ...string) (*Manager, map[string]*countingNotifier) {
	mgr := NewManager()
	byName := make(map[string]*countingNotifier, len(names))
	for _, name := range names {
		n := &countingNotifier{name: name, kind: "counting"}
		byName[name] = n
		mgr.AddNotifier(name, n)
	}
	return mgr, byName
}

func TestManager_Notify(t *testing.T) {
	tests := []struct {
		name      string
		providers []string
		want      map[string]int32
	}{
		{"single", []string{"ops"}, map[string]int32{"ops": 1, "alerts": 0}},
		{"both", []string{"ops", "alerts"}, map[string]int32{"ops": 1, "alerts": 1}},
		{"none", nil, map[string]int32{"ops": 0, "alerts": 0}},
		{"empty", []string{}, map[string]int32{"ops": 0, "alerts": 0}},
		{"unknown", []string{"pager"}, map[string]int32{"ops": 0, "alerts": 0}},
		{"unknown skipped", []string{"pager", "alerts"}, map[string]int32{"ops": 0, "alerts": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, notifiers := newTestManager("ops", "alerts")

			mgr.Notify(context.Background(), Event{Type: EventBackupCompleted, ContainerName: "pg-1"}, tt.providers)

			for name, want := range tt.want {
				assert.Equal(t, want, notifiers[name].sent.Load(), name)
			}
		})
	}
}

func TestManager_Notify_SendErrorIsLogged(t *testing.T) {
	mgr := NewManager()
	failing := &countingNotifier{name: "ops", err: errors.New("send failed")}
	healthy := &countingNotifier{name: "alerts"}
	mgr.AddNotifier("ops", failing)
	mgr.AddNotifier("alerts", healthy)

	mgr.NotifyAll(context.Background(), Event{Type: EventBackupFailed})

	assert.Equal(t, int32(1), failing.sent.Load())
	assert.Equal(t, int32(1), healthy.sent.Load(), "a failing notifier does not block the others")
}

func TestManager_Notify_WaitsForAll(t *testing.T) {
	mgr := NewManager()
	slow := &countingNotifier{name: "slow", delay: 20 * time.Millisecond}
	mgr.AddNotifier("slow", slow)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Notify(context.Background(), Event{Type: EventBackupCompleted}, []string{"slow"})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), slow.sent.Load())
}

func TestManager_AddNotifier_ReplacesByName(t *testing.T) {
	mgr := NewManager()
	first := &countingNotifier{name: "ops"}
	second := &countingNotifier{name: "ops"}
	mgr.AddNotifier("ops", first)
	mgr.AddNotifier("ops", second)

	mgr.NotifyAll(context.Background(), Event{Type: EventRotationCompleted})

	assert.Equal(t, 1, mgr.NotifierCount())
	assert.Zero(t, first.sent.Load())
	assert.Equal(t, int32(1), second.sent.Load())
}

func TestManager_Names(t *testing.T) {
	mgr, _ := newTestManager("telegram", "discord", "phone")
	assert.Equal(t, []string{"discord", "phone", "telegram"}, mgr.Names())
	assert.Equal(t, 3, mgr.NotifierCount())

	empty := NewManager()
	assert.Empty(t, empty.Names())
	assert.Zero(t, empty.NotifierCount())
	empty.NotifyAll(context.Background(), Event{Type: EventRotationCompleted})
}

func TestManager_ConcurrentAddAndNotify(t *testing.T) {
	mgr := NewManager()

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d"} {
		wg.Add(2)
		go func(name string) {
			defer wg.Done()
			mgr.AddNotifier(name, &countingNotifier{name: name})
		}(name)
		go func() {
			defer wg.Done()
			mgr.Notify(context.Background(), Event{Type: EventBackupCompleted}, []string{"a", "b"})
		}()
	}
	wg.Wait()

	require.Equal(t, 4, mgr.NotifierCount())
}

func TestEvent_Fields(t *testing.T) {
	now := time.Now()
	err := errors.New("test error")

	event := Event{
		Type:          EventBackupFailed,
		ContainerName: "pg-1",
		Database:      "data",
		BackupKey:     "pg-1/2024/01/15_10.30.00_data.tar",
		Size:          1024,
		Duration:      5 * time.Second,
		Error:         err,
		Timestamp:     now,
	}

	assert.Equal(t, EventBackupFailed, event.Type)
	assert.Equal(t, "pg-1", event.ContainerName)
	assert.Equal(t, int64(1024), event.Size)
	assert.Equal(t, 5*time.Second, event.Duration)
	assert.Equal(t, err, event.Error)
	assert.Equal(t, now, event.Timestamp)
}

func TestEventTypes(t *testing.T) {
	types := []EventType{
		EventBackupCompleted,
		EventBackupFailed,
		EventRotationCompleted,
		EventRotationFailed,
		EventErrorLogged,
	}

	for _, et := range types {
		assert.NotEmpty(t, et, "event type should not be empty")
		assert.NotEqual(t, string(et), Event{Type: et}.Title(), "every event type has a title")
	}

	// Ensure they're all unique
	seen := make(map[EventType]bool)
	for _, et := range types {
		assert.False(t, seen[et], "duplicate event type: %s", et)
		seen[et] = true
	}
}

func TestEvent_Failed(t *testing.T) {
	assert.False(t, Event{Type: EventBackupCompleted}.Failed())
	assert.False(t, Event{Type: EventRotationCompleted}.Failed())
	assert.True(t, Event{Type: EventBackupFailed}.Failed())
	assert.True(t, Event{Type: EventRotationFailed}.Failed())
	assert.True(t, Event{Type: EventErrorLogged}.Failed())
}

func TestEvent_Text(t *testing.T) {
	event := Event{
		Type:          EventBackupCompleted,
		ContainerName: "pg-1",
		Database:      "data",
		BackupKey:     "pg-1/a.tar",
		Size:          2048,
		Duration:      1500 * time.Millisecond,
	}

	assert.Equal(t, "Container: pg-1\nDatabase: data\nKey: pg-1/a.tar\nSize: 2.0 KiB\nDuration: 1.5s", event.Text())
}

func TestEvent_Text_Rotation(t *testing.T) {
	event := Event{
		Type:          EventRotationCompleted,
		ContainerName: "pg-1",
		Kept:          12,
		Deleted:       3,
	}

	assert.Equal(t, "Container: pg-1\nKept: 12, deleted: 3", event.Text())
}

func TestEvent_Text_Error(t *testing.T) {
	event := Event{
		Type:    EventErrorLogged,
		Message: "backup failed container=pg-1",
		Error:   errors.New("boom"),
	}

	assert.Equal(t, "backup failed container=pg-1\nError: boom", event.Text())
}
