// Package events is an in-process pub/sub bus for runtime state changes:
// server connections, tool list updates, and tool executions.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhubert/mcpcore/logger"
)

// Kind names an event type.
type Kind string

const (
	KindServerConnectionChanged Kind = "server-connection-changed"
	KindToolsUpdated            Kind = "tools-updated"
	KindToolExecutionStarted    Kind = "tool-execution-started"
	KindToolExecutionCompleted  Kind = "tool-execution-completed"
	KindSystemInitialized       Kind = "system-initialized"
	KindConfigurationUpdated    Kind = "configuration-updated"
)

// Event is one bus message. Payload fields are populated per Kind; the
// zero values mean "not applicable".
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	ServerName string `json:"serverName,omitempty"`
	ToolID     string `json:"toolId,omitempty"`
	Connected  bool   `json:"connected,omitempty"`
	Success    bool   `json:"success,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	ToolCount  int    `json:"toolCount,omitempty"`
	Error      string `json:"error,omitempty"`
}

// New builds an event with a fresh id and timestamp.
func New(kind Kind) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// subscriberBufferSize is the per-subscriber channel depth. A subscriber
// that falls this far behind starts losing events.
const subscriberBufferSize = 64

// Bus fans events out to subscribers. Publish never blocks: a full
// subscriber channel drops the event.
type Bus struct {
	log *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		log:  logger.WithComponent("events"),
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBufferSize)
	b.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, unsubscribe
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.log.Warn("dropping event for slow subscriber", "subscriber", id, "kind", e.Kind)
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
