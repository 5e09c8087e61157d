package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Operation represents Debezium operation codes
type Operation string

const (
	OpUpdate Operation = "u"
)

const (
	Connector = "patcher"
	Version   = "1.0.0"
)

// EventSource contains metadata about where the change was applied (Debezium format)
type EventSource struct {
	Version   string `json:"version"`
	Connector string `json:"connector"`
	Name      string `json:"name"`
	TsMs      int64  `json:"ts_ms"`
	Snapshot  string `json:"snapshot"`
	Table     string `json:"table"`
}

// Payload contains the change event data in Debezium format. Before is not
// known to the updater and is always nil.
type Payload struct {
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
	// Patch holds only the fields that were supplied, in request order.
	Patch  any         `json:"patch,omitempty"`
	Source EventSource `json:"source"`
	Op     Operation   `json:"op"`
	TsMs   int64       `json:"ts_ms"`
}

// Event represents a Debezium-compatible change event
type Event struct {
	ID      string  `json:"id"`
	Payload Payload `json:"payload"`
}

// NewUpdate builds the event for a row updated through resource.
func NewUpdate(resource, table string, patch any, after map[string]any) Event {
	now := time.Now()
	return Event{
		ID: uuid.NewString(),
		Payload: Payload{
			After: after,
			Patch: patch,
			Source: EventSource{
				Version:   Version,
				Connector: Connector,
				Name:      resource,
				TsMs:      now.UnixMilli(),
				Snapshot:  "false",
				Table:     table,
			},
			Op:   OpUpdate,
			TsMs: now.UnixMilli(),
		},
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close(ctx context.Context) error
}

type Nop struct{}

func (Nop) Publish(ctx context.Context, event Event) error { return nil }
func (Nop) Close(ctx context.Context) error                { return nil }
