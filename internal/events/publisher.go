// Package events publishes workflow events for external collaborators
// (notifications, analytics). The core only emits payloads; nothing in it
// depends on a consumer acting on them.
package events

import "context"

// Event kinds emitted by the order workflow.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
)

// Event is a typed payload published after a state change has committed.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publisher delivers events to interested collaborators. Publishing is
// best-effort: callers log failures and move on, state changes are never
// rolled back for a lost event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop is a Publisher that drops every event. Used when no broker is
// configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
