package events

import (
	"context"
	"log/slog"
	"time"
)

// Event names emitted by the service.
const (
	AccountDeployed  = "account.deployed"
	SessionActivated = "session.activated"
	GroupSplit       = "group.split"
)

// Event is a domain fact published after a chain state change.
type Event struct {
	Name       string         `json:"name"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

// New stamps an event with the current time.
func New(name, key string, data map[string]any) Event {
	return Event{Name: name, Key: key, OccurredAt: time.Now().UTC(), Data: data}
}

// Publisher delivers events downstream. Publishing is best effort: callers
// log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher builds a publisher backed by logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	if p == nil || p.logger == nil {
		return nil
	}
	p.logger.Info("event", "name", event.Name, "key", event.Key, "data", event.Data)
	return nil
}

// Nop discards events.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }
