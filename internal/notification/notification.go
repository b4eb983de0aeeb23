package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spliteth/spliteth/internal/logging"
)

const (
	// KindSessionCode carries a one-time login code.
	KindSessionCode = "session_code"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// ErrInvalidMessage is returned for messages with no destination or body.
var ErrInvalidMessage = errors.New("notification: destination and body are required")

// Validate checks that message can be delivered.
func (m Message) Validate() error {
	if m.Destination == "" || m.Body == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of delivering
// them. The destination is masked; the body is kept so codes can be read in
// development.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", logging.MaskPhone(message.Destination),
		"body", message.Body,
	)
	return nil
}
