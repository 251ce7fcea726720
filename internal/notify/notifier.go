// Package notify delivers operator alerts over one or more channels
// (Telegram, Discord). The cycle orchestrator treats delivery as best
// effort; a down webhook never blocks trading.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier fans a message out to all registered senders. A single sender
// failure does not prevent delivery to the remaining senders.
type Notifier struct {
	senders []Sender
	title   string
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. The title
// prefixes every message; empty defaults to "kimpbot".
func NewNotifier(senders []Sender, title string, logger *slog.Logger) *Notifier {
	if strings.TrimSpace(title) == "" {
		title = "kimpbot"
	}
	return &Notifier{
		senders: senders,
		title:   title,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Send dispatches the message to every sender and returns the joined errors
// of the channels that failed.
func (n *Notifier) Send(ctx context.Context, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, n.title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
			)
		}
	}
	return errors.Join(errs...)
}
