package services

import (
	"context"

	"github.com/reduanahmadswe/SmartHealthcare-sub001/pkg/logging"
)

// Notification events emitted on state transitions.
const (
	EventBooked      = "consultation.booked"
	EventConfirmed   = "consultation.confirmed"
	EventStarted     = "consultation.started"
	EventCompleted   = "consultation.completed"
	EventCancelled   = "consultation.cancelled"
	EventNoShow      = "consultation.no_show"
	EventRescheduled = "consultation.rescheduled"
	EventRated       = "consultation.rated"
)

// Notifier is the outbound delivery collaborator. Calls are fire-and-forget:
// a failed notification never rolls back the transition that produced it.
type Notifier interface {
	Notify(ctx context.Context, event string, recipientID int64, payload map[string]any)
}

type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event string, recipientID int64, payload map[string]any) {
	n.logger.Info("notification",
		"event", event,
		"recipient_id", recipientID,
		"payload", payload,
	)
}
