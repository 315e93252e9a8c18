package status

import (
	"log/slog"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/gen2brain/beeep"
)

// DesktopNotifier raises error-severity status lines as desktop notifications.
type DesktopNotifier struct {
	title  string
	logger *slog.Logger
	send   func(title, message string) error
}

// NewDesktopNotifier returns a notifier backed by beeep.
func NewDesktopNotifier(title string, logger *slog.Logger) *DesktopNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DesktopNotifier{
		title:  title,
		logger: logger,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Sink returns the notifier as a Reporter sink.
func (n *DesktopNotifier) Sink() Sink {
	return func(l Line) {
		if l.Idle || l.Dimmed || l.Severity != model.SeverityError {
			return
		}
		if err := n.send(n.title, l.Text); err != nil {
			n.logger.Warn("desktop notification failed", "error", err)
		}
	}
}
