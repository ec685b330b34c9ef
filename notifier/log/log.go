package log

// implements a Notifier that logs notifications using slog.

import (
	"context"
	"log/slog"

	"github.com/dkrizic/groupstore/notifier"
	"go.opentelemetry.io/otel"
)

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NewLogNotifierWithLogger logs to the given logger instead of slog.Default().
func NewLogNotifierWithLogger(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notification notifier.Notification) error {
	ctx, span := otel.Tracer("notifier/log").Start(ctx, "Notify")
	defer span.End()

	logger := n.logger
	if logger == nil {
		logger = slog.Default()
	}

	size := 0
	if notification.Action.Value != nil {
		size = len(*notification.Action.Value)
	}
	logger.InfoContext(ctx, "Notification", "action_type", notification.Action.Type, "key", notification.Action.Key, "size", size)
	return nil
}
