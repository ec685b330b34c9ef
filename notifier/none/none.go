package none

import (
	"context"

	. "github.com/dkrizic/groupstore/notifier"
	"go.opentelemetry.io/otel"
)

// implements the Notifier interface and does nothing

type NoneNotifier struct {
}

func NewNoneNotifier() *NoneNotifier {
	return &NoneNotifier{}
}

func (n *NoneNotifier) Notify(ctx context.Context, notification Notification) error {
	_, span := otel.Tracer("notifier/none").Start(ctx, "Notify")
	defer span.End()

	return nil
}
