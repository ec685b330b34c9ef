package factory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dkrizic/groupstore/constant"
	"github.com/dkrizic/groupstore/notifier"
	"github.com/dkrizic/groupstore/notifier/log"
	"github.com/dkrizic/groupstore/notifier/none"
	"github.com/urfave/cli/v3"
)

var ErrInvalidNotifierType = errors.New("invalid notifier type")

func NewNotifier(ctx context.Context, cmd *cli.Command) (notifier.Notifier, error) {
	enabled := cmd.Bool(constant.NotificationEnabled)
	ntype := cmd.String(constant.NotificationType)

	if !enabled {
		slog.InfoContext(ctx, "Notifications disabled")
		return none.NewNoneNotifier(), nil
	}

	switch ntype {
	case constant.NotificationTypeLog:
		slog.InfoContext(ctx, "Log notifier selected")
		return log.NewLogNotifier(), nil
	default:
		slog.ErrorContext(ctx, "Invalid notifier type", "type", ntype)
		return nil, ErrInvalidNotifierType
	}
}
