package set

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dkrizic/groupstore/command"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
)

// Set replaces the persisted group with the one read from the "file" argument.
func Set(ctx context.Context, cmd *cli.Command) error {
	ctx, span := otel.Tracer("command/set").Start(ctx, "Set")
	defer span.End()

	path := cmd.StringArg("file")
	if path == "" {
		return errors.New("missing group file, use - for stdin")
	}

	g, err := command.ReadGroup(path, cmd.Root().Reader)
	if err != nil {
		return err
	}

	s, closeFn, err := command.OpenStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	slog.InfoContext(ctx, "Setting group", "key", s.Key(), "name", g.Name, "members", len(g.Members))
	if err := s.Set(ctx, g); err != nil {
		return fmt.Errorf("failed to set group: %w", err)
	}
	return nil
}
