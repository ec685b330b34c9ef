package get

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dkrizic/groupstore/command"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
)

// Get prints the persisted group as indented JSON. It never writes; on empty
// storage it prints the default group.
func Get(ctx context.Context, cmd *cli.Command) error {
	ctx, span := otel.Tracer("command/get").Start(ctx, "Get")
	defer span.End()

	g, err := command.LoadGroup(ctx, cmd)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding group: %w", err)
	}
	slog.DebugContext(ctx, "Group loaded", "members", len(g.Members))
	_, err = fmt.Fprintln(cmd.Root().Writer, string(out))
	return err
}
