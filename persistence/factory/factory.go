package factory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dkrizic/groupstore/constant"
	nf "github.com/dkrizic/groupstore/notifier/factory"
	"github.com/dkrizic/groupstore/persistence"
	"github.com/dkrizic/groupstore/persistence/configmap"
	"github.com/dkrizic/groupstore/persistence/file"
	"github.com/dkrizic/groupstore/persistence/inmemory"
	"github.com/dkrizic/groupstore/persistence/notifying"
	"github.com/dkrizic/groupstore/persistence/sqlite"
	"github.com/urfave/cli/v3"
)

var ErrInvalidStorageType = errors.New("invalid storage type")

// NewPersistence builds the backend selected by --storage-type, wrapped so that
// writes are reported to the configured notifier.
func NewPersistence(ctx context.Context, cmd *cli.Command) (*notifying.NotifyingPersistence, error) {
	stype := cmd.String(constant.StorageType)

	notifier, err := nf.NewNotifier(ctx, cmd)
	if err != nil {
		return nil, err
	}

	var backend persistence.Persistence
	switch stype {
	case constant.StorageTypeInMemory:
		quota := int(cmd.Int(constant.Quota))
		slog.InfoContext(ctx, "In-memory storage selected", "quota", quota)
		backend = inmemory.NewInMemoryPersistence(inmemory.WithQuota(quota))
	case constant.StorageTypeFile:
		path := cmd.String(constant.FilePath)
		slog.InfoContext(ctx, "File storage selected", "path", path)
		backend = file.NewFilePersistence(path)
	case constant.StorageTypeSQLite:
		path := cmd.String(constant.SQLitePath)
		slog.InfoContext(ctx, "SQLite storage selected", "path", path)
		backend, err = sqlite.Open(path)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to open sqlite storage", "path", path, "error", err)
			return nil, err
		}
	case constant.StorageTypeConfigMap:
		cmName := cmd.String(constant.ConfigMapName)
		slog.InfoContext(ctx, "ConfigMap storage selected", "name", cmName)
		backend = configmap.NewConfigMapPersistence(cmName)
	default:
		slog.ErrorContext(ctx, "Invalid storage type", "type", stype)
		return nil, ErrInvalidStorageType
	}

	return notifying.NewNotifyingPersistence(backend, notifier), nil
}
