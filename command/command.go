package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dkrizic/groupstore/constant"
	"github.com/dkrizic/groupstore/group"
	"github.com/dkrizic/groupstore/persistence/factory"
	"github.com/dkrizic/groupstore/store"
	"github.com/urfave/cli/v3"
)

// DefaultQuota mirrors the per-origin limit browsers apply to local storage.
const DefaultQuota = 5 * 1024 * 1024

// StorageFlags are shared by every command that opens the group store.
func StorageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     constant.StorageType,
			Value:    constant.StorageTypeFile,
			Category: "storage",
			Usage:    "Type of storage to use: inmemory, file, sqlite, configmap",
			Sources:  cli.EnvVars("STORAGE_TYPE"),
			Action: func(ctx context.Context, cmd *cli.Command, s string) error {
				switch s {
				case constant.StorageTypeInMemory, constant.StorageTypeFile, constant.StorageTypeSQLite:
					return nil
				case constant.StorageTypeConfigMap:
					if cmd.String(constant.ConfigMapName) == "" {
						return fmt.Errorf("configmap-name cannot be empty when storage-type is configmap")
					}
					return nil
				default:
					return fmt.Errorf("invalid storage type: %s", s)
				}
			},
		},
		&cli.StringFlag{
			Name:     constant.ConfigMapName,
			Category: "storage",
			Usage:    "Name of the ConfigMap to use for configmap storage",
			Sources:  cli.EnvVars("CONFIGMAP_NAME"),
		},
		&cli.StringFlag{
			Name:     constant.FilePath,
			Value:    "groupstore.json",
			Category: "storage",
			Usage:    "Path of the JSON file for file storage",
			Sources:  cli.EnvVars("FILE_PATH"),
		},
		&cli.StringFlag{
			Name:     constant.SQLitePath,
			Value:    "groupstore.db",
			Category: "storage",
			Usage:    "Path of the database for sqlite storage",
			Sources:  cli.EnvVars("SQLITE_PATH"),
		},
		&cli.IntFlag{
			Name:     constant.Quota,
			Value:    DefaultQuota,
			Category: "storage",
			Usage:    "Maximum bytes for inmemory storage, 0 for unlimited",
			Sources:  cli.EnvVars("QUOTA"),
		},
		&cli.StringFlag{
			Name:     constant.Key,
			Value:    constant.GroupKey,
			Category: "storage",
			Usage:    "Key the group is stored under",
			Sources:  cli.EnvVars("KEY"),
		},
		&cli.StringFlag{
			Name:     constant.DefaultGroup,
			Category: "storage",
			Usage:    "JSON file with the group to store when nothing is stored yet",
			Sources:  cli.EnvVars("DEFAULT_GROUP"),
		},
		&cli.BoolFlag{
			Name:     constant.NotificationEnabled,
			Value:    false,
			Category: "notification",
			Usage:    "Send a notification for every write",
			Sources:  cli.EnvVars("NOTIFICATION_ENABLED"),
		},
		&cli.StringFlag{
			Name:     constant.NotificationType,
			Value:    constant.NotificationTypeLog,
			Category: "notification",
			Usage:    "Notification type: log",
			Sources:  cli.EnvVars("NOTIFICATION_TYPE"),
		},
	}
}

// OpenStore builds the configured persistence and an initialized group store
// on top of it. When nothing is stored yet the default group is written. The
// returned close function releases the persistence.
func OpenStore(ctx context.Context, cmd *cli.Command) (*store.Store[group.Group], func() error, error) {
	pers, err := factory.NewPersistence(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	def, err := defaultGroup(ctx, cmd)
	if err != nil {
		pers.Close()
		return nil, nil, err
	}

	s := store.New(pers,
		store.WithKey[group.Group](cmd.String(constant.Key)),
		store.WithDefault(def),
	)
	if err := s.Initialize(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to initialize store", "key", s.Key(), "error", err)
		pers.Close()
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return s, pers.Close, nil
}

// LoadGroup returns the stored group without writing anything. When nothing
// is stored yet it returns the default group.
func LoadGroup(ctx context.Context, cmd *cli.Command) (group.Group, error) {
	pers, err := factory.NewPersistence(ctx, cmd)
	if err != nil {
		return group.Group{}, err
	}
	defer pers.Close()

	s := store.New[group.Group](pers, store.WithKey[group.Group](cmd.String(constant.Key)))
	err = s.Initialize(ctx)
	if errors.Is(err, store.ErrNotFound) {
		slog.InfoContext(ctx, "Nothing stored, showing default", "key", s.Key())
		return defaultGroup(ctx, cmd)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load group", "key", s.Key(), "error", err)
		return group.Group{}, fmt.Errorf("failed to load group: %w", err)
	}
	return s.Get(), nil
}

func defaultGroup(ctx context.Context, cmd *cli.Command) (group.Group, error) {
	path := cmd.String(constant.DefaultGroup)
	if path == "" {
		return group.Empty(), nil
	}
	def, err := ReadGroup(path, nil)
	if err != nil {
		return group.Group{}, err
	}
	slog.InfoContext(ctx, "Default group loaded", "path", path, "name", def.Name)
	return def, nil
}

// ReadGroup decodes a group from path, or from stdin when path is "-".
func ReadGroup(path string, stdin io.Reader) (group.Group, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
		if r == nil {
			r = os.Stdin
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return group.Group{}, fmt.Errorf("opening group file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var g group.Group
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return group.Group{}, fmt.Errorf("decoding group from %s: %w", path, err)
	}
	return g, nil
}
