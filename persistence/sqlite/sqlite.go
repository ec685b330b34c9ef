package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dkrizic/groupstore/persistence"
	"github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry maps to the kv_entries table.
type Entry struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (Entry) TableName() string {
	return "kv_entries"
}

type Persistence struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite database at path and migrates the table.
func Open(path string) (*Persistence, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %v: %w", path, err, persistence.ErrUnavailable)
	}
	return NewSQLitePersistence(db)
}

func NewSQLitePersistence(db *gorm.DB) (*Persistence, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrating kv_entries: %v: %w", err, persistence.ErrUnavailable)
	}
	return &Persistence{db: db}, nil
}

func (p *Persistence) Read(ctx context.Context, key string) (string, bool, error) {
	ctx, span := otel.Tracer("persistence/sqlite").Start(ctx, "Read")
	defer span.End()

	var entry Entry
	// Find instead of First, a missing key is not an error here
	result := p.db.WithContext(ctx).Where("key = ?", key).Limit(1).Find(&entry)
	if result.Error != nil {
		return "", false, fmt.Errorf("reading key %s: %v: %w", key, result.Error, persistence.ErrUnavailable)
	}
	found := result.RowsAffected > 0
	slog.DebugContext(ctx, "Reading", "key", key, "found", found)
	return entry.Value, found, nil
}

func (p *Persistence) Write(ctx context.Context, key string, text string) error {
	ctx, span := otel.Tracer("persistence/sqlite").Start(ctx, "Write")
	defer span.End()

	entry := Entry{Key: key, Value: text}
	result := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&entry)
	if result.Error != nil {
		slog.ErrorContext(ctx, "Failed to write key", "key", key, "error", result.Error)
		if isFull(result.Error) {
			return fmt.Errorf("writing key %s: %v: %w", key, result.Error, persistence.ErrQuotaExceeded)
		}
		return fmt.Errorf("writing key %s: %v: %w", key, result.Error, persistence.ErrUnavailable)
	}
	slog.DebugContext(ctx, "Writing", "key", key, "size", len(text))
	return nil
}

// Close releases the underlying connection pool.
func (p *Persistence) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isFull(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrFull
}
