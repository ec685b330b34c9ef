// Package file stores all keys in a single JSON object on disk,
// e.g. {"group":"{\"members\":[]}"}. Every write replaces the file atomically
// with renameio.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/dkrizic/groupstore/persistence"
	"github.com/google/renameio"
	"go.opentelemetry.io/otel"
)

type Persistence struct {
	mu       sync.Mutex
	filePath string
}

func NewFilePersistence(filePath string) *Persistence {
	return &Persistence{filePath: filePath}
}

func (p *Persistence) Read(ctx context.Context, key string) (string, bool, error) {
	ctx, span := otel.Tracer("persistence/file").Start(ctx, "Read")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.load()
	if err != nil {
		return "", false, err
	}
	text, ok := data[key]
	slog.DebugContext(ctx, "Reading", "file", p.filePath, "key", key, "found", ok)
	return text, ok, nil
}

func (p *Persistence) Write(ctx context.Context, key string, text string) error {
	ctx, span := otel.Tracer("persistence/file").Start(ctx, "Write")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.load()
	if err != nil {
		return err
	}
	data[key] = text

	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", p.filePath, err)
	}

	if err := writeFile(p.filePath, output); err != nil {
		slog.ErrorContext(ctx, "Failed to write file", "file", p.filePath, "error", err)
		return fmt.Errorf("writing %s: %v: %w", p.filePath, err, classify(err))
	}
	slog.DebugContext(ctx, "Writing", "file", p.filePath, "key", key, "size", len(text))
	return nil
}

// load returns an empty map when the file does not exist yet.
func (p *Persistence) load() (map[string]string, error) {
	raw, err := os.ReadFile(p.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v: %w", p.filePath, err, persistence.ErrUnavailable)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding %s: %v: %w", p.filePath, err, persistence.ErrUnavailable)
	}
	return data, nil
}

// writeFile keeps the errors of the failing syscall so callers can tell a
// full disk apart from other failures.
func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, content, 0o644)
}

func classify(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return persistence.ErrQuotaExceeded
	}
	return persistence.ErrUnavailable
}
