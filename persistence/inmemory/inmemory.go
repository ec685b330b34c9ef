package inmemory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dkrizic/groupstore/persistence"
	"go.opentelemetry.io/otel"
)

type Persistence struct {
	mu    sync.RWMutex
	data  map[string]string
	quota int
}

type Option func(*Persistence)

// WithQuota limits the total size in bytes of all keys and values.
// Zero means unlimited.
func WithQuota(bytes int) Option {
	return func(p *Persistence) {
		p.quota = bytes
	}
}

func NewInMemoryPersistence(opts ...Option) *Persistence {
	p := &Persistence{
		data: make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Persistence) Read(ctx context.Context, key string) (string, bool, error) {
	ctx, span := otel.Tracer("persistence/inmemory").Start(ctx, "Read")
	defer span.End()

	p.mu.RLock()
	defer p.mu.RUnlock()

	text, ok := p.data[key]
	slog.DebugContext(ctx, "Reading", "key", key, "found", ok)
	return text, ok, nil
}

func (p *Persistence) Write(ctx context.Context, key string, text string) error {
	ctx, span := otel.Tracer("persistence/inmemory").Start(ctx, "Write")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.quota > 0 {
		used := p.usedLocked() - p.entrySizeLocked(key) + len(key) + len(text)
		if used > p.quota {
			slog.WarnContext(ctx, "Write exceeds quota", "key", key, "size", used, "quota", p.quota)
			return fmt.Errorf("writing %q: %d of %d bytes: %w", key, used, p.quota, persistence.ErrQuotaExceeded)
		}
	}

	p.data[key] = text
	slog.DebugContext(ctx, "Writing", "key", key, "size", len(text))
	return nil
}

// Used returns the number of bytes currently stored.
func (p *Persistence) Used() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.usedLocked()
}

func (p *Persistence) usedLocked() int {
	used := 0
	for k, v := range p.data {
		used += len(k) + len(v)
	}
	return used
}

func (p *Persistence) entrySizeLocked(key string) int {
	v, ok := p.data[key]
	if !ok {
		return 0
	}
	return len(key) + len(v)
}
