package persistence

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned when the backend refuses a write because it is full.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrUnavailable is returned when the backend cannot be reached or opened.
	ErrUnavailable = errors.New("persistence unavailable")
)

// Persistence is a synchronous key/value store of text.
// Read reports ok == false for a key that was never written.
type Persistence interface {
	Read(ctx context.Context, key string) (text string, ok bool, err error)
	Write(ctx context.Context, key string, text string) error
}
