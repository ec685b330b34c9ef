package notifying

// implements the persistence interface and wraps another persistence to send notifications on changes

import (
	"context"
	"io"
	"log/slog"

	"github.com/dkrizic/groupstore/notifier"
	"github.com/dkrizic/groupstore/persistence"
)

type NotifyingPersistence struct {
	wrapped  persistence.Persistence
	notifier notifier.Notifier
}

func NewNotifyingPersistence(wrapped persistence.Persistence, notifier notifier.Notifier) *NotifyingPersistence {
	return &NotifyingPersistence{
		wrapped:  wrapped,
		notifier: notifier,
	}
}

func (p *NotifyingPersistence) Read(ctx context.Context, key string) (string, bool, error) {
	return p.wrapped.Read(ctx, key)
}

func (p *NotifyingPersistence) Write(ctx context.Context, key string, text string) error {
	_, existed, err := p.wrapped.Read(ctx, key)
	if err != nil {
		return err
	}

	err = p.wrapped.Write(ctx, key, text)
	if err != nil {
		return err
	}

	notification := notifier.UpdateNotification(key, text)
	if !existed {
		notification = notifier.CreateNotification(key, text)
	}
	// the write already happened, a failed notification must not report it as failed
	if err := p.notifier.Notify(ctx, notification); err != nil {
		slog.WarnContext(ctx, "Failed to send notification", "key", key, "error", err)
	}
	return nil
}

// Unwrap returns the wrapped persistence.
func (p *NotifyingPersistence) Unwrap() persistence.Persistence {
	return p.wrapped
}

// Close closes the wrapped persistence if it holds resources.
func (p *NotifyingPersistence) Close() error {
	if c, ok := p.wrapped.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
