// Package store keeps a single value in memory and writes it through to a
// persistence.Persistence under a fixed key on every change.
//
// A Store is created once per key and process, initialized from the
// persistence layer, and then read with Get, replaced with Set, and observed
// with Subscribe. The value is encoded as compact JSON.
//
// Subscriber callbacks run synchronously on the goroutine calling Set. They may
// call Get but must not call Set, Subscribe or Reload on the same Store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dkrizic/groupstore/persistence"
	"github.com/dkrizic/groupstore/telemetry/localmetrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultKey is the key used when no WithKey option is given.
const DefaultKey = "group"

// ErrNotFound is returned by Initialize when nothing is stored under the key
// and no default was configured.
var ErrNotFound = errors.New("no value stored")

// ParseError reports stored text that does not decode into the value type.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing stored value %q: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SerializationError reports a value that cannot be encoded.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing value for %q: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

type subscription[T any] struct {
	fn     func(T)
	active atomic.Bool
}

type Store[T any] struct {
	persistence persistence.Persistence
	key         string
	def         *T

	// commitMu serializes Set, Subscribe and Reload so subscribers see
	// values in commit order.
	commitMu sync.Mutex

	mu          sync.RWMutex
	value       T
	initialized bool
	subs        []*subscription[T]
}

type Option[T any] func(*Store[T])

func WithKey[T any](key string) Option[T] {
	return func(s *Store[T]) {
		s.key = key
	}
}

// WithDefault sets the value used when nothing is stored yet.
func WithDefault[T any](v T) Option[T] {
	return func(s *Store[T]) {
		s.def = &v
	}
}

func New[T any](p persistence.Persistence, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		persistence: p,
		key:         DefaultKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func tracer() trace.Tracer {
	return otel.Tracer("store")
}

// Key returns the persistence key of the store.
func (s *Store[T]) Key() string {
	return s.key
}

// Initialized reports whether Initialize has completed successfully.
func (s *Store[T]) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Initialize loads the stored value. When nothing is stored, the default is
// written back so memory and storage agree; without a default ErrNotFound is
// returned. Malformed text yields a *ParseError.
func (s *Store[T]) Initialize(ctx context.Context) error {
	ctx, span := tracer().Start(ctx, "Initialize", trace.WithAttributes(attribute.String("key", s.key)))
	defer span.End()

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	v, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mu.Lock()
	s.value = v
	s.initialized = true
	s.mu.Unlock()

	slog.InfoContext(ctx, "Store initialized", "key", s.key)
	return nil
}

// Reload reads the stored value again and notifies subscribers if it differs
// from the one in memory.
func (s *Store[T]) Reload(ctx context.Context) error {
	ctx, span := tracer().Start(ctx, "Reload", trace.WithAttributes(attribute.String("key", s.key)))
	defer span.End()

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	v, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mu.Lock()
	changed := !s.initialized || !reflect.DeepEqual(s.value, v)
	s.value = v
	s.initialized = true
	subs := s.activeLocked()
	s.mu.Unlock()

	if changed {
		slog.DebugContext(ctx, "Reload replaced value", "key", s.key, "subscribers", len(subs))
		notify(subs, v)
	}
	return nil
}

func (s *Store[T]) load(ctx context.Context) (T, error) {
	var zero T

	text, ok, err := s.persistence.Read(ctx, s.key)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read stored value", "key", s.key, "error", err)
		return zero, fmt.Errorf("reading %q: %w", s.key, err)
	}

	if !ok {
		if s.def == nil {
			return zero, fmt.Errorf("%q: %w", s.key, ErrNotFound)
		}
		slog.InfoContext(ctx, "Nothing stored, using default", "key", s.key)
		text, err := encode(s.key, *s.def)
		if err != nil {
			return zero, err
		}
		if err := s.persistence.Write(ctx, s.key, text); err != nil {
			slog.ErrorContext(ctx, "Failed to store default value", "key", s.key, "error", err)
			return zero, fmt.Errorf("writing default for %q: %w", s.key, err)
		}
		// decode the text so the value in memory is what a later load would return
		return decode[T](s.key, text)
	}

	v, err := decode[T](s.key, text)
	if err != nil {
		slog.ErrorContext(ctx, "Stored value is malformed", "key", s.key, "error", err)
		return zero, err
	}
	return v, nil
}

// Get returns the current value. Values sharing memory (slices, maps,
// pointers) must be treated as read-only; replace them with Set.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set encodes v and writes it to the persistence layer, then replaces the
// value in memory and notifies subscribers in registration order. The value
// kept and passed to subscribers is v decoded from the written text, so it
// equals what Initialize would load. If encoding or writing fails nothing
// changes and no subscriber is called.
func (s *Store[T]) Set(ctx context.Context, v T) error {
	ctx, span := tracer().Start(ctx, "Set", trace.WithAttributes(attribute.String("key", s.key)))
	defer span.End()

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	text, err := encode(s.key, v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "Failed to serialize value", "key", s.key, "error", err)
		return err
	}

	// keep what a later load returns, not the caller's value
	stored, err := decode[T](s.key, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "Serialized value does not decode", "key", s.key, "error", err)
		return &SerializationError{Key: s.key, Err: err}
	}

	if err := s.persistence.Write(ctx, s.key, text); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "Failed to persist value", "key", s.key, "error", err)
		return fmt.Errorf("writing %q: %w", s.key, err)
	}

	s.mu.Lock()
	s.value = stored
	s.initialized = true
	subs := s.activeLocked()
	s.mu.Unlock()

	localmetrics.SetCounter().Add(ctx, 1)
	slog.DebugContext(ctx, "Value set", "key", s.key, "size", len(text), "subscribers", len(subs))
	notify(subs, stored)
	return nil
}

// Subscribe calls fn with the current value right away and again after every
// Set. The returned function removes the subscription; calling it more than
// once has no effect.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	sub := &subscription[T]{fn: fn}
	sub.active.Store(true)

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	current := s.value
	count := len(s.subs)
	s.mu.Unlock()
	localmetrics.SubscriberGauge().Record(context.Background(), int64(count))

	fn(current)

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}
		s.mu.Lock()
		for i, other := range s.subs {
			if other == sub {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				break
			}
		}
		count := len(s.subs)
		s.mu.Unlock()
		localmetrics.SubscriberGauge().Record(context.Background(), int64(count))
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Store[T]) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Store[T]) activeLocked() []*subscription[T] {
	subs := make([]*subscription[T], len(s.subs))
	copy(subs, s.subs)
	return subs
}

// notify skips subscriptions cancelled while earlier callbacks ran.
func notify[T any](subs []*subscription[T], v T) {
	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn(v)
		}
	}
}

func encode[T any](key string, v T) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", &SerializationError{Key: key, Err: err}
	}
	return string(data), nil
}

func decode[T any](key string, text string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		var zero T
		return zero, &ParseError{Key: key, Err: err}
	}
	return v, nil
}
