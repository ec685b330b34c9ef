package notifying

import (
	"context"
	"errors"
	"testing"

	"github.com/dkrizic/groupstore/notifier"
	"github.com/dkrizic/groupstore/persistence"
	"github.com/dkrizic/groupstore/persistence/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, notification notifier.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func TestNotifyingPersistence_Write(t *testing.T) {
	ctx := context.Background()
	n := new(MockNotifier)
	p := NewNotifyingPersistence(inmemory.NewInMemoryPersistence(), n)

	n.On("Notify", mock.Anything, notifier.CreateNotification("group", "v1")).Return(nil).Once()
	n.On("Notify", mock.Anything, notifier.UpdateNotification("group", "v2")).Return(nil).Once()

	assert.NoError(t, p.Write(ctx, "group", "v1"))
	assert.NoError(t, p.Write(ctx, "group", "v2"))

	text, ok, err := p.Read(ctx, "group")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", text)
	n.AssertExpectations(t)
}

func TestNotifyingPersistence_WriteFailureDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	n := new(MockNotifier)
	p := NewNotifyingPersistence(inmemory.NewInMemoryPersistence(inmemory.WithQuota(4)), n)

	err := p.Write(ctx, "group", "too long")
	assert.ErrorIs(t, err, persistence.ErrQuotaExceeded)
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestNotifyingPersistence_NotifierError(t *testing.T) {
	ctx := context.Background()
	n := new(MockNotifier)
	boom := errors.New("boom")
	n.On("Notify", mock.Anything, mock.Anything).Return(boom)

	p := NewNotifyingPersistence(inmemory.NewInMemoryPersistence(), n)
	assert.NoError(t, p.Write(ctx, "group", "v1"))

	text, ok, _ := p.Read(ctx, "group")
	assert.True(t, ok)
	assert.Equal(t, "v1", text)
	n.AssertExpectations(t)
}
