package factory

import (
	"context"
	"testing"

	"github.com/dkrizic/groupstore/constant"
	"github.com/dkrizic/groupstore/notifier/log"
	"github.com/dkrizic/groupstore/notifier/none"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func newTestCommand(enabled bool, ntype string) *cli.Command {
	return &cli.Command{
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: constant.NotificationEnabled, Value: enabled},
			&cli.StringFlag{Name: constant.NotificationType, Value: ntype},
		},
	}
}

func TestNewNotifier(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		ntype       string
		expectError bool
		check       func(t *testing.T, n any)
	}{
		{
			name:    "disabled",
			enabled: false,
			ntype:   constant.NotificationTypeLog,
			check: func(t *testing.T, n any) {
				_, ok := n.(*none.NoneNotifier)
				assert.True(t, ok, "expected NoneNotifier when disabled")
			},
		},
		{
			name:    "log",
			enabled: true,
			ntype:   constant.NotificationTypeLog,
			check: func(t *testing.T, n any) {
				_, ok := n.(*log.LogNotifier)
				assert.True(t, ok, "expected LogNotifier")
			},
		},
		{
			name:        "invalid",
			enabled:     true,
			ntype:       "webhook",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNotifier(context.Background(), newTestCommand(tt.enabled, tt.ntype))
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalidNotifierType)
				assert.Nil(t, n)
				return
			}
			assert.NoError(t, err)
			tt.check(t, n)
		})
	}
}
