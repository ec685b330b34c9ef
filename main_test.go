package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dkrizic/groupstore/constant"
	"github.com/dkrizic/groupstore/telemetry/injectctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func runBefore(t *testing.T, args ...string) error {
	t.Helper()
	cmd := &cli.Command{
		Name: "groupstore",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: constant.LogFormat, Value: constant.LogFormatText},
			&cli.StringFlag{Name: constant.LogLevel, Value: constant.LogLevelInfo},
		},
		Before: beforeAction,
		Action: func(ctx context.Context, cmd *cli.Command) error { return nil },
	}
	return cmd.Run(context.Background(), append([]string{"groupstore"}, args...))
}

func TestBeforeAction(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		debug   bool
	}{
		{name: "defaults", args: nil},
		{name: "json debug", args: []string{"--log-format", "json", "--log-level", "debug"}, debug: true},
		{name: "invalid level", args: []string{"--log-level", "verbose"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runBefore(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &injectctx.Handler{}, slog.Default().Handler())
			assert.Equal(t, tt.debug, slog.Default().Enabled(context.Background(), slog.LevelDebug))
		})
	}
}

func TestValidateSampleRatio(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    float64
		wantErr bool
	}{
		{name: "default", want: 0.1},
		{name: "all", args: []string{"--" + constant.OpenTelemetrySampleRatio, "1"}, want: 1},
		{name: "half", args: []string{"--" + constant.OpenTelemetrySampleRatio, "0.5"}, want: 0.5},
		{name: "zero", args: []string{"--" + constant.OpenTelemetrySampleRatio, "0"}, wantErr: true},
		{name: "above one", args: []string{"--" + constant.OpenTelemetrySampleRatio, "1.5"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got float64
			cmd := &cli.Command{
				Name: "service",
				Flags: []cli.Flag{
					&cli.FloatFlag{
						Name:   constant.OpenTelemetrySampleRatio,
						Value:  0.1,
						Action: validateSampleRatio,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					got = cmd.Float(constant.OpenTelemetrySampleRatio)
					return nil
				},
			}
			err := cmd.Run(context.Background(), append([]string{"service"}, tt.args...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
