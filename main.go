package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/dkrizic/groupstore/command"
	"github.com/dkrizic/groupstore/command/get"
	"github.com/dkrizic/groupstore/command/set"
	"github.com/dkrizic/groupstore/constant"
	"github.com/dkrizic/groupstore/meta"
	"github.com/dkrizic/groupstore/service"
	"github.com/dkrizic/groupstore/telemetry/injectctx"
	"github.com/urfave/cli/v3" // imports as package "cli"
)

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     constant.LogFormat,
			Value:    constant.LogFormatText,
			Category: "logging",
			Usage:    "Log format: text or json",
			Sources:  cli.EnvVars("LOG_FORMAT"),
			Action: func(ctx context.Context, command *cli.Command, s string) error {
				if s != constant.LogFormatText && s != constant.LogFormatJSON {
					return fmt.Errorf("invalid log format: %s", s)
				}
				return nil
			},
		},
		&cli.StringFlag{
			Name:     constant.LogLevel,
			Value:    constant.LogLevelInfo,
			Category: "logging",
			Usage:    "Log level: debug, info, warn, error",
			Sources:  cli.EnvVars("LOG_LEVEL"),
			Action: func(ctx context.Context, command *cli.Command, s string) error {
				if s != constant.LogLevelDebug && s != constant.LogLevelInfo && s != constant.LogLevelWarn && s != constant.LogLevelError {
					return fmt.Errorf("invalid log level: %s", s)
				}
				return nil
			},
		},
	}

	cmd := &cli.Command{
		Name:   meta.Service,
		Usage:  "Persisted group store",
		Flags:  append(flags, command.StorageFlags()...),
		Before: beforeAction,
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print the version number of the group store",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					slog.Info("Group Store", "name", meta.Service, "version", meta.Version)
					return nil
				},
			},
			{
				Name:   "service",
				Usage:  "Serve the group over HTTP and gRPC health checks",
				Before: service.Before,
				Action: service.Service,
				After:  service.After,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     constant.Port,
						Value:    8080,
						Category: "service",
						Usage:    "Port of the HTTP API",
						Sources:  cli.EnvVars("PORT"),
					},
					&cli.IntFlag{
						Name:     constant.GRPCPort,
						Value:    9090,
						Category: "service",
						Usage:    "Port of the gRPC health service",
						Sources:  cli.EnvVars("GRPC_PORT"),
					},
					&cli.BoolFlag{
						Name:     constant.OpenTelemetryEnabled,
						Value:    false,
						Category: "observability",
						Usage:    "Enable OpenTelemetry tracing and metrics",
						Sources:  cli.EnvVars("OPENTELEMETRY_ENABLED"),
					},
					&cli.StringFlag{
						Name:     constant.OpenTelemetryEndpoint,
						Value:    "",
						Category: "observability",
						Usage:    "OTLP endpoint for OpenTelemetry",
						Sources:  cli.EnvVars("OPENTELEMETRY_ENDPOINT"),
					},
					&cli.FloatFlag{
						Name:     constant.OpenTelemetrySampleRatio,
						Value:    0.1,
						Category: "observability",
						Usage:    "Fraction of root spans to sample, between 0 and 1",
						Sources:  cli.EnvVars("OPENTELEMETRY_SAMPLE_RATIO"),
						Action:   validateSampleRatio,
					},
				},
			},
			{
				Name:   "get",
				Usage:  "Print the stored group as JSON, or the default group if nothing is stored",
				Action: get.Get,
			},
			{
				Name:      "set",
				Usage:     "Replace the stored group with the one in a JSON file",
				ArgsUsage: "<file|->",
				Action:    set.Set,
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func validateSampleRatio(ctx context.Context, cmd *cli.Command, f float64) error {
	if f <= 0 || f > 1 {
		return fmt.Errorf("invalid sample ratio: %v", f)
	}
	return nil
}

func beforeAction(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	logFormat := cmd.String(constant.LogFormat)
	logLevel := cmd.String(constant.LogLevel)

	level := slog.LevelInfo
	switch logLevel {
	case constant.LogLevelDebug:
		level = slog.LevelDebug
	case constant.LogLevelInfo:
		level = slog.LevelInfo
	case constant.LogLevelWarn:
		level = slog.LevelWarn
	case constant.LogLevelError:
		level = slog.LevelError
	default:
		return ctx, fmt.Errorf("invalid log level: %s", logLevel)
	}

	// stdout carries the output of get, so logs go to stderr
	var handler slog.Handler
	if logFormat == constant.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	otelhandler := injectctx.NewHandler(handler)

	logger := slog.New(otelhandler)
	slog.SetDefault(logger)

	return ctx, nil
}
