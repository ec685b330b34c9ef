package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dkrizic/groupstore/command"
	"github.com/dkrizic/groupstore/constant"
	"github.com/dkrizic/groupstore/meta"
	"github.com/dkrizic/groupstore/telemetry"
	"github.com/dkrizic/groupstore/telemetry/localmetrics"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/stats"
)

const shutdownTimeout = 10 * time.Second

var otelShutdown func(ctx context.Context) error = nil

func Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	slog.Info("Starting service", "version", meta.Version)

	otelEnabled := cmd.Bool(constant.OpenTelemetryEnabled)
	otelEndpoint := cmd.String(constant.OpenTelemetryEndpoint)

	if otelEnabled {
		slog.InfoContext(ctx, "OpenTelemetry enabled", "endpoint", otelEndpoint, "sample-ratio", cmd.Float(constant.OpenTelemetrySampleRatio))
		if otelEndpoint == "" {
			slog.Error("OTLP endpoint is required when OpenTelemetry is enabled")
			return ctx, fmt.Errorf("otlp endpoint is required when OpenTelemetry is enabled")
		}
		shutdown, err := telemetry.OpenTelemetryConfig{
			ServiceName:    meta.Service,
			ServiceVersion: meta.Version,
			OTLPEndpoint:   otelEndpoint,
			SampleRatio:    cmd.Float(constant.OpenTelemetrySampleRatio),
		}.InitOpenTelemetry(ctx)
		if err != nil {
			slog.Error("Failed to initialize OpenTelemetry", "error", err)
			return ctx, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
		}
		otelShutdown = shutdown
	} else {
		slog.InfoContext(ctx, "OpenTelemetry disabled")
	}

	// instruments must be created after the meter provider is installed
	if err := localmetrics.New(); err != nil {
		slog.WarnContext(ctx, "Failed to create local metrics", "error", err)
	}

	return ctx, nil
}

func After(ctx context.Context, cmd *cli.Command) error {
	if otelShutdown != nil {
		slog.InfoContext(ctx, "Shutting down OpenTelemetry")
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		err := otelShutdown(ctx)
		otelShutdown = nil
		if err != nil {
			slog.Error("Failed to shut down OpenTelemetry", "error", err)
			return fmt.Errorf("failed to shut down OpenTelemetry: %w", err)
		}
	}
	slog.Info("Shutting down service", "version", meta.Version)
	return nil
}

// Service serves the group over HTTP on --port and gRPC health checks on
// --grpc-port until SIGTERM or SIGINT arrives or a server fails.
func Service(ctx context.Context, cmd *cli.Command) error {
	port := cmd.Int(constant.Port)
	grpcPort := cmd.Int(constant.GRPCPort)
	slog.InfoContext(ctx, "Configuration", "port", port, "grpc-port", grpcPort)

	s, closeStore, err := command.OpenStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			slog.Error("Failed to close persistence", "error", err)
		}
	}()

	httpLis, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	grpcLis, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", grpcPort))
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("failed to listen on port %d: %w", grpcPort, err)
	}

	api := NewAPI(s)
	httpServer := &http.Server{
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler(otelgrpc.WithFilter(
			func(stats *stats.RPCTagInfo) bool {
				return !strings.Contains(stats.FullMethodName, "grpc.health")
			},
		))),
	)

	// reflection
	reflection.Register(grpcServer)

	// health
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(meta.Service, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	cancelChan := make(chan os.Signal, 1)
	// catch SIGTERM or SIGINT
	signal.Notify(cancelChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(cancelChan)

	errChan := make(chan error, 2)
	go func() {
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped with error", "error", err)
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(grpcLis); err != nil {
			slog.Error("gRPC server stopped with error", "error", err)
			errChan <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	slog.InfoContext(ctx, "Group service started", "key", s.Key())

	var serveErr error
	select {
	case sig := <-cancelChan:
		slog.Info("Shutting down group service", "signal", sig)
	case serveErr = <-errChan:
	case <-ctx.Done():
		slog.Info("Shutting down group service", "reason", ctx.Err())
	}

	healthServer.Shutdown()
	api.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server did not shut down cleanly", "error", err)
	}
	grpcServer.GracefulStop()

	return serveErr
}
