package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core"
	coreasync "github.com/joseph-ayodele/invoice2order/internal/core/async"
	"github.com/joseph-ayodele/invoice2order/internal/export"
	"github.com/joseph-ayodele/invoice2order/internal/ingest"
	"github.com/joseph-ayodele/invoice2order/internal/repository"
	"github.com/joseph-ayodele/invoice2order/internal/server"
	"github.com/joseph-ayodele/invoice2order/internal/services/runs"
)

func main() {
	// Structured logger without time/level noise; the supervisor adds both.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	processor, err := core.FromConfig(cfg, nil, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	runsRepo := repository.NewRunRepository(db, logger)
	loader := ingest.NewLoader(cfg.OCR, cfg.Ingest, nil, logger)
	runsService := runs.NewService(processor, runsRepo, loader, nil, logger)

	queue := coreasync.NewProcessorQueue(processor, logger,
		append(coreasync.FromConfig(cfg.Queue), coreasync.WithSink(runsService.Record))...,
	)
	runsService.SetQueue(queue)

	if len(cfg.Ingest.WatchDirs) > 0 {
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       cfg.Ingest.WatchDirs,
			InitialScan: true,
			SkipHidden:  cfg.Ingest.SkipHidden,
			Debounce:    cfg.Ingest.Debounce,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "dirs", cfg.Ingest.WatchDirs, "error", err)
			os.Exit(1)
		}
		go submitWatched(ctx, runsService, paths, errs, logger)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	opts := []grpc.ServerOption{grpc.UnaryInterceptor(server.UnaryLogging(logger))}
	if cfg.Server.MaxUploadBytes > 0 {
		// Leave room for the message envelope around the upload.
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.Server.MaxUploadBytes+1<<10))
	}
	grpcServer := grpc.NewServer(opts...)

	exportService := export.NewService(runsRepo, logger)
	server.RegisterPipelineServer(grpcServer, server.NewPipelineService(runsService, exportService, cfg.Server.MaxUploadBytes, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.PipelineServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	logger.Info("invoice2order listening", "addr", cfg.Server.GRPCAddr, "engines", len(cfg.OCR.Engines), "watch_dirs", cfg.Ingest.WatchDirs)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ProcessTimeout+5*time.Second)
	defer cancel()
	queue.Shutdown(drainCtx)
}

// submitWatched queues every file the watcher reports until both channels close.
func submitWatched(ctx context.Context, svc *runs.Service, paths <-chan string, errs <-chan error, logger *slog.Logger) {
	for paths != nil || errs != nil {
		select {
		case p, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			res, err := svc.Submit(ctx, p, false)
			if err != nil {
				logger.Warn("watch.submit.failed", "path", p, "error", err)
				continue
			}
			logger.Info("watch.submitted", "path", p, "runs", len(res.RunIDs), "skipped", res.Skipped)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "error", err)
		}
	}
}
