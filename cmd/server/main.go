package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/api"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/config"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/logging"
	natsclient "github.com/devghori1264/aerophoenix/vmfacade/internal/nats"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/server"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/storage"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/telemetry"
)

func main() {
	if err := rootCmd(run).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootCmd layers flags over the environment and validates once, after flag
// parsing, before handing the config to start.
func rootCmd(start func(config.Config) error) *cobra.Command {
	cfg := config.FromEnv()

	cmd := &cobra.Command{
		Use:          "vmfacade",
		Short:        "Provisioning facade for AWS, Azure, GCP and on-premise VMs",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return start(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC listen address")
	f.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address (empty disables)")
	f.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Badger DB path (:memory: for in-memory)")
	f.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server URL (empty disables events)")
	f.StringVar(&cfg.EventSubject, "event-subject", cfg.EventSubject, "NATS subject for lifecycle events")
	f.BoolVar(&cfg.TraceStdout, "trace-stdout", cfg.TraceStdout, "export spans to stdout")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	f.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "JSON logs")
	f.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	return cmd
}

func run(cfg config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tracer, shutdownTracing, err := telemetry.Setup("vmfacade", cfg.TraceStdout, os.Stdout)
	if err != nil {
		return err
	}

	store, err := storage.NewBadgerStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open badger store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(server.NewMetrics(reg)),
		server.WithTracer(tracer),
	}
	if cfg.NATSURL != "" {
		pub, err := natsclient.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, server.WithPublisher(pub, cfg.EventSubject))
	}
	srv := server.New(store, opts...)

	errCh := make(chan error, 3)

	// Start gRPC server
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}
	grpcServer := grpc.NewServer()
	srv.RegisterGRPC(grpcServer)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewHTTPHandler(srv, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		api.RegisterMetrics(mux, reg)
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("Prometheus metrics available", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Info("shutdown initiated", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		logger.Error("server failed", zap.Error(runErr))
	}

	grpcServer.GracefulStop()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("tracer shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return runErr
}
