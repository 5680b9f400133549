package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/limetech/storeledger/internal/application/ledger"
	domain "github.com/limetech/storeledger/internal/domain/catalog"
	"github.com/limetech/storeledger/internal/infrastructure/audit"
	"github.com/limetech/storeledger/internal/infrastructure/chain"
	"github.com/limetech/storeledger/internal/infrastructure/identity"
	"github.com/limetech/storeledger/internal/infrastructure/memory"
	obsinfra "github.com/limetech/storeledger/internal/infrastructure/observability"
	"github.com/limetech/storeledger/internal/infrastructure/observability/oteltrace"
	"github.com/limetech/storeledger/internal/infrastructure/observability/prometrics"
	"github.com/limetech/storeledger/internal/infrastructure/observability/zaplogger"
	"github.com/limetech/storeledger/internal/infrastructure/outbox"
	"github.com/limetech/storeledger/internal/infrastructure/treasury"
	"github.com/limetech/storeledger/internal/observability"
	"github.com/limetech/storeledger/internal/pkg/config"
	httppresentation "github.com/limetech/storeledger/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	promRegistry := prometrics.New(cfg.ServiceName, "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: promRegistry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of ledger operation invocations.",
			"use_case", "outcome",
		),
		observability.MExternalRequests: promRegistry.Counter(
			string(observability.MExternalRequests),
			"Total number of collaborator calls (treasury, outbox).",
			"peer", "endpoint", "outcome",
		),
		observability.MHTTPRequests: promRegistry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: promRegistry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of ledger operations in seconds.",
			nil,
			"use_case",
		),
		observability.MExternalRequestDuration: promRegistry.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of collaborator calls in seconds.",
			nil,
			"peer", "endpoint",
		),
		observability.MHTTPRequestDuration: promRegistry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.",
			nil,
			"method", "route", "status",
		),
	}
	tel := obsinfra.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := outbox.NewBus(logger)
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	clock := chain.NewClock(cfg.StartHeight)
	go produceBlocks(ctx, clock, cfg.BlockInterval)

	catalogRepo := memory.NewCatalogRepository()
	funds := treasury.NewMemory()
	access := identity.NewStatic(domain.Address(cfg.AdminAddress))

	ledgerService := ledger.NewService(catalogRepo, access, clock, funds, bus, cfg.WarrantyWindow, tel)

	trail := audit.NewTrail(logger)
	trail.Start(bus)

	handler := httppresentation.NewHandler(ledgerService, trail, logger, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("admin", cfg.AdminAddress),
			observability.F("warranty_window", cfg.WarrantyWindow),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error",
				observability.F("error", err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error",
			observability.F("error", err),
		)
	} else {
		logger.Info("http_server_stopped")
	}
}

// produceBlocks advances the chain clock at a fixed interval, standing in for
// the block production of the host chain.
func produceBlocks(ctx context.Context, clock *chain.Clock, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			clock.Advance(1)
		}
	}
}
