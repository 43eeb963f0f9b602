package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/wage-level-map/internal/adapter/counties"
	httpadapter "github.com/couchcryptid/wage-level-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wage-level-map/internal/adapter/kafka"
	"github.com/couchcryptid/wage-level-map/internal/adapter/mapbox"
	"github.com/couchcryptid/wage-level-map/internal/adapter/surface"
	"github.com/couchcryptid/wage-level-map/internal/adapter/wagetable"
	"github.com/couchcryptid/wage-level-map/internal/config"
	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
	"github.com/couchcryptid/wage-level-map/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Rendering surfaces: the in-memory layer served over HTTP, plus Kafka
	// when enabled.
	layer := surface.NewLayer(metrics)
	fanout := surface.NewFanout().Add("memory", layer)
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, metrics, logger)
		fanout.Add("kafka", publisher)
		logger.Info("kafka layer publishing enabled", "topic", cfg.KafkaLayerTopic, "brokers", cfg.KafkaBrokers)
	}

	var loader pipeline.WageTableLoader
	if cfg.WageDataURL != "" {
		loader = wagetable.NewHTTPLoader(cfg.WageDataURL, cfg.WageFetchTimeout, logger)
		logger.Info("loading wage tables over http", "url", cfg.WageDataURL)
	} else {
		loader = wagetable.NewDirLoader(cfg.WageDataDir, logger)
		logger.Info("loading wage tables from directory", "dir", cfg.WageDataDir)
	}

	// Coordinate clicks are feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var locator httpadapter.CountyLocator
	if cfg.MapboxEnabled {
		locator = mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		logger.Info("mapbox county lookup enabled", "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox county lookup disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := pipeline.NewMapSession(fanout, domain.DefaultPalette)
	orchestrator := pipeline.NewOrchestrator(session, loader, logger, metrics, nil)
	controller := pipeline.NewController(ctx, orchestrator, nil, cfg.SalaryDebounce,
		cfg.DefaultOccupation, cfg.DefaultSalary, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Session:  session,
		State:    orchestrator,
		Selector: controller,
		Layer:    layer,
		Loader:   loader,
		Locator:  locator,
		Metrics:  metrics,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Base data loads once; the first selection is rendered as soon as it is ready.
	g.Go(func() error {
		c, err := counties.Load(gctx, cfg.CountiesSource, cfg.CountiesTimeout, logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		session.SetCounties(c)
		metrics.BaseDataCounties.Set(float64(c.Len()))
		controller.Refresh()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		controller.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	controller.Wait()
	if publisher != nil {
		if cerr := publisher.Close(); cerr != nil {
			logger.Error("kafka publisher close error", "error", cerr)
		}
	}
	if err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
