package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/i474232898/radar-tile-bmp/internal/api/http"
	"github.com/i474232898/radar-tile-bmp/internal/compositor"
	"github.com/i474232898/radar-tile-bmp/internal/config"
	"github.com/i474232898/radar-tile-bmp/internal/errorlog"
	"github.com/i474232898/radar-tile-bmp/internal/observability"
	"github.com/i474232898/radar-tile-bmp/internal/palette"
	"github.com/i474232898/radar-tile-bmp/internal/scheduler"
	"github.com/i474232898/radar-tile-bmp/internal/store"
	"github.com/i474232898/radar-tile-bmp/internal/tile"
	"github.com/i474232898/radar-tile-bmp/internal/tile/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	disk := store.NewDisk(cfg.ImagesDir)
	history := store.NewMemoryStore(cfg.HistoryMax, cfg.HistoryMaxAge)

	reducer, err := palette.New(cfg.PaletteReducer, cfg.ConvertBinary, cfg.ConvertTimeout)
	if err != nil {
		logger.Error("failed to create palette reducer", "error", err)
		os.Exit(1)
	}

	rainviewer := providers.NewRainViewerProvider(httpClient, cfg.WeatherIndexURL, cfg.RadarTileBaseURL, providers.RadarStyle{
		TileSize:    cfg.RadarTileSize,
		ColorScheme: cfg.RadarColorScheme,
		Smooth:      cfg.RadarSmooth,
		Snow:        cfg.RadarSnow,
	})

	deps := tile.Deps{
		Resolver: rainviewer,
		Radar:    rainviewer,
		Fetcher:  providers.NewAcquirer(httpClient, disk, cfg.FetchRetries, logger),
		Composer: compositor.New(disk, reducer, cfg.OutputSize, logger),
		History:  history,
		Metrics:  metrics,
		Logger:   logger,
	}

	// The cloud overlay is disabled by default.
	if cfg.CloudLayerEnabled {
		deps.Cloud = providers.NewOpenWeatherProvider(cfg.CloudTileBaseURL, cfg.OpenWeatherAPIKey)
		logger.Info("cloud layer enabled")
	}
	if cfg.BaseTileURL != "" {
		base, err := providers.NewTemplateProvider("basemap", cfg.BaseTileURL)
		if err != nil {
			logger.Error("invalid BASE_TILE_URL", "error", err)
			os.Exit(1)
		}
		deps.Base = base
	}

	// Core service orchestrating layer acquisition and composition.
	service := tile.NewService(deps)

	// Scheduler that periodically regenerates the configured tiles.
	sched := scheduler.New(cfg.Tiles, cfg.SchedulerInterval, cfg.GenerationTimeout, service, logger, metrics)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := httpapi.NewApp()
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service:           service,
		Disk:              disk,
		ErrorLog:          errorlog.New(cfg.ErrorLogDir),
		Logger:            logger,
		GenerateOnRequest: cfg.GenerateOnRequest,
		GenerateTimeout:   cfg.GenerationTimeout,
	})

	// Start server with graceful shutdown
	go func() {
		logger.Info("Radar BMP Converter listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}
