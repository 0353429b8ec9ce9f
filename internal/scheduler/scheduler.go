package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/radar-tile-bmp/internal/observability"
	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

// Generator produces the artifact for one tile.
type Generator interface {
	Generate(ctx context.Context, c tile.Coordinate) (tile.Result, error)
}

// Summary counts the outcomes of one sweep.
type Summary struct {
	Succeeded int
	Degraded  int
	Failed    int
}

// Scheduler periodically regenerates the configured tiles.
type Scheduler struct {
	scheduler *gocron.Scheduler
	generator Generator
	tiles     []tile.Coordinate
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a new Scheduler. timeout bounds the generation of a single
// tile within a sweep; zero means no bound.
func New(tiles []tile.Coordinate, interval, timeout time.Duration, generator Generator, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		generator: generator,
		tiles:     tiles,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Start schedules the sweep job and starts the underlying scheduler. The
// first sweep runs immediately; later sweeps never overlap a running one.
func (s *Scheduler) Start() error {
	if len(s.tiles) == 0 {
		s.logger.Warn("scheduler: no tiles configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.metrics.SchedulerRunning.Set(1)
	s.logger.Info("scheduler: started", "tiles", len(s.tiles), "interval", interval)
	return nil
}

// Stop stops the scheduler and cancels any future sweeps.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.metrics.SchedulerRunning.Set(0)
}

// Sweep generates every configured tile, one after another. A failed tile
// is logged and the sweep moves on to the next.
func (s *Scheduler) Sweep(ctx context.Context) Summary {
	s.logger.Info("scheduler: generating tile images", "tiles", len(s.tiles))
	start := time.Now()

	var sum Summary
	for _, c := range s.tiles {
		if ctx.Err() != nil {
			s.logger.Warn("scheduler: sweep cancelled", "error", ctx.Err())
			break
		}

		res, err := s.generateOne(ctx, c)
		switch {
		case err != nil:
			sum.Failed++
			s.metrics.SweepFailures.Inc()
			s.logger.Error("scheduler: tile generation failed", "tile", c.String(), "error", err)
		case res.Status == tile.StatusDegraded:
			sum.Degraded++
		default:
			sum.Succeeded++
		}
	}

	s.metrics.Sweeps.Inc()
	s.logger.Info("scheduler: finished generating tile images",
		"succeeded", sum.Succeeded, "degraded", sum.Degraded, "failed", sum.Failed,
		"duration", time.Since(start))
	return sum
}

func (s *Scheduler) generateOne(ctx context.Context, c tile.Coordinate) (res tile.Result, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// A panicking tile must not take the sweep, or the job, down with it.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: recovered from panic", "tile", c.String(), "panic", r)
			err = tile.ErrPipeline
		}
	}()

	return s.generator.Generate(ctx, c)
}
