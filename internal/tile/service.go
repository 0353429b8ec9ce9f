package tile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/radar-tile-bmp/internal/observability"
)

// Deps bundles the collaborators of a Service. Cloud and Base are optional:
// a nil Cloud disables the cloud overlay, a nil Base means base tiles are
// expected to be pre-seeded on disk.
type Deps struct {
	Resolver RadarResolver
	Radar    RadarSource
	Cloud    LayerSource
	Base     LayerSource
	Fetcher  LayerFetcher
	Composer Composer
	History  History
	Metrics  *observability.Metrics
	Logger   *slog.Logger
	Clock    clockwork.Clock
}

// Service runs the tile pipeline: base, metadata, radar, cloud, compose.
type Service struct {
	resolver RadarResolver
	radar    RadarSource
	cloud    LayerSource
	base     LayerSource
	fetcher  LayerFetcher
	composer Composer
	history  History
	metrics  *observability.Metrics
	logger   *slog.Logger
	clock    clockwork.Clock

	// one in-flight generation per coordinate
	inflight singleflight.Group
}

// NewService creates a new Service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewMetricsForTesting()
	}
	return &Service{
		resolver: d.Resolver,
		radar:    d.Radar,
		cloud:    d.Cloud,
		base:     d.Base,
		fetcher:  d.Fetcher,
		composer: d.Composer,
		history:  d.History,
		metrics:  d.Metrics,
		logger:   d.Logger,
		clock:    d.Clock,
	}
}

// Generate produces the composite artifact for c. Concurrent calls for the
// same coordinate are coalesced into a single run and share its result.
//
// Missing radar metadata or a failed radar/cloud download degrades the
// result but does not fail it. A composition failure is returned wrapped in
// ErrPipeline.
func (s *Service) Generate(ctx context.Context, c Coordinate) (Result, error) {
	v, err, shared := s.inflight.Do(c.String(), func() (interface{}, error) {
		return s.generate(ctx, c)
	})
	if shared {
		s.logger.Debug("joined in-flight generation", "tile", c.String())
	}
	res, _ := v.(Result)
	return res, err
}

func (s *Service) generate(ctx context.Context, c Coordinate) (Result, error) {
	res := Result{Coordinate: c, StartedAt: s.clock.Now().UTC()}
	log := s.logger.With("tile", c.String())

	var layers []Layer

	base, err := s.acquireBase(ctx, c)
	if err != nil {
		log.Error("base layer unavailable", "error", err)
		res.record(StageBase, StatusFailed, err)
		res.record(StageMetadata, StatusSkipped, nil)
		res.record(StageRadar, StatusSkipped, nil)
		res.record(StageCloud, StatusSkipped, nil)
	} else {
		res.record(StageBase, StatusSuccess, nil)
		layers = append(layers, base)

		if radar, ok := s.radarStage(ctx, c, &res, log); ok {
			layers = append(layers, radar)
		}
		if cloud, ok := s.cloudStage(ctx, c, &res, log); ok {
			layers = append(layers, cloud)
		}
	}

	artifact, err := s.composer.Compose(ctx, c, layers)
	if err != nil {
		res.record(StageCompose, StatusFailed, err)
		res.Status = StatusFailed
		s.finish(&res)
		return res, fmt.Errorf("%w: %s: %w", ErrPipeline, c, err)
	}
	res.record(StageCompose, StatusSuccess, nil)
	res.Artifact = &artifact

	res.Status = StatusSuccess
	for _, st := range res.Stages {
		if st.Status == StatusFailed {
			res.Status = StatusDegraded
			break
		}
	}

	s.finish(&res)
	log.Info("tile generated", "status", res.Status, "layers", len(layers), "path", artifact.Path, "duration", res.Duration)
	return res, nil
}

// acquireBase reads the pre-seeded base tile, downloading it first when a
// base source is configured and the file is missing.
func (s *Service) acquireBase(ctx context.Context, c Coordinate) (Layer, error) {
	layer, err := s.fetcher.LoadLayer(c, LayerBase)
	if err == nil || s.base == nil {
		s.observeLayer(LayerBase, err)
		return layer, err
	}

	u, urlErr := s.base.URL(c)
	if urlErr != nil {
		s.observeLayer(LayerBase, urlErr)
		return Layer{}, errors.Join(err, urlErr)
	}
	layer, err = s.fetcher.FetchLayer(ctx, c, LayerBase, u)
	s.observeLayer(LayerBase, err)
	return layer, err
}

func (s *Service) radarStage(ctx context.Context, c Coordinate, res *Result, log *slog.Logger) (Layer, bool) {
	ds, err := s.resolver.ResolveCurrentRadarDataset(ctx)
	if err != nil {
		log.Warn("radar metadata unavailable; compositing without radar", "error", err)
		s.metrics.MetadataFailures.Inc()
		res.record(StageMetadata, StatusFailed, err)
		res.record(StageRadar, StatusSkipped, nil)
		return Layer{}, false
	}
	res.record(StageMetadata, StatusSuccess, nil)

	layer, err := s.fetcher.FetchLayer(ctx, c, LayerRadar, s.radar.RadarURL(ds, c))
	s.observeLayer(LayerRadar, err)
	if err != nil {
		log.Warn("radar layer unavailable; compositing without radar", "error", err, "dataset", ds.Path)
		res.record(StageRadar, StatusFailed, err)
		return Layer{}, false
	}
	res.record(StageRadar, StatusSuccess, nil)
	return layer, true
}

func (s *Service) cloudStage(ctx context.Context, c Coordinate, res *Result, log *slog.Logger) (Layer, bool) {
	if s.cloud == nil {
		res.record(StageCloud, StatusSkipped, nil)
		return Layer{}, false
	}

	u, err := s.cloud.URL(c)
	if err == nil {
		var layer Layer
		layer, err = s.fetcher.FetchLayer(ctx, c, LayerCloud, u)
		s.observeLayer(LayerCloud, err)
		if err == nil {
			res.record(StageCloud, StatusSuccess, nil)
			return layer, true
		}
	}
	log.Warn("cloud layer unavailable; compositing without clouds", "provider", s.cloud.Name(), "error", err)
	res.record(StageCloud, StatusFailed, err)
	return Layer{}, false
}

func (s *Service) finish(res *Result) {
	res.Duration = s.clock.Since(res.StartedAt)
	s.metrics.Generations.WithLabelValues(string(res.Status)).Inc()
	s.metrics.GenerationDuration.Observe(res.Duration.Seconds())
	if s.history != nil {
		s.history.SaveResult(res.Coordinate, *res)
	}
}

func (s *Service) observeLayer(kind LayerKind, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.LayerFetches.WithLabelValues(string(kind), outcome).Inc()
}

// Latest returns the most recent generation result for c.
func (s *Service) Latest(c Coordinate) (Result, error) {
	return s.history.GetLatest(c)
}

// History returns generation results for c between from and to (inclusive).
func (s *Service) History(c Coordinate, from, to time.Time) ([]Result, error) {
	return s.history.GetRange(c, from, to)
}

func (r *Result) record(stage Stage, status Status, err error) {
	sr := StageResult{Stage: stage, Status: status}
	if err != nil {
		sr.Error = err.Error()
	}
	r.Stages = append(r.Stages, sr)
}
