package tile

import (
	"context"
	"time"
)

// RadarResolver looks up the radar provider's current nowcast frame.
type RadarResolver interface {
	ResolveCurrentRadarDataset(ctx context.Context) (RadarDataset, error)
}

// RadarSource builds the radar tile URL for a resolved dataset.
type RadarSource interface {
	RadarURL(ds RadarDataset, c Coordinate) string
}

// LayerSource abstracts a tile provider whose URL depends only on the
// coordinate (cloud overlay, base map).
type LayerSource interface {
	Name() string
	URL(c Coordinate) (string, error)
}

// LayerFetcher downloads, persists and decodes raster layers.
type LayerFetcher interface {
	FetchLayer(ctx context.Context, c Coordinate, kind LayerKind, sourceURL string) (Layer, error)
	LoadLayer(c Coordinate, kind LayerKind) (Layer, error)
}

// Composer merges layers into the final bitmap artifact.
type Composer interface {
	Compose(ctx context.Context, c Coordinate, layers []Layer) (Artifact, error)
}

// History is the contract the generation history (in-memory or otherwise) must satisfy.
type History interface {
	SaveResult(c Coordinate, r Result)
	GetLatest(c Coordinate) (Result, error)
	GetRange(c Coordinate, from, to time.Time) ([]Result, error)
}
