package tile

import (
	"fmt"
	"image"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level accepted for a coordinate.
const MaxZoom = 30

// Coordinate identifies a single map tile. It is the identity key for every
// artifact the pipeline writes.
type Coordinate struct {
	Zoom uint32 `json:"zoom"`
	X    uint32 `json:"x"`
	Y    uint32 `json:"y"`
}

// ParseCoordinate builds a Coordinate from decimal strings, as found in
// route parameters and configuration.
func ParseCoordinate(zoom, x, y string) (Coordinate, error) {
	z, err := strconv.ParseUint(zoom, 10, 32)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid zoom %q: %w", zoom, err)
	}
	if z > MaxZoom {
		return Coordinate{}, fmt.Errorf("zoom %d exceeds %d", z, MaxZoom)
	}
	xv, err := strconv.ParseUint(x, 10, 32)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid x %q: %w", x, err)
	}
	yv, err := strconv.ParseUint(y, 10, 32)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid y %q: %w", y, err)
	}
	return Coordinate{Zoom: uint32(z), X: uint32(xv), Y: uint32(yv)}, nil
}

// String returns the canonical "{zoom}-{x}-{y}" form used in file names and logs.
func (c Coordinate) String() string {
	return fmt.Sprintf("%d-%d-%d", c.Zoom, c.X, c.Y)
}

// MapTile converts the coordinate to its slippy-map tile.
func (c Coordinate) MapTile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Zoom))
}

// Bound returns the geographic extent of the tile.
func (c Coordinate) Bound() orb.Bound {
	return c.MapTile().Bound()
}

// LayerKind names the origin of a raster layer.
type LayerKind string

const (
	LayerBase  LayerKind = "base"
	LayerRadar LayerKind = "radar"
	LayerCloud LayerKind = "cloud"
)

// Layer is a decoded raster image together with its origin. A Layer belongs
// to a single pipeline run and is never shared.
type Layer struct {
	Kind  LayerKind
	Image image.Image
}

// RadarDataset describes the provider's current nowcast frame.
type RadarDataset struct {
	Path string `json:"path"`
}

// Artifact is the composited, palette-indexed bitmap for a coordinate.
type Artifact struct {
	Coordinate  Coordinate  `json:"coordinate"`
	Path        string      `json:"path"`
	Layers      []LayerKind `json:"layers"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// Status tags the outcome of a pipeline stage or of a whole run.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Stage names one step of the tile pipeline.
type Stage string

const (
	StageBase     Stage = "base"
	StageMetadata Stage = "metadata"
	StageRadar    Stage = "radar"
	StageCloud    Stage = "cloud"
	StageCompose  Stage = "compose"
)

// StageResult records how a single stage ended.
type StageResult struct {
	Stage  Stage  `json:"stage"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Result is the tagged outcome of one generation run.
type Result struct {
	Coordinate Coordinate    `json:"coordinate"`
	Status     Status        `json:"status"`
	Artifact   *Artifact     `json:"artifact,omitempty"`
	Stages     []StageResult `json:"stages"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
}

// Stage returns the recorded result for the given stage, if any.
func (r Result) Stage(s Stage) (StageResult, bool) {
	for _, st := range r.Stages {
		if st.Stage == s {
			return st, true
		}
	}
	return StageResult{}, false
}
