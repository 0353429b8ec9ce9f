package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

const (
	DefaultWeatherIndexURL  = "https://api.rainviewer.com/public/weather-maps.json"
	DefaultRadarTileBaseURL = "https://tilecache.rainviewer.com"
)

// RadarStyle holds the fixed rendering parameters of radar tiles.
type RadarStyle struct {
	TileSize    int // 256 or 512
	ColorScheme int
	Smooth      bool
	Snow        bool
}

// DefaultRadarStyle is a 256px tile, color scheme 4, smoothed, with snow.
var DefaultRadarStyle = RadarStyle{TileSize: 256, ColorScheme: 4, Smooth: true, Snow: true}

// RainViewerProvider resolves the current nowcast frame from the RainViewer
// weather-maps index and builds radar tile URLs for it.
type RainViewerProvider struct {
	name         string
	indexURL     string
	tileCacheURL string
	style        RadarStyle
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker
}

// NewRainViewerProvider creates a provider. Empty URLs fall back to the
// public RainViewer endpoints.
func NewRainViewerProvider(client *http.Client, indexURL, tileCacheURL string, style RadarStyle) *RainViewerProvider {
	if indexURL == "" {
		indexURL = DefaultWeatherIndexURL
	}
	if tileCacheURL == "" {
		tileCacheURL = DefaultRadarTileBaseURL
	}
	return &RainViewerProvider{
		name:         "rainviewer",
		indexURL:     indexURL,
		tileCacheURL: strings.TrimRight(tileCacheURL, "/"),
		style:        style,
		httpCfg: HTTPClientConfig{
			Client: client,
			// Retrying the index is left to the caller's next cycle.
			Backoff: BackoffConfig{MaxRetries: 0},
		},
		circuit: newCircuitBreaker("rainviewer-index"),
	}
}

func (p *RainViewerProvider) Name() string {
	return p.name
}

// ResolveCurrentRadarDataset fetches the weather-maps index and returns the
// first nowcast frame. Any failure is reported as tile.ErrMetadataUnavailable.
func (p *RainViewerProvider) ResolveCurrentRadarDataset(ctx context.Context) (tile.RadarDataset, error) {
	body, err := getWithResilience(ctx, p.httpCfg, p.circuit, p.indexURL)
	if err != nil {
		return tile.RadarDataset{}, fmt.Errorf("%w: %s: %w", tile.ErrMetadataUnavailable, p.name, err)
	}

	var payload struct {
		Radar struct {
			Nowcast []struct {
				Time int64  `json:"time"`
				Path string `json:"path"`
			} `json:"nowcast"`
		} `json:"radar"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return tile.RadarDataset{}, fmt.Errorf("%w: decode index: %w", tile.ErrMetadataUnavailable, err)
	}
	if len(payload.Radar.Nowcast) == 0 {
		return tile.RadarDataset{}, fmt.Errorf("%w: index has no nowcast frames", tile.ErrMetadataUnavailable)
	}

	path := payload.Radar.Nowcast[0].Path
	if path == "" {
		return tile.RadarDataset{}, fmt.Errorf("%w: nowcast frame has empty path", tile.ErrMetadataUnavailable)
	}
	return tile.RadarDataset{Path: path}, nil
}

// RadarURL builds
// {tilecache}{path}/{size}/{z}/{x}/{y}/{color}/{smooth}_{snow}.png.
func (p *RainViewerProvider) RadarURL(ds tile.RadarDataset, c tile.Coordinate) string {
	return fmt.Sprintf("%s%s/%d/%d/%d/%d/%d/%d_%d.png",
		p.tileCacheURL, ds.Path, p.style.TileSize, c.Zoom, c.X, c.Y,
		p.style.ColorScheme, boolFlag(p.style.Smooth), boolFlag(p.style.Snow))
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
