package providers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/radar-tile-bmp/internal/store"
	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

// Acquirer downloads raster layers, persists their raw bytes under the
// layer's storage key and decodes them. It implements tile.LayerFetcher.
type Acquirer struct {
	disk     *store.Disk
	httpCfg  HTTPClientConfig
	circuits map[tile.LayerKind]*gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewAcquirer creates an Acquirer. retries is the number of additional
// attempts made after a failed download.
func NewAcquirer(client *http.Client, disk *store.Disk, retries int, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{
		disk: disk,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      retries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		// One breaker per upstream so a radar outage does not block base tiles.
		circuits: map[tile.LayerKind]*gobreaker.CircuitBreaker{
			tile.LayerBase:  newCircuitBreaker("layer-base"),
			tile.LayerRadar: newCircuitBreaker("layer-radar"),
			tile.LayerCloud: newCircuitBreaker("layer-cloud"),
		},
		logger: logger,
	}
}

// FetchLayer downloads sourceURL, checks that it decodes as an image and
// replaces the stored file for (c, kind) with the downloaded bytes.
func (a *Acquirer) FetchLayer(ctx context.Context, c tile.Coordinate, kind tile.LayerKind, sourceURL string) (tile.Layer, error) {
	cb, ok := a.circuits[kind]
	if !ok {
		return tile.Layer{}, fmt.Errorf("%w: unknown layer kind %q", tile.ErrAcquisition, kind)
	}

	a.logger.Debug("downloading layer", "tile", c.String(), "kind", kind, "url", redact(sourceURL))

	body, err := getWithResilience(ctx, a.httpCfg, cb, sourceURL)
	if err != nil {
		return tile.Layer{}, fmt.Errorf("%w: %s %s: %w", tile.ErrAcquisition, kind, c, err)
	}

	img, err := decode(body)
	if err != nil {
		return tile.Layer{}, fmt.Errorf("%w: %s %s: %w", tile.ErrAcquisition, kind, c, err)
	}

	key := tile.LayerKey(c, kind)
	if err := a.disk.WriteFile(key, body); err != nil {
		return tile.Layer{}, fmt.Errorf("%w: store %s: %w", tile.ErrAcquisition, key, err)
	}

	a.logger.Debug("layer stored", "tile", c.String(), "kind", kind, "bytes", len(body))
	return tile.Layer{Kind: kind, Image: img}, nil
}

// LoadLayer decodes the stored file for (c, kind).
func (a *Acquirer) LoadLayer(c tile.Coordinate, kind tile.LayerKind) (tile.Layer, error) {
	key := tile.LayerKey(c, kind)
	data, err := a.disk.ReadFile(key)
	if err != nil {
		return tile.Layer{}, fmt.Errorf("%w: read %s: %w", tile.ErrAcquisition, key, err)
	}
	img, err := decode(data)
	if err != nil {
		return tile.Layer{}, fmt.Errorf("%w: %s: %w", tile.ErrAcquisition, key, err)
	}
	return tile.Layer{Kind: kind, Image: img}, nil
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// redact drops the query string so API keys do not reach the logs.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?..."
	}
	return u
}
