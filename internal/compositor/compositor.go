// Package compositor blends raster layers into the final palette-indexed
// bitmap for a tile.
package compositor

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"

	"github.com/i474232898/radar-tile-bmp/internal/palette"
	"github.com/i474232898/radar-tile-bmp/internal/store"
	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

// DefaultSize is the edge length of the output bitmap.
const DefaultSize = 32

// Compositor implements tile.Composer.
type Compositor struct {
	disk    *store.Disk
	reducer palette.Reducer
	size    int
	logger  *slog.Logger
	clock   clockwork.Clock
}

// New creates a Compositor writing size×size bitmaps into disk.
func New(disk *store.Disk, reducer palette.Reducer, size int, logger *slog.Logger) *Compositor {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{
		disk:    disk,
		reducer: reducer,
		size:    size,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
	}
}

// Compose blends layers in order onto the base layer, scales the result,
// writes it as a BMP and palette-reduces it. The artifact only becomes
// visible at its final path once every step has succeeded.
func (c *Compositor) Compose(ctx context.Context, coord tile.Coordinate, layers []tile.Layer) (tile.Artifact, error) {
	canvas, err := Blend(layers)
	if err != nil {
		return tile.Artifact{}, err
	}

	out := Resize(canvas, c.size)

	key := tile.Key(coord, tile.ArtifactComposite)
	if err := c.publish(ctx, key, out); err != nil {
		return tile.Artifact{}, fmt.Errorf("%w: %s: %w", tile.ErrComposition, key, err)
	}

	kinds := make([]tile.LayerKind, len(layers))
	for i, l := range layers {
		kinds[i] = l.Kind
	}

	c.logger.Debug("composite written", "tile", coord.String(), "layers", kinds, "size", c.size)
	return tile.Artifact{
		Coordinate:  coord,
		Path:        c.disk.Path(key),
		Layers:      kinds,
		GeneratedAt: c.clock.Now().UTC(),
	}, nil
}

// publish writes img to a temporary BMP, reduces its palette in place and
// renames it over key.
func (c *Compositor) publish(ctx context.Context, key string, img image.Image) error {
	tmp, err := c.disk.CreateTemp(key)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := bmp.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("encode bitmap: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := c.reducer.Reduce(ctx, tmpName); err != nil {
		return fmt.Errorf("palette reduction: %w", err)
	}

	return c.disk.Publish(tmpName, key)
}

// Blend draws every layer at (0,0) over the first one, which must be the
// base map. The returned canvas is a fresh image; layers are not modified.
func Blend(layers []tile.Layer) (*image.RGBA, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers to composite", tile.ErrComposition)
	}
	if layers[0].Kind != tile.LayerBase {
		return nil, fmt.Errorf("%w: first layer is %q, want %q", tile.ErrComposition, layers[0].Kind, tile.LayerBase)
	}
	for _, l := range layers {
		if l.Image == nil {
			return nil, fmt.Errorf("%w: %s layer has no image", tile.ErrComposition, l.Kind)
		}
	}

	base := layers[0].Image
	bounds := image.Rect(0, 0, base.Bounds().Dx(), base.Bounds().Dy())
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: base layer is empty", tile.ErrComposition)
	}

	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, base, base.Bounds().Min, draw.Src)

	for _, l := range layers[1:] {
		draw.Draw(canvas, bounds, l.Image, l.Image.Bounds().Min, draw.Over)
	}
	return canvas, nil
}

// Resize scales src to size×size with Catmull-Rom resampling.
func Resize(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
