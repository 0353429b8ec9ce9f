package palette

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	stdpalette "image/color/palette"
	"image/draw"
	"os"
	"sort"

	"golang.org/x/image/bmp"
)

// maxColors is the largest palette an 8-bit BMP can carry.
const maxColors = 256

// Quantizer is the in-process reducer. Images with at most 256 distinct
// colours keep them exactly; others are dithered onto the Plan 9 palette.
// Output depends only on the input pixels.
type Quantizer struct{}

func (Quantizer) Reduce(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, Quantize(img)); err != nil {
		return fmt.Errorf("encode paletted bitmap: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Quantize converts img to a palette-indexed image.
func Quantize(img image.Image) *image.Paletted {
	b := img.Bounds()

	if pal, ok := exactPalette(img); ok {
		dst := image.NewPaletted(b, pal)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		return dst
	}

	dst := image.NewPaletted(b, stdpalette.Plan9)
	draw.FloydSteinberg.Draw(dst, b, img, b.Min)
	return dst
}

// exactPalette returns the distinct colours of img in a stable order, or
// false when there are more than maxColors of them.
func exactPalette(img image.Image) (color.Palette, bool) {
	b := img.Bounds()
	seen := make(map[color.RGBA]struct{}, maxColors)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			if _, ok := seen[c]; ok {
				continue
			}
			if len(seen) == maxColors {
				return nil, false
			}
			seen[c] = struct{}{}
		}
	}

	colors := make([]color.RGBA, 0, len(seen))
	for c := range seen {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		return packRGBA(colors[i]) < packRGBA(colors[j])
	})

	pal := make(color.Palette, len(colors))
	for i, c := range colors {
		pal[i] = c
	}
	return pal, true
}

func packRGBA(c color.RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
