// Package palette converts true-colour bitmap files into palette-indexed
// bitmaps in place.
package palette

import (
	"context"
	"fmt"
	"time"
)

// Reducer rewrites the BMP at path as an 8-bit palette-indexed BMP.
type Reducer interface {
	Reduce(ctx context.Context, path string) error
}

// Reducer kinds accepted by New.
const (
	KindBuiltin     = "builtin"
	KindImageMagick = "imagemagick"
)

// New returns the reducer named by kind. binary and timeout apply to the
// ImageMagick reducer only.
func New(kind, binary string, timeout time.Duration) (Reducer, error) {
	switch kind {
	case "", KindBuiltin:
		return Quantizer{}, nil
	case KindImageMagick:
		return NewImageMagick(binary, timeout), nil
	default:
		return nil, fmt.Errorf("unknown palette reducer %q", kind)
	}
}
