package tile

import "errors"

var (
	// ErrMetadataUnavailable is returned when the current radar dataset
	// cannot be resolved (index unreachable, malformed or empty).
	ErrMetadataUnavailable = errors.New("radar metadata unavailable")

	// ErrAcquisition is returned when a layer cannot be downloaded, read or decoded.
	ErrAcquisition = errors.New("layer acquisition failed")

	// ErrComposition is returned when blending, resizing, encoding or palette
	// reduction fails.
	ErrComposition = errors.New("tile composition failed")

	// ErrPipeline wraps a fatal failure for one coordinate's generation run.
	ErrPipeline = errors.New("tile generation failed")
)
