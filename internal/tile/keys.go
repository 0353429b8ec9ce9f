package tile

import "fmt"

// ArtifactKind names the kind of file stored for a coordinate.
type ArtifactKind string

const (
	ArtifactBase      ArtifactKind = "base"
	ArtifactRadar     ArtifactKind = "radar"
	ArtifactCloud     ArtifactKind = "cloud"
	ArtifactComposite ArtifactKind = "composite"
)

// Key returns the storage key for an artifact of the given kind. All file
// naming goes through here; storage backends resolve keys to locations.
//
//	base       png/{z}-{x}-{y}.png
//	radar      png/{z}-{x}-{y}-radar.png
//	cloud      png/{z}-{x}-{y}-cloud.png
//	composite  bmp/{z}-{x}-{y}-composite.bmp
func Key(c Coordinate, kind ArtifactKind) string {
	switch kind {
	case ArtifactBase:
		return fmt.Sprintf("png/%s.png", c)
	case ArtifactComposite:
		return fmt.Sprintf("bmp/%s-composite.bmp", c)
	default:
		return fmt.Sprintf("png/%s-%s.png", c, kind)
	}
}

// LayerKey returns the storage key for the raw bytes of a layer.
func LayerKey(c Coordinate, kind LayerKind) string {
	return Key(c, ArtifactKind(kind))
}
