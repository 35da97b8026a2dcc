package ports

import (
	"image"
)

// DebugSink abstracts debug output for intermediate results of a capture run.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveMediaTypesJSON saves the negotiated capture and transform types as JSON.
	SaveMediaTypesJSON(data []byte) error

	// SaveCompressedSample saves a compressed sample exactly as captured.
	SaveCompressedSample(index int, data []byte) error

	// SavePreview saves an RGB rendering of a decoded frame.
	SavePreview(img image.Image) error
}
