// Package filesink provides a file-based debug sink implementation.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/mjpegcap/pkg/ports"
)

// Sink saves debug output of a capture run under baseDir:
//
//	media-types.json         negotiated capture and transform types
//	samples/sample-NNNN.jpg  compressed samples exactly as captured
//	preview.png              RGB rendering of the first decoded frame
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveMediaTypesJSON saves the negotiated media types.
func (s *Sink) SaveMediaTypesJSON(data []byte) error {
	return s.fs.WriteFile(filepath.Join(s.baseDir, "media-types.json"), data)
}

// SaveCompressedSample saves one MJPEG sample as a standalone JPEG file.
func (s *Sink) SaveCompressedSample(index int, data []byte) error {
	dir := filepath.Join(s.baseDir, "samples")
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("sample-%04d.jpg", index))
	return s.fs.WriteFile(path, data)
}

// SavePreview saves the preview image as PNG.
func (s *Sink) SavePreview(img image.Image) error {
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return s.fs.WriteFile(filepath.Join(s.baseDir, "preview.png"), data)
}

var _ ports.DebugSink = (*Sink)(nil)
