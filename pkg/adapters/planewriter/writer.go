// Package planewriter dumps the planes of an NV12 frame as grayscale bitmaps.
//
// The luma plane becomes a width x height image and the interleaved CbCr plane
// a width x height/2 image, so chroma shows up as alternating Cb and Cr columns.
// Both are written as 8-bit BMPs with a 256 entry gray palette.
package planewriter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/ideamans/go-l10n"
	"golang.org/x/image/bmp"

	"github.com/user/mjpegcap/pkg/nv12"
	"github.com/user/mjpegcap/pkg/ports"
)

// Default file names inside the output directory.
const (
	DefaultYName  = "planeY.bmp"
	DefaultUVName = "planeUV.bmp"
)

// ErrShortFrame is returned when a frame buffer is smaller than its geometry requires.
var ErrShortFrame = errors.New("planewriter: frame buffer too small")

// Options configures a Writer.
type Options struct {
	Dir    string
	YName  string
	UVName string
}

// Writer implements ports.FrameWriter. Every WriteFrame overwrites both files.
type Writer struct {
	fs     ports.FileSystem
	logger ports.Logger
	yPath  string
	uvPath string
	wrote  bool
}

// New creates a plane writer. Empty names fall back to the defaults.
func New(fs ports.FileSystem, opts Options, logger ports.Logger) *Writer {
	if opts.YName == "" {
		opts.YName = DefaultYName
	}
	if opts.UVName == "" {
		opts.UVName = DefaultUVName
	}
	return &Writer{
		fs:     fs,
		logger: logger.WithComponent("planewriter"),
		yPath:  filepath.Join(opts.Dir, opts.YName),
		uvPath: filepath.Join(opts.Dir, opts.UVName),
	}
}

// WriteFrame writes the luma and chroma planes of frame.
func (w *Writer) WriteFrame(frame *ports.Frame) error {
	if frame.Width <= 0 || frame.Height <= 0 {
		return fmt.Errorf("planewriter: invalid frame size %dx%d", frame.Width, frame.Height)
	}
	if len(frame.Data) < nv12.Size(frame.Width, frame.Height, frame.Stride) {
		return fmt.Errorf("%w: %d bytes for %dx%d stride %d",
			ErrShortFrame, len(frame.Data), frame.Width, frame.Height, frame.Stride)
	}

	if dir := filepath.Dir(w.yPath); dir != "." {
		if err := w.fs.MkdirAll(dir); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	luma := plane(frame.Y(), frame.Stride, frame.Width, frame.Height)
	if err := w.save(w.yPath, luma); err != nil {
		return err
	}
	chroma := plane(frame.UV(), frame.Stride, nv12.Stride(frame.Width), frame.ChromaHeight())
	if err := w.save(w.uvPath, chroma); err != nil {
		return err
	}

	w.wrote = true
	w.logger.Info(l10n.F("Wrote planes of %dx%d frame to %s and %s", frame.Width, frame.Height, w.yPath, w.uvPath))
	return nil
}

// plane views width x height bytes of a strided buffer as a gray image.
func plane(data []byte, stride, width, height int) *image.Gray {
	return &image.Gray{
		Pix:    data[:stride*height],
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}
}

func (w *Writer) save(path string, img *image.Gray) error {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.fs.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Paths returns the two bitmap paths once a frame has been written.
func (w *Writer) Paths() []string {
	if !w.wrote {
		return nil
	}
	return []string{w.yPath, w.uvPath}
}

func (w *Writer) Close() error {
	return nil
}

var _ ports.FrameWriter = (*Writer)(nil)
