// Package rawdump appends decoded NV12 frames to a raw video file.
//
// The file carries no header. Play it back with
//
//	ffmpeg -f rawvideo -s WxH -pix_fmt nv12 -i rawframes.yuv out.mp4
package rawdump

import (
	"fmt"
	"path/filepath"

	"github.com/user/mjpegcap/pkg/nv12"
	"github.com/user/mjpegcap/pkg/ports"
)

// DefaultName is the file name used when none is configured.
const DefaultName = "rawframes.yuv"

// Writer implements ports.FrameWriter. The first frame truncates the file,
// later frames are appended. All frames must share one geometry.
type Writer struct {
	fs     ports.FileSystem
	path   string
	frames int
	width  int
	height int
}

// New creates a raw writer for path.
func New(fs ports.FileSystem, path string) *Writer {
	if path == "" {
		path = DefaultName
	}
	return &Writer{fs: fs, path: path}
}

// WriteFrame writes frame without row padding.
func (w *Writer) WriteFrame(frame *ports.Frame) error {
	data := nv12.Pack(frame)
	if w.frames == 0 {
		if dir := filepath.Dir(w.path); dir != "." {
			if err := w.fs.MkdirAll(dir); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := w.fs.WriteFile(w.path, data); err != nil {
			return fmt.Errorf("write %s: %w", w.path, err)
		}
		w.width, w.height = frame.Width, frame.Height
		w.frames = 1
		return nil
	}

	if frame.Width != w.width || frame.Height != w.height {
		return fmt.Errorf("rawdump: frame %d is %dx%d, stream is %dx%d",
			w.frames, frame.Width, frame.Height, w.width, w.height)
	}
	if err := w.fs.AppendFile(w.path, data); err != nil {
		return fmt.Errorf("append %s: %w", w.path, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int {
	return w.frames
}

func (w *Writer) Paths() []string {
	if w.frames == 0 {
		return nil
	}
	return []string{w.path}
}

func (w *Writer) Close() error {
	return nil
}

var _ ports.FrameWriter = (*Writer)(nil)
