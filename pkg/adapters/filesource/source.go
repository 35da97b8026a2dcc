// Package filesource replays recorded MJPEG as a capture device.
//
// The source is either a motion JPEG stream (.mjpeg, concatenated JPEG images)
// or a directory of .jpg files played in lexical order. Timestamps are
// synthesised from the frame rate.
package filesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/ports"
)

// ErrNoFrames is returned when the source holds no JPEG images.
var ErrNoFrames = errors.New("filesource: no JPEG images found")

// DefaultFPS is used when neither the caller nor the request names a frame rate.
const DefaultFPS = 30

// Source implements ports.DeviceEnumerator with a single virtual device.
type Source struct {
	fs     ports.FileSystem
	path   string
	fps    int
	logger ports.Logger
}

// New creates a source over path. fps sets the synthesised frame rate; 0 means DefaultFPS.
func New(fs ports.FileSystem, path string, fps int, logger ports.Logger) *Source {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Source{
		fs:     fs,
		path:   path,
		fps:    fps,
		logger: logger.WithComponent("filesource"),
	}
}

// Devices returns the single device backed by the file or directory.
func (s *Source) Devices() ([]ports.DeviceInfo, error) {
	exists, err := s.fs.Exists(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}
	if !exists {
		return nil, nil
	}
	return []ports.DeviceInfo{{
		Index: 0,
		Name:  filepath.Base(s.path),
		Path:  s.path,
	}}, nil
}

// Open loads every image of the source into memory.
func (s *Source) Open(index int) (ports.SampleReader, error) {
	if index != 0 {
		return nil, fmt.Errorf("%w: index %d", ports.ErrDeviceNotFound, index)
	}

	images, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, s.path)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(images[0]))
	if err != nil {
		return nil, fmt.Errorf("read JPEG header of %s: %w", s.path, err)
	}
	s.logger.Debug(l10n.F("Loaded %d images of %dx%d from %s", len(images), cfg.Width, cfg.Height, s.path))

	return &reader{
		images: images,
		native: ports.MediaType{
			Subtype:      ports.SubtypeMJPG,
			Width:        cfg.Width,
			Height:       cfg.Height,
			FrameRateNum: s.fps,
			FrameRateDen: 1,
			Compressed:   true,
		},
		logger: s.logger,
	}, nil
}

func (s *Source) load() ([][]byte, error) {
	isDir, err := s.fs.IsDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}
	if !isDir {
		data, err := s.fs.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		images, err := Split(data)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", s.path, err)
		}
		return images, nil
	}

	var names []string
	for _, pattern := range []string{"*.jpg", "*.jpeg", "*.JPG", "*.JPEG"} {
		matches, err := s.fs.Glob(filepath.Join(s.path, pattern))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", s.path, err)
		}
		names = append(names, matches...)
	}
	sort.Strings(names)

	images := make([][]byte, 0, len(names))
	for i, name := range names {
		// Case-insensitive filesystems match the same file for both patterns.
		if i > 0 && names[i-1] == name {
			continue
		}
		data, err := s.fs.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		images = append(images, data)
	}
	return images, nil
}

// reader replays loaded images in order.
type reader struct {
	images    [][]byte
	native    ports.MediaType
	mediaType ports.MediaType
	next      int
	logger    ports.Logger
}

func (r *reader) Formats() ([]ports.MediaType, error) {
	return []ports.MediaType{r.native}, nil
}

// SetMediaType accepts MJPEG requests and always applies the recorded frame size.
func (r *reader) SetMediaType(mt ports.MediaType) (ports.MediaType, error) {
	if mt.Subtype != ports.SubtypeMJPG {
		return ports.MediaType{}, fmt.Errorf("%w: recorded source only provides %s",
			ports.ErrInvalidMediaType, ports.SubtypeMJPG)
	}
	if !mt.SameGeometry(r.native) {
		r.logger.Warn(l10n.F("Requested %s, recording is %dx%d", mt.String(), r.native.Width, r.native.Height))
	}
	r.mediaType = r.native
	return r.mediaType, nil
}

func (r *reader) ReadSample(ctx context.Context) (*ports.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.next >= len(r.images) {
		return nil, io.EOF
	}

	duration := r.native.FrameDuration()
	sample := ports.NewSample(r.images[r.next], time.Duration(r.next)*duration, nil)
	sample.Duration = duration
	r.next++
	if r.next == len(r.images) {
		sample.Flags |= ports.FlagEndOfStream
	}
	return sample, nil
}

func (r *reader) Close() error {
	r.images = nil
	return nil
}

var _ ports.DeviceEnumerator = (*Source)(nil)
