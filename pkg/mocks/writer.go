package mocks

import (
	"fmt"

	"github.com/user/mjpegcap/pkg/ports"
)

// FrameWriter is a mock implementation of ports.FrameWriter.
type FrameWriter struct {
	Name string

	WriteFrameFunc func(frame *ports.Frame) error

	// Recorded calls for verification
	Frames []*ports.Frame
	Closed bool
}

func (m *FrameWriter) WriteFrame(frame *ports.Frame) error {
	if m.WriteFrameFunc != nil {
		if err := m.WriteFrameFunc(frame); err != nil {
			return err
		}
	}
	m.Frames = append(m.Frames, frame)
	return nil
}

func (m *FrameWriter) Paths() []string {
	if len(m.Frames) == 0 {
		return nil
	}
	name := m.Name
	if name == "" {
		name = "frames"
	}
	return []string{fmt.Sprintf("%s.out", name)}
}

func (m *FrameWriter) Close() error {
	m.Closed = true
	return nil
}

var _ ports.FrameWriter = (*FrameWriter)(nil)
