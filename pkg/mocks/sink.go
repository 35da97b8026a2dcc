package mocks

import (
	"image"
	"sync"

	"github.com/user/mjpegcap/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	MediaTypesJSON    []byte
	CompressedSamples map[int][]byte
	Preview           image.Image

	SaveMediaTypesJSONFunc func(data []byte) error
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:           enabled,
		CompressedSamples: make(map[int][]byte),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveMediaTypesJSON(data []byte) error {
	if m.SaveMediaTypesJSONFunc != nil {
		return m.SaveMediaTypesJSONFunc(data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MediaTypesJSON = data
	return nil
}

func (m *DebugSink) SaveCompressedSample(index int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompressedSamples[index] = append([]byte(nil), data...)
	return nil
}

func (m *DebugSink) SavePreview(img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Preview = img
	return nil
}

var _ ports.DebugSink = (*DebugSink)(nil)

// NullSink is a no-op implementation of ports.DebugSink.
type NullSink struct{}

func (m *NullSink) Enabled() bool                                     { return false }
func (m *NullSink) SaveMediaTypesJSON(data []byte) error              { return nil }
func (m *NullSink) SaveCompressedSample(index int, data []byte) error { return nil }
func (m *NullSink) SavePreview(img image.Image) error                 { return nil }

var _ ports.DebugSink = (*NullSink)(nil)
