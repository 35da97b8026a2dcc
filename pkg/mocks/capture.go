package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/user/mjpegcap/pkg/ports"
)

// SampleReader is a mock implementation of ports.SampleReader.
// ReadSample replays Samples in order; a nil entry is delivered as a stream tick.
// When Samples is exhausted it returns io.EOF.
type SampleReader struct {
	mu sync.Mutex

	Samples    []*ports.Sample
	NativeList []ports.MediaType

	FormatsFunc      func() ([]ports.MediaType, error)
	SetMediaTypeFunc func(mt ports.MediaType) (ports.MediaType, error)
	ReadSampleFunc   func(ctx context.Context) (*ports.Sample, error)

	// Recorded calls for verification
	MediaType ports.MediaType
	Reads     int
	Closed    bool
}

// NewSampleReader creates a reader that replays the given samples.
func NewSampleReader(samples ...*ports.Sample) *SampleReader {
	return &SampleReader{Samples: samples}
}

func (m *SampleReader) Formats() ([]ports.MediaType, error) {
	if m.FormatsFunc != nil {
		return m.FormatsFunc()
	}
	return m.NativeList, nil
}

func (m *SampleReader) SetMediaType(mt ports.MediaType) (ports.MediaType, error) {
	if m.SetMediaTypeFunc != nil {
		applied, err := m.SetMediaTypeFunc(mt)
		if err == nil {
			m.MediaType = applied
		}
		return applied, err
	}
	m.MediaType = mt
	return mt, nil
}

func (m *SampleReader) ReadSample(ctx context.Context) (*ports.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.Reads++
	m.mu.Unlock()
	if m.ReadSampleFunc != nil {
		return m.ReadSampleFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Samples) == 0 {
		return nil, io.EOF
	}
	sample := m.Samples[0]
	m.Samples = m.Samples[1:]
	return sample, nil
}

func (m *SampleReader) Close() error {
	m.Closed = true
	return nil
}

var _ ports.SampleReader = (*SampleReader)(nil)

// DeviceEnumerator is a mock implementation of ports.DeviceEnumerator.
type DeviceEnumerator struct {
	Infos   []ports.DeviceInfo
	Readers map[int]ports.SampleReader

	DevicesFunc func() ([]ports.DeviceInfo, error)
	OpenFunc    func(index int) (ports.SampleReader, error)

	// Recorded calls for verification
	Opened []int
}

func (m *DeviceEnumerator) Devices() ([]ports.DeviceInfo, error) {
	if m.DevicesFunc != nil {
		return m.DevicesFunc()
	}
	return m.Infos, nil
}

func (m *DeviceEnumerator) Open(index int) (ports.SampleReader, error) {
	m.Opened = append(m.Opened, index)
	if m.OpenFunc != nil {
		return m.OpenFunc(index)
	}
	reader, ok := m.Readers[index]
	if !ok {
		return nil, ports.ErrDeviceNotFound
	}
	return reader, nil
}

var _ ports.DeviceEnumerator = (*DeviceEnumerator)(nil)
