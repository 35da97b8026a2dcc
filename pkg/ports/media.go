package ports

import (
	"fmt"
	"sync"
	"time"
)

// FourCC identifies a pixel format by its four character code.
type FourCC string

const (
	// SubtypeMJPG is motion JPEG, one baseline JPEG image per sample.
	SubtypeMJPG FourCC = "MJPG"
	// SubtypeNV12 is 8-bit 4:2:0 with a full luma plane followed by
	// an interleaved CbCr plane at half height.
	SubtypeNV12 FourCC = "NV12"
	// SubtypeYUY2 is packed 4:2:2.
	SubtypeYUY2 FourCC = "YUY2"
	// SubtypeYUYV is the V4L2 name for YUY2.
	SubtypeYUYV FourCC = "YUYV"
)

// Code returns the little-endian numeric value used by V4L2 and Media Foundation.
func (f FourCC) Code() uint32 {
	var b [4]byte
	copy(b[:], f)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// FourCCFromCode converts a numeric four character code back to its string form.
func FourCCFromCode(code uint32) FourCC {
	b := []byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)}
	return FourCC(b)
}

// MediaType describes a negotiated stream format.
type MediaType struct {
	Subtype      FourCC `json:"subtype"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FrameRateNum int    `json:"frame_rate_num,omitempty"`
	FrameRateDen int    `json:"frame_rate_den,omitempty"`
	Compressed   bool   `json:"compressed,omitempty"`
	Stride       int    `json:"stride,omitempty"`
}

// FrameRate returns the frame rate in frames per second, or 0 when unset.
func (m MediaType) FrameRate() float64 {
	if m.FrameRateNum == 0 || m.FrameRateDen == 0 {
		return 0
	}
	return float64(m.FrameRateNum) / float64(m.FrameRateDen)
}

// FrameDuration returns the nominal duration of one frame.
func (m MediaType) FrameDuration() time.Duration {
	rate := m.FrameRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}

// SameGeometry reports whether both types describe the same subtype and frame size.
func (m MediaType) SameGeometry(other MediaType) bool {
	return m.Subtype == other.Subtype && m.Width == other.Width && m.Height == other.Height
}

func (m MediaType) String() string {
	if rate := m.FrameRate(); rate > 0 {
		return fmt.Sprintf("%s %dx%d@%g", m.Subtype, m.Width, m.Height, rate)
	}
	return fmt.Sprintf("%s %dx%d", m.Subtype, m.Width, m.Height)
}

// SampleFlags carries per-sample status reported by the capture source.
type SampleFlags uint32

const (
	// FlagStreamTick marks a gap in the stream; the sample carries no data.
	FlagStreamTick SampleFlags = 1 << iota
	// FlagEndOfStream marks the last sample of a finite source.
	FlagEndOfStream
)

// Sample is one timestamped buffer of compressed media data.
// A sample has a single owner at a time; whoever holds it last calls Release.
type Sample struct {
	Data      []byte
	Timestamp time.Duration
	Duration  time.Duration
	Flags     SampleFlags

	once    sync.Once
	release func()
}

// NewSample creates a sample whose release callback runs at most once.
func NewSample(data []byte, timestamp time.Duration, release func()) *Sample {
	return &Sample{
		Data:      data,
		Timestamp: timestamp,
		release:   release,
	}
}

// Release hands the underlying buffer back to its producer.
func (s *Sample) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
		s.Data = nil
	})
}

// Frame is one decoded NV12 picture.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Stride    int
	Timestamp time.Duration
}

// ChromaHeight returns the number of rows in the interleaved CbCr plane.
func (f *Frame) ChromaHeight() int {
	return (f.Height + 1) / 2
}

// Y returns the luma plane, Stride*Height bytes.
func (f *Frame) Y() []byte {
	n := f.Stride * f.Height
	if n > len(f.Data) {
		n = len(f.Data)
	}
	return f.Data[:n]
}

// UV returns the interleaved chroma plane, Stride*ChromaHeight bytes.
func (f *Frame) UV() []byte {
	start := f.Stride * f.Height
	end := start + f.Stride*f.ChromaHeight()
	if start > len(f.Data) {
		return nil
	}
	if end > len(f.Data) {
		end = len(f.Data)
	}
	return f.Data[start:end]
}
