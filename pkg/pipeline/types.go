package pipeline

import (
	"github.com/user/mjpegcap/pkg/ports"
)

// =============================================================================
// Capture Stage Types
// =============================================================================

// CaptureInput selects a device and the compressed format to request from it.
type CaptureInput struct {
	DeviceIndex int
	Width       int
	Height      int
	FPS         int
}

// DefaultCaptureInput returns CaptureInput with default values.
func DefaultCaptureInput() CaptureInput {
	return CaptureInput{
		DeviceIndex: 0,
		Width:       320,
		Height:      240,
		FPS:         30,
	}
}

// CaptureResult is an opened device streaming MJPEG.
type CaptureResult struct {
	Device    ports.DeviceInfo
	MediaType ports.MediaType // type applied by the device
	Reader    ports.SampleReader
}

// =============================================================================
// Decode Stage Types
// =============================================================================

// PrepareInput configures the decode transform for the capture format.
type PrepareInput struct {
	MediaType ports.MediaType
}

// PrepareResult describes the negotiated transform session.
type PrepareResult struct {
	InputType      ports.MediaType `json:"input"`
	OutputType     ports.MediaType `json:"output"`
	InputStreamID  uint32          `json:"input_stream_id"`
	OutputStreamID uint32          `json:"output_stream_id"`
}

// DecodeInput is one compressed sample. Index counts samples read from the device.
type DecodeInput struct {
	Index  int
	Sample *ports.Sample
}

// DecodeResult carries at most one decoded frame. Frame is nil when the
// transform needs more input before it can produce output.
type DecodeResult struct {
	Frame *ports.Frame
}

// DecodeStats counts the work of a decode session.
type DecodeStats struct {
	Submitted     int `json:"submitted"`
	Produced      int `json:"produced"`
	NeedMoreInput int `json:"need_more_input"`
	StreamChanges int `json:"stream_changes"`
}

// =============================================================================
// Dump Stage Types
// =============================================================================

// DumpInput is one decoded frame. Index counts decoded frames from 0.
type DumpInput struct {
	Index   int
	Frame   *ports.Frame
	Caption string
}

// DumpResult reports which outputs the frame reached.
type DumpResult struct {
	PlanesWritten bool
	RawWritten    bool
	Paths         []string
}

// MediaTypes is the debug record of every negotiated type of a run.
type MediaTypes struct {
	Device    ports.DeviceInfo `json:"device"`
	Capture   ports.MediaType  `json:"capture"`
	Transform PrepareResult    `json:"transform"`
}
