// Package summarizer provides summary generation for capture runs.
package summarizer

import "time"

// Summary contains all data collected during a capture run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	Device    DeviceInfo
	Capture   CaptureInfo
	Transform TransformInfo
	Run       RunInfo

	// Outputs lists every file written by the run.
	Outputs []string
}

// DeviceInfo identifies the capture device.
type DeviceInfo struct {
	Index int
	Name  string
	Path  string
}

// CaptureInfo describes the negotiated capture format.
type CaptureInfo struct {
	Format string
	Width  int
	Height int
	FPS    float64
}

// TransformInfo describes the decode session.
type TransformInfo struct {
	Backend       string
	OutputFormat  string
	Stride        int
	Submitted     int
	Produced      int
	NeedMoreInput int
	StreamChanges int
}

// RunInfo contains counters and timing of the capture loop.
type RunInfo struct {
	Requested    int // configured read attempts
	Samples      int
	Ticks        int
	Frames       int
	FirstFrameMs int64
	ElapsedMs    int64
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithDevice sets device information.
func (b *Builder) WithDevice(index int, name, path string) *Builder {
	b.summary.Device = DeviceInfo{Index: index, Name: name, Path: path}
	return b
}

// WithCapture sets the capture format.
func (b *Builder) WithCapture(capture CaptureInfo) *Builder {
	b.summary.Capture = capture
	return b
}

// WithTransform sets decode session details.
func (b *Builder) WithTransform(transform TransformInfo) *Builder {
	b.summary.Transform = transform
	return b
}

// WithRun sets run counters.
func (b *Builder) WithRun(run RunInfo) *Builder {
	b.summary.Run = run
	return b
}

// WithOutputs sets the written files.
func (b *Builder) WithOutputs(paths []string) *Builder {
	b.summary.Outputs = append([]string(nil), paths...)
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
