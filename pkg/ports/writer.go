package ports

// FrameWriter persists decoded frames.
type FrameWriter interface {
	// WriteFrame writes one decoded frame.
	WriteFrame(frame *Frame) error

	// Paths returns the files written so far.
	Paths() []string

	// Close flushes and releases the writer.
	Close() error
}
