package ports

import (
	"context"
	"errors"
)

// EventType is a notification raised by an asynchronous transform.
type EventType int

const (
	// EventNeedInput grants permission for exactly one ProcessInput call.
	EventNeedInput EventType = iota + 1
	// EventHaveOutput means exactly one ProcessOutput call may return a frame.
	EventHaveOutput
	// EventDrainComplete follows MessageDrain once all pending output was delivered.
	EventDrainComplete
)

// String returns the event name used in logs.
func (e EventType) String() string {
	switch e {
	case EventNeedInput:
		return "need-input"
	case EventHaveOutput:
		return "have-output"
	case EventDrainComplete:
		return "drain-complete"
	default:
		return "unknown"
	}
}

// Message is a command sent to a transform.
type Message int

const (
	MessageFlush Message = iota
	MessageBeginStreaming
	MessageStartOfStream
	MessageEndOfStream
	MessageDrain
	MessageEndStreaming
)

// String returns the message name used in logs.
func (m Message) String() string {
	switch m {
	case MessageFlush:
		return "flush"
	case MessageBeginStreaming:
		return "begin-streaming"
	case MessageStartOfStream:
		return "start-of-stream"
	case MessageEndOfStream:
		return "end-of-stream"
	case MessageDrain:
		return "drain"
	case MessageEndStreaming:
		return "end-streaming"
	default:
		return "unknown"
	}
}

var (
	// ErrNeedMoreInput is returned by ProcessOutput when the transform holds no
	// output yet. It is not a failure.
	ErrNeedMoreInput = errors.New("transform: need more input")

	// ErrStreamChange is returned by ProcessOutput when the output type must be
	// negotiated again before the next frame can be delivered.
	ErrStreamChange = errors.New("transform: output stream changed")

	// ErrNotAccepting is returned by ProcessInput when no need-input event is outstanding.
	ErrNotAccepting = errors.New("transform: not accepting input")

	// ErrNotImplemented is returned by optional calls such as StreamIDs.
	ErrNotImplemented = errors.New("transform: not implemented")

	// ErrInvalidMediaType is returned when a media type is rejected.
	ErrInvalidMediaType = errors.New("transform: invalid media type")

	// ErrTransformClosed is returned after Close.
	ErrTransformClosed = errors.New("transform: closed")
)

// Transform is an asynchronous decode block: it accepts compressed samples
// and produces decoded frames, signalling readiness through events.
type Transform interface {
	// StreamIDs returns the input and output stream identifiers.
	// ErrNotImplemented means both are 0.
	StreamIDs() (input, output uint32, err error)

	// SetInputType sets the compressed input format.
	SetInputType(streamID uint32, mt MediaType) error

	// OutputTypes lists the output formats available for the current input type,
	// in the transform's order of preference.
	OutputTypes(streamID uint32) ([]MediaType, error)

	// SetOutputType selects one of the types returned by OutputTypes.
	SetOutputType(streamID uint32, mt MediaType) error

	// ProcessMessage sends a streaming command.
	ProcessMessage(msg Message) error

	// NextEvent blocks until the transform raises an event.
	NextEvent(ctx context.Context) (EventType, error)

	// ProcessInput submits one sample. The transform keeps no reference to
	// sample.Data after returning; the caller releases the sample.
	ProcessInput(streamID uint32, sample *Sample) error

	// ProcessOutput retrieves one decoded frame.
	ProcessOutput(streamID uint32) (*Frame, error)

	// Close releases the transform.
	Close() error
}
