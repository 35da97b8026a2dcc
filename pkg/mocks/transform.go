package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/user/mjpegcap/pkg/ports"
)

// ErrScriptExhausted is returned by Transform.NextEvent when no scripted event is left.
var ErrScriptExhausted = errors.New("mocks: transform event script exhausted")

// OutputResult is one scripted ProcessOutput result.
type OutputResult struct {
	Frame *ports.Frame
	Err   error
}

// Transform is a scripted implementation of ports.Transform.
// NextEvent replays Events in order and ProcessOutput replays Outputs in order.
// ProcessInput enforces the need-input contract: it fails with
// ports.ErrNotAccepting unless a need-input event was delivered and not yet used.
type Transform struct {
	mu sync.Mutex

	Events  []ports.EventType
	Outputs []OutputResult
	Types   []ports.MediaType

	StreamIDsFunc     func() (uint32, uint32, error)
	SetInputTypeFunc  func(streamID uint32, mt ports.MediaType) error
	OutputTypesFunc   func(streamID uint32) ([]ports.MediaType, error)
	SetOutputTypeFunc func(streamID uint32, mt ports.MediaType) error
	ProcessInputFunc  func(streamID uint32, sample *ports.Sample) error
	CloseFunc         func() error

	// Recorded calls for verification
	InputType        ports.MediaType
	OutputTypeCalls  []ports.MediaType
	Messages         []ports.Message
	Inputs           []InputCall
	OutputCalls      int
	Violations       int
	Closed           bool
	outstandingInput int
}

// InputCall records a call to ProcessInput.
type InputCall struct {
	StreamID  uint32
	Data      []byte
	Timestamp int64
}

// NewTransform creates a transform that offers a single NV12 output type.
func NewTransform(events ...ports.EventType) *Transform {
	return &Transform{
		Events: events,
		Types:  []ports.MediaType{{Subtype: ports.SubtypeNV12}},
	}
}

func (m *Transform) StreamIDs() (uint32, uint32, error) {
	if m.StreamIDsFunc != nil {
		return m.StreamIDsFunc()
	}
	return 0, 0, ports.ErrNotImplemented
}

func (m *Transform) SetInputType(streamID uint32, mt ports.MediaType) error {
	m.mu.Lock()
	m.InputType = mt
	m.mu.Unlock()
	if m.SetInputTypeFunc != nil {
		return m.SetInputTypeFunc(streamID, mt)
	}
	return nil
}

func (m *Transform) OutputTypes(streamID uint32) ([]ports.MediaType, error) {
	if m.OutputTypesFunc != nil {
		return m.OutputTypesFunc(streamID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]ports.MediaType, len(m.Types))
	for i, mt := range m.Types {
		if mt.Width == 0 {
			mt.Width, mt.Height = m.InputType.Width, m.InputType.Height
		}
		types[i] = mt
	}
	return types, nil
}

func (m *Transform) SetOutputType(streamID uint32, mt ports.MediaType) error {
	m.mu.Lock()
	m.OutputTypeCalls = append(m.OutputTypeCalls, mt)
	m.mu.Unlock()
	if m.SetOutputTypeFunc != nil {
		return m.SetOutputTypeFunc(streamID, mt)
	}
	return nil
}

func (m *Transform) ProcessMessage(msg ports.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
	return nil
}

func (m *Transform) NextEvent(ctx context.Context) (ports.EventType, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Events) == 0 {
		return 0, ErrScriptExhausted
	}
	event := m.Events[0]
	m.Events = m.Events[1:]
	if event == ports.EventNeedInput {
		m.outstandingInput++
	}
	return event, nil
}

func (m *Transform) ProcessInput(streamID uint32, sample *ports.Sample) error {
	m.mu.Lock()
	if m.outstandingInput == 0 {
		m.Violations++
		m.mu.Unlock()
		return ports.ErrNotAccepting
	}
	m.outstandingInput--
	m.Inputs = append(m.Inputs, InputCall{
		StreamID:  streamID,
		Data:      append([]byte(nil), sample.Data...),
		Timestamp: int64(sample.Timestamp),
	})
	m.mu.Unlock()
	if m.ProcessInputFunc != nil {
		return m.ProcessInputFunc(streamID, sample)
	}
	return nil
}

func (m *Transform) ProcessOutput(streamID uint32) (*ports.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OutputCalls++
	if len(m.Outputs) == 0 {
		return nil, ports.ErrNeedMoreInput
	}
	out := m.Outputs[0]
	m.Outputs = m.Outputs[1:]
	return out.Frame, out.Err
}

func (m *Transform) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ ports.Transform = (*Transform)(nil)
