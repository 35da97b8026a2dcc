package mjpegmft

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/nv12"
	"github.com/user/mjpegcap/pkg/ports"
)

const (
	eventQueueSize = 16
	inputQueueSize = 4
)

// job is one unit of work for the decode worker.
type job struct {
	data      []byte
	timestamp time.Duration
	drain     bool
}

// Software decodes MJPEG with image/jpeg on a worker goroutine.
// It follows the asynchronous transform contract: one need-input event per
// accepted sample, one have-output event per decoded frame.
type Software struct {
	logger ports.Logger

	mu         sync.Mutex
	inputType  ports.MediaType
	outputType ports.MediaType
	available  []ports.MediaType
	inputSet   bool
	outputSet  bool
	credits    int
	outputs    []*ports.Frame
	running    bool
	stop       chan struct{}
	wg         sync.WaitGroup

	events    chan ports.EventType
	inputs    chan job
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSoftware creates a software transform. The worker starts on MessageBeginStreaming.
func NewSoftware(logger ports.Logger) *Software {
	return &Software{
		logger: logger,
		events: make(chan ports.EventType, eventQueueSize),
		inputs: make(chan job, inputQueueSize),
		closed: make(chan struct{}),
	}
}

// StreamIDs reports ErrNotImplemented; the transform has fixed streams 0 and 0.
func (s *Software) StreamIDs() (uint32, uint32, error) {
	return 0, 0, ports.ErrNotImplemented
}

// SetInputType accepts MJPEG input of a known frame size.
func (s *Software) SetInputType(streamID uint32, mt ports.MediaType) error {
	if mt.Subtype != ports.SubtypeMJPG {
		return fmt.Errorf("%w: input subtype %s", ports.ErrInvalidMediaType, mt.Subtype)
	}
	if mt.Width <= 0 || mt.Height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ports.ErrInvalidMediaType, mt.Width, mt.Height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputType = mt
	s.inputSet = true
	s.outputSet = false
	s.available = []ports.MediaType{nv12Type(mt.Width, mt.Height, mt)}
	return nil
}

// OutputTypes returns NV12 at the current frame size.
func (s *Software) OutputTypes(streamID uint32) ([]ports.MediaType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inputSet {
		return nil, fmt.Errorf("%w: input type not set", ports.ErrInvalidMediaType)
	}
	return append([]ports.MediaType(nil), s.available...), nil
}

// SetOutputType selects NV12 output.
func (s *Software) SetOutputType(streamID uint32, mt ports.MediaType) error {
	if mt.Subtype != ports.SubtypeNV12 {
		return fmt.Errorf("%w: output subtype %s", ports.ErrInvalidMediaType, mt.Subtype)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inputSet {
		return fmt.Errorf("%w: input type not set", ports.ErrInvalidMediaType)
	}
	s.outputType = mt
	s.outputSet = true
	return nil
}

// ProcessMessage handles streaming commands.
func (s *Software) ProcessMessage(msg ports.Message) error {
	if s.isClosed() {
		return ports.ErrTransformClosed
	}

	switch msg {
	case ports.MessageFlush:
		s.mu.Lock()
		s.outputs = nil
		s.mu.Unlock()
	case ports.MessageBeginStreaming:
		s.startWorker()
	case ports.MessageStartOfStream:
		s.requestInput()
	case ports.MessageEndOfStream:
		// Nothing buffered beyond the input queue.
	case ports.MessageDrain:
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			s.emit(ports.EventDrainComplete)
			return nil
		}
		select {
		case s.inputs <- job{drain: true}:
		case <-s.closed:
			return ports.ErrTransformClosed
		}
	case ports.MessageEndStreaming:
		s.stopWorker()
	default:
		return fmt.Errorf("mjpegmft: unsupported message %s", msg)
	}
	return nil
}

// NextEvent blocks until the worker raises an event.
func (s *Software) NextEvent(ctx context.Context) (ports.EventType, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.closed:
		return 0, ports.ErrTransformClosed
	}
}

// ProcessInput queues a copy of the sample for decoding.
// It fails with ports.ErrNotAccepting unless a need-input event is outstanding.
func (s *Software) ProcessInput(streamID uint32, sample *ports.Sample) error {
	if s.isClosed() {
		return ports.ErrTransformClosed
	}

	s.mu.Lock()
	if s.credits == 0 {
		s.mu.Unlock()
		return ports.ErrNotAccepting
	}
	s.credits--
	s.mu.Unlock()

	j := job{
		data:      append([]byte(nil), sample.Data...),
		timestamp: sample.Timestamp,
	}
	select {
	case s.inputs <- j:
		return nil
	case <-s.closed:
		return ports.ErrTransformClosed
	}
}

// ProcessOutput returns the oldest decoded frame.
// A frame whose size differs from the selected output type is held back
// with ports.ErrStreamChange until the output type is set again.
func (s *Software) ProcessOutput(streamID uint32) (*ports.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.outputs) == 0 {
		return nil, ports.ErrNeedMoreInput
	}

	frame := s.outputs[0]
	if !s.outputSet || frame.Width != s.outputType.Width || frame.Height != s.outputType.Height {
		s.available = []ports.MediaType{nv12Type(frame.Width, frame.Height, s.inputType)}
		s.outputSet = false
		return nil, ports.ErrStreamChange
	}

	s.outputs = s.outputs[1:]
	return frame, nil
}

// Close stops the worker and releases the transform.
func (s *Software) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.stopWorker()
	return nil
}

func (s *Software) startWorker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.stop)
}

func (s *Software) stopWorker() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Software) run(stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case j := <-s.inputs:
			if j.drain {
				s.emit(ports.EventDrainComplete)
				continue
			}
			s.decode(j)
		}
	}
}

func (s *Software) decode(j job) {
	img, err := jpeg.Decode(bytes.NewReader(j.data))
	if err != nil {
		s.logger.Warn(l10n.F("Dropping undecodable sample at %s: %s", j.timestamp.String(), err.Error()))
		s.requestInput()
		return
	}

	frame := nv12.FromImage(img, j.timestamp)

	s.mu.Lock()
	s.outputs = append(s.outputs, frame)
	s.mu.Unlock()

	s.emit(ports.EventHaveOutput)
	s.requestInput()
}

// requestInput grants one input credit and announces it.
func (s *Software) requestInput() {
	s.mu.Lock()
	s.credits++
	s.mu.Unlock()
	s.emit(ports.EventNeedInput)
}

func (s *Software) emit(ev ports.EventType) {
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

func (s *Software) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func nv12Type(width, height int, input ports.MediaType) ports.MediaType {
	return ports.MediaType{
		Subtype:      ports.SubtypeNV12,
		Width:        width,
		Height:       height,
		FrameRateNum: input.FrameRateNum,
		FrameRateDen: input.FrameRateDen,
		Stride:       nv12.Stride(width),
	}
}

var _ ports.Transform = (*Software)(nil)
