// Package driver feeds compressed samples through an asynchronous decode
// transform and hands back decoded NV12 frames one at a time.
//
// The transform announces readiness through events. Each need-input event
// permits exactly one ProcessInput call; each have-output event permits one
// ProcessOutput call. The driver never submits a sample without a pending
// need-input event, so at most one sample waits for acceptance.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/ports"
)

var (
	// ErrNoOutputType is returned when the transform offers no NV12 output type.
	ErrNoOutputType = errors.New("driver: transform offers no NV12 output type")

	// ErrNotConfigured is returned when Start is called before Configure.
	ErrNotConfigured = errors.New("driver: transform not configured")

	// ErrNotStarted is returned when decoding before Start.
	ErrNotStarted = errors.New("driver: transform not started")

	// ErrUnexpectedEvent is returned when the transform reports drain complete
	// outside of Drain.
	ErrUnexpectedEvent = errors.New("driver: unexpected transform event")
)

// maxStreamChanges bounds renegotiation attempts for a single output.
const maxStreamChanges = 3

// Stats counts what happened during a decode session.
type Stats struct {
	Submitted     int `json:"submitted"`
	Produced      int `json:"produced"`
	NeedMoreInput int `json:"need_more_input"`
	StreamChanges int `json:"stream_changes"`
	Events        int `json:"events"`
}

// Driver owns one transform session: negotiated types, stream IDs and the
// input credits granted by need-input events.
type Driver struct {
	transform ports.Transform
	logger    ports.Logger

	inputStreamID  uint32
	outputStreamID uint32
	inputType      ports.MediaType
	outputType     ports.MediaType

	found      bool
	configured bool
	started    bool

	credits int
	ready   []*ports.Frame
	stats   Stats
}

// New creates a driver over the given transform.
func New(transform ports.Transform, logger ports.Logger) *Driver {
	return &Driver{
		transform: transform,
		logger:    logger.WithComponent("driver"),
	}
}

// Find resolves the transform's input and output stream identifiers.
// Transforms that do not expose identifiers use 0 for both.
func (d *Driver) Find() error {
	in, out, err := d.transform.StreamIDs()
	switch {
	case errors.Is(err, ports.ErrNotImplemented):
		in, out = 0, 0
	case err != nil:
		return fmt.Errorf("get stream IDs: %w", err)
	}
	d.inputStreamID = in
	d.outputStreamID = out
	d.found = true
	d.logger.Debug(l10n.F("Stream IDs: input %d, output %d", in, out))
	return nil
}

// Configure sets the MJPEG input type and selects the first NV12 output type.
func (d *Driver) Configure(width, height, fps int) error {
	if !d.found {
		if err := d.Find(); err != nil {
			return err
		}
	}

	input := ports.MediaType{
		Subtype:      ports.SubtypeMJPG,
		Width:        width,
		Height:       height,
		FrameRateNum: fps,
		FrameRateDen: 1,
		Compressed:   true,
	}
	if err := d.transform.SetInputType(d.inputStreamID, input); err != nil {
		return fmt.Errorf("set input type %s: %w", input, err)
	}
	d.inputType = input
	d.logger.Debug(l10n.F("Input type set: %s", input.String()))

	if err := d.negotiateOutput(); err != nil {
		return err
	}
	d.configured = true
	return nil
}

// negotiateOutput walks the available output types and selects NV12.
func (d *Driver) negotiateOutput() error {
	types, err := d.transform.OutputTypes(d.outputStreamID)
	if err != nil {
		return fmt.Errorf("get output types: %w", err)
	}
	for i, mt := range types {
		d.logger.Debug(l10n.F("Available output type %d: %s", i, mt.String()))
		if mt.Subtype != ports.SubtypeNV12 {
			continue
		}
		if err := d.transform.SetOutputType(d.outputStreamID, mt); err != nil {
			return fmt.Errorf("set output type %s: %w", mt, err)
		}
		d.outputType = mt
		d.logger.Debug(l10n.F("Output type set: %s", mt.String()))
		return nil
	}
	return ErrNoOutputType
}

// Start flushes the transform and notifies it that streaming begins.
func (d *Driver) Start() error {
	if !d.configured {
		return ErrNotConfigured
	}
	for _, msg := range []ports.Message{
		ports.MessageFlush,
		ports.MessageBeginStreaming,
		ports.MessageStartOfStream,
	} {
		if err := d.transform.ProcessMessage(msg); err != nil {
			return fmt.Errorf("process message %s: %w", msg, err)
		}
	}
	d.started = true
	return nil
}

// DecodeOneFrame submits sample and blocks until one decoded frame is available.
//
// The sample is released after the transform accepts it. When the transform
// asks for another sample before producing output, DecodeOneFrame returns
// ports.ErrNeedMoreInput; the granted input credit is kept for the next call.
func (d *Driver) DecodeOneFrame(ctx context.Context, sample *ports.Sample) (*ports.Frame, error) {
	if !d.started {
		return nil, ErrNotStarted
	}

	pending := sample
	for {
		if pending != nil && d.credits > 0 {
			if err := d.submit(pending); err != nil {
				return nil, err
			}
			pending = nil
		}

		if pending == nil {
			if len(d.ready) > 0 {
				return d.pop(), nil
			}
			if d.credits > 0 {
				d.logger.Debug(l10n.T("Transform requested more input before producing output"))
				return nil, ports.ErrNeedMoreInput
			}
		}

		event, err := d.transform.NextEvent(ctx)
		if err != nil {
			return nil, fmt.Errorf("get event: %w", err)
		}
		d.stats.Events++
		d.logger.Debug(l10n.F("Event: %s", event.String()))

		switch event {
		case ports.EventNeedInput:
			d.credits++
		case ports.EventHaveOutput:
			frame, err := d.pullOutput()
			if err != nil {
				return nil, err
			}
			if frame != nil {
				d.ready = append(d.ready, frame)
			}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedEvent, event)
		}
	}
}

// Drain signals end of stream and collects every frame still held by the transform.
func (d *Driver) Drain(ctx context.Context) ([]*ports.Frame, error) {
	if !d.started {
		return nil, ErrNotStarted
	}

	frames := d.ready
	d.ready = nil

	for _, msg := range []ports.Message{ports.MessageEndOfStream, ports.MessageDrain} {
		if err := d.transform.ProcessMessage(msg); err != nil {
			return frames, fmt.Errorf("process message %s: %w", msg, err)
		}
	}

	for {
		event, err := d.transform.NextEvent(ctx)
		if err != nil {
			return frames, fmt.Errorf("get event: %w", err)
		}
		d.stats.Events++
		d.logger.Debug(l10n.F("Event: %s", event.String()))

		switch event {
		case ports.EventNeedInput:
			// No more input; the credit is dropped.
		case ports.EventHaveOutput:
			frame, err := d.pullOutput()
			if err != nil {
				return frames, err
			}
			if frame != nil {
				frames = append(frames, frame)
			}
		case ports.EventDrainComplete:
			d.credits = 0
			return frames, nil
		default:
			return frames, fmt.Errorf("%w: %s", ErrUnexpectedEvent, event)
		}
	}
}

// Close ends streaming and releases the transform.
func (d *Driver) Close() error {
	var endErr error
	if d.started {
		endErr = d.transform.ProcessMessage(ports.MessageEndStreaming)
		d.started = false
	}
	if err := d.transform.Close(); err != nil {
		return fmt.Errorf("close transform: %w", err)
	}
	if endErr != nil {
		return fmt.Errorf("process message %s: %w", ports.MessageEndStreaming, endErr)
	}
	return nil
}

// InputType returns the negotiated input type.
func (d *Driver) InputType() ports.MediaType {
	return d.inputType
}

// OutputType returns the negotiated output type.
func (d *Driver) OutputType() ports.MediaType {
	return d.outputType
}

// StreamIDs returns the identifiers resolved by Find.
func (d *Driver) StreamIDs() (input, output uint32) {
	return d.inputStreamID, d.outputStreamID
}

// Stats returns the session counters.
func (d *Driver) Stats() Stats {
	return d.stats
}

func (d *Driver) submit(sample *ports.Sample) error {
	d.credits--
	err := d.transform.ProcessInput(d.inputStreamID, sample)
	sample.Release()
	if err != nil {
		return fmt.Errorf("process input: %w", err)
	}
	d.stats.Submitted++
	return nil
}

// pullOutput performs the single ProcessOutput call granted by a have-output event.
// It returns a nil frame when the transform had nothing to deliver.
func (d *Driver) pullOutput() (*ports.Frame, error) {
	for attempt := 0; ; attempt++ {
		frame, err := d.transform.ProcessOutput(d.outputStreamID)
		switch {
		case err == nil:
			if frame != nil {
				d.stats.Produced++
			}
			return frame, nil
		case errors.Is(err, ports.ErrNeedMoreInput):
			d.stats.NeedMoreInput++
			d.logger.Debug(l10n.T("Output buffer empty, waiting for more input"))
			return nil, nil
		case errors.Is(err, ports.ErrStreamChange):
			d.stats.StreamChanges++
			if attempt >= maxStreamChanges {
				return nil, fmt.Errorf("process output: %w (after %d renegotiations)", err, attempt)
			}
			d.logger.Debug(l10n.T("Output stream changed, renegotiating output type"))
			if err := d.negotiateOutput(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("process output: %w", err)
		}
	}
}

func (d *Driver) pop() *ports.Frame {
	frame := d.ready[0]
	d.ready = d.ready[1:]
	return frame
}
