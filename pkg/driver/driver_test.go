package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/user/mjpegcap/pkg/adapters/logger"
	"github.com/user/mjpegcap/pkg/mocks"
	"github.com/user/mjpegcap/pkg/ports"
)

func newFrame(w, h int) *ports.Frame {
	return &ports.Frame{Data: make([]byte, w*h*3/2), Width: w, Height: h, Stride: w}
}

func startedDriver(t *testing.T, transform *mocks.Transform) *Driver {
	t.Helper()
	d := New(transform, logger.NewNoop())
	if err := d.Configure(320, 240, 30); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return d
}

func TestConfigureSetsTypes(t *testing.T) {
	transform := mocks.NewTransform()
	transform.Types = []ports.MediaType{
		{Subtype: ports.SubtypeYUY2},
		{Subtype: ports.SubtypeNV12},
	}
	d := New(transform, logger.NewNoop())

	if err := d.Configure(320, 240, 30); err != nil {
		t.Fatalf("configure failed: %v", err)
	}

	in := transform.InputType
	if in.Subtype != ports.SubtypeMJPG || in.Width != 320 || in.Height != 240 {
		t.Errorf("unexpected input type %s", in)
	}
	if in.FrameRateNum != 30 || in.FrameRateDen != 1 || !in.Compressed {
		t.Errorf("unexpected input rate or compression: %+v", in)
	}
	if len(transform.OutputTypeCalls) != 1 {
		t.Fatalf("expected 1 SetOutputType call, got %d", len(transform.OutputTypeCalls))
	}
	if got := d.OutputType(); got.Subtype != ports.SubtypeNV12 || got.Width != 320 {
		t.Errorf("expected NV12 320 wide output, got %s", got)
	}
}

func TestConfigureNoNV12(t *testing.T) {
	transform := mocks.NewTransform()
	transform.Types = []ports.MediaType{{Subtype: ports.SubtypeYUY2}}
	d := New(transform, logger.NewNoop())

	err := d.Configure(320, 240, 30)
	if !errors.Is(err, ErrNoOutputType) {
		t.Errorf("expected ErrNoOutputType, got %v", err)
	}
}

func TestFindUsesReportedStreamIDs(t *testing.T) {
	transform := mocks.NewTransform(ports.EventNeedInput, ports.EventHaveOutput)
	transform.StreamIDsFunc = func() (uint32, uint32, error) { return 3, 5, nil }
	transform.Outputs = []mocks.OutputResult{{Frame: newFrame(320, 240)}}
	d := startedDriver(t, transform)

	if _, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, nil)); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if transform.Inputs[0].StreamID != 3 {
		t.Errorf("expected input stream 3, got %d", transform.Inputs[0].StreamID)
	}
}

func TestStartRequiresConfigure(t *testing.T) {
	d := New(mocks.NewTransform(), logger.NewNoop())
	if err := d.Start(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := d.DecodeOneFrame(context.Background(), nil); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

func TestStartMessageOrder(t *testing.T) {
	transform := mocks.NewTransform()
	startedDriver(t, transform)

	want := []ports.Message{ports.MessageFlush, ports.MessageBeginStreaming, ports.MessageStartOfStream}
	if len(transform.Messages) != len(want) {
		t.Fatalf("expected %d messages, got %v", len(want), transform.Messages)
	}
	for i, msg := range want {
		if transform.Messages[i] != msg {
			t.Errorf("message %d: expected %s, got %s", i, msg, transform.Messages[i])
		}
	}
}

func TestDecodeOneFrame(t *testing.T) {
	frame := newFrame(320, 240)
	transform := mocks.NewTransform(ports.EventNeedInput, ports.EventHaveOutput)
	transform.Outputs = []mocks.OutputResult{{Frame: frame}}
	d := startedDriver(t, transform)

	released := false
	sample := ports.NewSample([]byte{0xFF, 0xD8, 0xFF, 0xD9}, 0, func() { released = true })

	got, err := d.DecodeOneFrame(context.Background(), sample)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != frame {
		t.Error("expected the frame produced by the transform")
	}
	if !released {
		t.Error("expected sample to be released after submission")
	}
	if len(transform.Inputs) != 1 {
		t.Errorf("expected 1 input, got %d", len(transform.Inputs))
	}
	if transform.Violations != 0 {
		t.Errorf("input submitted without need-input event %d times", transform.Violations)
	}

	stats := d.Stats()
	if stats.Submitted != 1 || stats.Produced != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestDecodeOneFrameWaitsForNeedInput(t *testing.T) {
	// The transform reports output from a previous session before asking for input.
	old := newFrame(320, 240)
	transform := mocks.NewTransform(ports.EventHaveOutput, ports.EventNeedInput)
	transform.Outputs = []mocks.OutputResult{{Frame: old}}
	d := startedDriver(t, transform)

	got, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, nil))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != old {
		t.Error("expected the buffered frame")
	}
	if len(transform.Inputs) != 1 || transform.Violations != 0 {
		t.Errorf("expected exactly one accepted input, got %d inputs and %d violations",
			len(transform.Inputs), transform.Violations)
	}
}

func TestDecodeOneFramePipelined(t *testing.T) {
	frame := newFrame(320, 240)
	transform := mocks.NewTransform(
		ports.EventNeedInput,
		ports.EventNeedInput,
		ports.EventHaveOutput,
	)
	transform.Outputs = []mocks.OutputResult{{Frame: frame}}
	d := startedDriver(t, transform)
	ctx := context.Background()

	_, err := d.DecodeOneFrame(ctx, ports.NewSample([]byte{1}, 0, nil))
	if !errors.Is(err, ports.ErrNeedMoreInput) {
		t.Fatalf("expected ErrNeedMoreInput, got %v", err)
	}

	got, err := d.DecodeOneFrame(ctx, ports.NewSample([]byte{2}, 0, nil))
	if err != nil {
		t.Fatalf("second decode failed: %v", err)
	}
	if got != frame {
		t.Error("expected the frame produced by the transform")
	}
	if len(transform.Inputs) != 2 {
		t.Errorf("expected 2 inputs, got %d", len(transform.Inputs))
	}
	if transform.Violations != 0 {
		t.Errorf("input submitted without need-input event %d times", transform.Violations)
	}
}

func TestDecodeOneFrameEmptyOutput(t *testing.T) {
	frame := newFrame(320, 240)
	transform := mocks.NewTransform(ports.EventNeedInput, ports.EventHaveOutput, ports.EventHaveOutput)
	transform.Outputs = []mocks.OutputResult{
		{Err: ports.ErrNeedMoreInput},
		{Frame: frame},
	}
	d := startedDriver(t, transform)

	got, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, nil))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != frame {
		t.Error("expected the frame from the second output call")
	}
	if transform.OutputCalls != 2 {
		t.Errorf("expected 2 ProcessOutput calls, got %d", transform.OutputCalls)
	}
	if d.Stats().NeedMoreInput != 1 {
		t.Errorf("expected 1 need-more-input, got %d", d.Stats().NeedMoreInput)
	}
}

func TestDecodeOneFrameNilOutputNotCounted(t *testing.T) {
	frame := newFrame(320, 240)
	transform := mocks.NewTransform(ports.EventNeedInput, ports.EventHaveOutput, ports.EventHaveOutput)
	transform.Outputs = []mocks.OutputResult{
		{},
		{Frame: frame},
	}
	d := startedDriver(t, transform)

	got, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, nil))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != frame {
		t.Error("expected the frame from the second output call")
	}
	if stats := d.Stats(); stats.Produced != 1 {
		t.Errorf("expected 1 produced frame, got %d", stats.Produced)
	}
}

func TestDecodeOneFrameStreamChange(t *testing.T) {
	frame := newFrame(640, 480)
	transform := mocks.NewTransform(ports.EventNeedInput, ports.EventHaveOutput)
	transform.Outputs = []mocks.OutputResult{
		{Err: ports.ErrStreamChange},
		{Frame: frame},
	}
	d := startedDriver(t, transform)

	got, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, nil))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != frame {
		t.Error("expected the frame delivered after renegotiation")
	}
	if len(transform.OutputTypeCalls) != 2 {
		t.Errorf("expected output type to be set twice, got %d", len(transform.OutputTypeCalls))
	}
	if d.Stats().StreamChanges != 1 {
		t.Errorf("expected 1 stream change, got %d", d.Stats().StreamChanges)
	}
}

func TestDecodeOneFrameStreamChangeLimit(t *testing.T) {
	transform := mocks.NewTransform(ports.EventNeedInput, ports.EventHaveOutput)
	for i := 0; i <= maxStreamChanges; i++ {
		transform.Outputs = append(transform.Outputs, mocks.OutputResult{Err: ports.ErrStreamChange})
	}
	d := startedDriver(t, transform)

	_, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, nil))
	if !errors.Is(err, ports.ErrStreamChange) {
		t.Errorf("expected ErrStreamChange, got %v", err)
	}
}

func TestDecodeOneFrameOutputError(t *testing.T) {
	boom := errors.New("device lost")
	transform := mocks.NewTransform(ports.EventNeedInput, ports.EventHaveOutput)
	transform.Outputs = []mocks.OutputResult{{Err: boom}}
	d := startedDriver(t, transform)

	_, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, nil))
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped device error, got %v", err)
	}
}

func TestDecodeOneFrameInputError(t *testing.T) {
	boom := errors.New("bad sample")
	transform := mocks.NewTransform(ports.EventNeedInput)
	transform.ProcessInputFunc = func(uint32, *ports.Sample) error { return boom }
	d := startedDriver(t, transform)

	released := false
	_, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, func() { released = true }))
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped input error, got %v", err)
	}
	if !released {
		t.Error("expected sample to be released even when submission fails")
	}
}

func TestDecodeOneFrameUnexpectedEvent(t *testing.T) {
	transform := mocks.NewTransform(ports.EventDrainComplete)
	d := startedDriver(t, transform)

	_, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, nil))
	if !errors.Is(err, ErrUnexpectedEvent) {
		t.Errorf("expected ErrUnexpectedEvent, got %v", err)
	}
}

func TestDecodeOneFrameCancelled(t *testing.T) {
	transform := mocks.NewTransform(ports.EventNeedInput)
	d := startedDriver(t, transform)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.DecodeOneFrame(ctx, ports.NewSample([]byte{1}, 0, nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDrain(t *testing.T) {
	first := newFrame(320, 240)
	last := newFrame(320, 240)
	transform := mocks.NewTransform(
		ports.EventNeedInput,
		ports.EventHaveOutput,
		ports.EventNeedInput,
		ports.EventHaveOutput,
		ports.EventDrainComplete,
	)
	transform.Outputs = []mocks.OutputResult{{Frame: first}, {Frame: last}}
	d := startedDriver(t, transform)

	if _, err := d.DecodeOneFrame(context.Background(), ports.NewSample([]byte{1}, 0, nil)); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	frames, err := d.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(frames) != 1 || frames[0] != last {
		t.Errorf("expected the last frame from drain, got %d frames", len(frames))
	}

	msgs := transform.Messages[len(transform.Messages)-2:]
	if msgs[0] != ports.MessageEndOfStream || msgs[1] != ports.MessageDrain {
		t.Errorf("expected end-of-stream then drain, got %v", msgs)
	}
}

func TestClose(t *testing.T) {
	transform := mocks.NewTransform()
	d := startedDriver(t, transform)

	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !transform.Closed {
		t.Error("expected transform to be closed")
	}
	if last := transform.Messages[len(transform.Messages)-1]; last != ports.MessageEndStreaming {
		t.Errorf("expected end-streaming last, got %s", last)
	}
}
