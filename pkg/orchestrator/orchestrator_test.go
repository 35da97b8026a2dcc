package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/bmp"

	"github.com/user/mjpegcap/pkg/adapters/ggrenderer"
	"github.com/user/mjpegcap/pkg/adapters/logger"
	"github.com/user/mjpegcap/pkg/adapters/mjpegmft"
	"github.com/user/mjpegcap/pkg/adapters/planewriter"
	"github.com/user/mjpegcap/pkg/adapters/rawdump"
	"github.com/user/mjpegcap/pkg/mocks"
	"github.com/user/mjpegcap/pkg/pipeline"
	"github.com/user/mjpegcap/pkg/ports"
	"github.com/user/mjpegcap/pkg/stages/capture"
	"github.com/user/mjpegcap/pkg/stages/decode"
	"github.com/user/mjpegcap/pkg/stages/dump"
)

// mockCaptureStage is a mock for the capture stage.
type mockCaptureStage struct {
	result pipeline.CaptureResult
	err    error
	input  pipeline.CaptureInput
}

func (m *mockCaptureStage) Execute(ctx context.Context, input pipeline.CaptureInput) (pipeline.CaptureResult, error) {
	m.input = input
	if m.err != nil {
		return pipeline.CaptureResult{}, m.err
	}
	return m.result, nil
}

// mockDecodeStage turns every sample into a 4x4 frame, or holds it back when
// the sample index is listed in pending.
type mockDecodeStage struct {
	pending  map[int]bool
	drained  []*ports.Frame
	prepErr  error
	execErr  error
	inputs   []pipeline.DecodeInput
	prepared bool
	closed   bool
}

func (m *mockDecodeStage) Prepare(ctx context.Context, input pipeline.PrepareInput) (pipeline.PrepareResult, error) {
	if m.prepErr != nil {
		return pipeline.PrepareResult{}, m.prepErr
	}
	m.prepared = true
	out := input.MediaType
	out.Subtype = ports.SubtypeNV12
	return pipeline.PrepareResult{InputType: input.MediaType, OutputType: out}, nil
}

func (m *mockDecodeStage) Execute(ctx context.Context, input pipeline.DecodeInput) (pipeline.DecodeResult, error) {
	m.inputs = append(m.inputs, input)
	input.Sample.Release()
	if m.execErr != nil {
		return pipeline.DecodeResult{}, m.execErr
	}
	if m.pending[input.Index] {
		return pipeline.DecodeResult{}, nil
	}
	return pipeline.DecodeResult{Frame: testFrame(time.Duration(input.Index) * time.Millisecond)}, nil
}

func (m *mockDecodeStage) Drain(ctx context.Context) ([]*ports.Frame, error) {
	return m.drained, nil
}

func (m *mockDecodeStage) Stats() pipeline.DecodeStats {
	return pipeline.DecodeStats{Submitted: len(m.inputs)}
}

func (m *mockDecodeStage) Close() error {
	m.closed = true
	return nil
}

// mockDumpStage records every frame.
type mockDumpStage struct {
	err    error
	inputs []pipeline.DumpInput
	closed bool
}

func (m *mockDumpStage) Execute(ctx context.Context, input pipeline.DumpInput) (pipeline.DumpResult, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return pipeline.DumpResult{}, m.err
	}
	return pipeline.DumpResult{PlanesWritten: len(m.inputs) == 1, Paths: []string{"planeY.bmp", "planeUV.bmp"}}, nil
}

func (m *mockDumpStage) Close() error {
	m.closed = true
	return nil
}

func testFrame(ts time.Duration) *ports.Frame {
	return &ports.Frame{Data: make([]byte, 24), Width: 4, Height: 4, Stride: 4, Timestamp: ts}
}

func sample(b byte) *ports.Sample {
	return ports.NewSample([]byte{b}, 0, nil)
}

func captureWith(reader *mocks.SampleReader) *mockCaptureStage {
	return &mockCaptureStage{result: pipeline.CaptureResult{
		Device:    ports.DeviceInfo{Index: 0, Name: "Test Camera"},
		MediaType: ports.MediaType{Subtype: ports.SubtypeMJPG, Width: 4, Height: 4, FrameRateNum: 30, FrameRateDen: 1},
		Reader:    reader,
	}}
}

func TestOrchestrator_Run(t *testing.T) {
	reader := mocks.NewSampleReader(sample(1), nil, sample(2), sample(3))
	captureStage := captureWith(reader)
	decodeStage := &mockDecodeStage{pending: map[int]bool{1: true}, drained: []*ports.Frame{testFrame(0)}}
	dumpStage := &mockDumpStage{}
	sink := mocks.NewDebugSink(true)

	orch := New(captureStage, decodeStage, dumpStage, sink, logger.NewNoop())
	config := DefaultConfig()
	config.Width, config.Height = 4, 4

	result, err := orch.Run(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captureStage.input.Width != 4 || captureStage.input.FPS != 30 {
		t.Errorf("unexpected capture input %+v", captureStage.input)
	}
	if result.Samples != 3 || result.Ticks != 1 {
		t.Errorf("expected 3 samples and 1 tick, got %d and %d", result.Samples, result.Ticks)
	}
	// Sample 1 is held back, the drain delivers one more frame.
	if result.Frames != 3 || len(dumpStage.inputs) != 3 {
		t.Errorf("expected 3 dumped frames, got %d", len(dumpStage.inputs))
	}
	for i, in := range dumpStage.inputs {
		if in.Index != i {
			t.Errorf("dump %d has index %d", i, in.Index)
		}
	}
	if decodeStage.inputs[2].Index != 2 {
		t.Errorf("decode indexes must count samples, not reads: got %d", decodeStage.inputs[2].Index)
	}
	if !reader.Closed || !decodeStage.closed || !dumpStage.closed {
		t.Error("expected reader, decoder and writers to be closed")
	}
	if len(result.Paths) != 2 {
		t.Errorf("unexpected paths %v", result.Paths)
	}

	var types pipeline.MediaTypes
	if err := json.Unmarshal(sink.MediaTypesJSON, &types); err != nil {
		t.Fatalf("media types JSON invalid: %v", err)
	}
	if types.Device.Name != "Test Camera" || types.Transform.OutputType.Subtype != ports.SubtypeNV12 {
		t.Errorf("unexpected media types %+v", types)
	}
}

func TestOrchestrator_Run_SampleCount(t *testing.T) {
	reader := mocks.NewSampleReader(sample(1), nil, sample(2), sample(3), sample(4))
	decodeStage := &mockDecodeStage{}
	orch := New(captureWith(reader), decodeStage, &mockDumpStage{}, &mocks.NullSink{}, logger.NewNoop())

	config := DefaultConfig()
	config.SampleCount = 3
	result, err := orch.Run(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The tick counts as a read attempt.
	if reader.Reads != 3 || result.Samples != 2 {
		t.Errorf("expected 3 reads and 2 samples, got %d and %d", reader.Reads, result.Samples)
	}
}

func flagged(b byte, flags ports.SampleFlags) *ports.Sample {
	s := sample(b)
	s.Flags = flags
	return s
}

func TestOrchestrator_Run_EndOfStream(t *testing.T) {
	// Samples after the end-of-stream mark are never read.
	reader := mocks.NewSampleReader(sample(1), flagged(2, ports.FlagEndOfStream), sample(3))
	decodeStage := &mockDecodeStage{}
	dumpStage := &mockDumpStage{}
	orch := New(captureWith(reader), decodeStage, dumpStage, &mocks.NullSink{}, logger.NewNoop())

	result, err := orch.Run(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reader.Reads != 2 || result.Samples != 2 {
		t.Errorf("expected 2 reads and 2 samples, got %d and %d", reader.Reads, result.Samples)
	}
	if len(dumpStage.inputs) != 2 {
		t.Errorf("expected the last sample to be decoded, got %d frames", len(dumpStage.inputs))
	}
}

func TestOrchestrator_Run_StreamTickFlag(t *testing.T) {
	tick := ports.NewSample(nil, 0, nil)
	tick.Flags = ports.FlagStreamTick
	reader := mocks.NewSampleReader(sample(1), tick, flagged(2, ports.FlagStreamTick|ports.FlagEndOfStream), sample(3))
	decodeStage := &mockDecodeStage{}
	orch := New(captureWith(reader), decodeStage, &mockDumpStage{}, &mocks.NullSink{}, logger.NewNoop())

	result, err := orch.Run(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Ticks != 2 || result.Samples != 1 {
		t.Errorf("expected 2 ticks and 1 sample, got %d and %d", result.Ticks, result.Samples)
	}
	if len(decodeStage.inputs) != 1 {
		t.Errorf("ticks must not reach the transform, got %d inputs", len(decodeStage.inputs))
	}
}

func TestOrchestrator_Run_MediaTypesSaveError(t *testing.T) {
	sink := mocks.NewDebugSink(true)
	sink.SaveMediaTypesJSONFunc = func([]byte) error { return errors.New("disk full") }
	var out, errOut bytes.Buffer
	log := logger.NewWriter(ports.LevelDebug, &out, &errOut)

	orch := New(captureWith(mocks.NewSampleReader(sample(1))), &mockDecodeStage{}, &mockDumpStage{}, sink, log)
	if _, err := orch.Run(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("a debug write failure must not fail the run: %v", err)
	}
	if !strings.Contains(errOut.String(), "disk full") {
		t.Errorf("expected a warning about the media types, got %q", errOut.String())
	}
}

func TestOrchestrator_Run_CaptureError(t *testing.T) {
	captureStage := &mockCaptureStage{err: ports.ErrDeviceNotFound}
	decodeStage := &mockDecodeStage{}
	dumpStage := &mockDumpStage{}
	orch := New(captureStage, decodeStage, dumpStage, &mocks.NullSink{}, logger.NewNoop())

	_, err := orch.Run(context.Background(), DefaultConfig())
	if !errors.Is(err, ports.ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
	if decodeStage.prepared {
		t.Error("transform must not be configured without a device")
	}
	if !decodeStage.closed || !dumpStage.closed {
		t.Error("expected stages to be closed after a capture error")
	}
}

func TestOrchestrator_Run_PrepareError(t *testing.T) {
	reader := mocks.NewSampleReader(sample(1))
	decodeStage := &mockDecodeStage{prepErr: ports.ErrInvalidMediaType}
	orch := New(captureWith(reader), decodeStage, &mockDumpStage{}, &mocks.NullSink{}, logger.NewNoop())

	_, err := orch.Run(context.Background(), DefaultConfig())
	if !errors.Is(err, ports.ErrInvalidMediaType) {
		t.Errorf("expected ErrInvalidMediaType, got %v", err)
	}
	if reader.Reads != 0 {
		t.Error("no sample should be read before the transform is configured")
	}
	if !reader.Closed {
		t.Error("expected reader to be closed")
	}
}

func TestOrchestrator_Run_DecodeError(t *testing.T) {
	boom := errors.New("transform failed")
	reader := mocks.NewSampleReader(sample(1), sample(2))
	decodeStage := &mockDecodeStage{execErr: boom}
	dumpStage := &mockDumpStage{}
	orch := New(captureWith(reader), decodeStage, dumpStage, &mocks.NullSink{}, logger.NewNoop())

	result, err := orch.Run(context.Background(), DefaultConfig())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
	if result.Samples != 1 || len(dumpStage.inputs) != 0 {
		t.Errorf("expected to stop after the first sample, got %d samples", result.Samples)
	}
}

func TestOrchestrator_Run_DumpError(t *testing.T) {
	boom := errors.New("planeY.bmp: permission denied")
	reader := mocks.NewSampleReader(sample(1), sample(2), sample(3))
	decodeStage := &mockDecodeStage{}
	dumpStage := &mockDumpStage{err: boom}
	orch := New(captureWith(reader), decodeStage, dumpStage, &mocks.NullSink{}, logger.NewNoop())

	result, err := orch.Run(context.Background(), DefaultConfig())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped dump error, got %v", err)
	}
	if len(dumpStage.inputs) != 1 || result.Samples != 1 {
		t.Errorf("expected the run to stop at the first frame, got %d dumps over %d samples", len(dumpStage.inputs), result.Samples)
	}
	if !decodeStage.closed || !dumpStage.closed || !reader.Closed {
		t.Error("expected everything to be closed after a dump error")
	}
}

func TestOrchestrator_Run_ReadError(t *testing.T) {
	reader := mocks.NewSampleReader()
	reader.ReadSampleFunc = func(ctx context.Context) (*ports.Sample, error) {
		return nil, errors.New("device unplugged")
	}
	orch := New(captureWith(reader), &mockDecodeStage{}, &mockDumpStage{}, &mocks.NullSink{}, logger.NewNoop())

	if _, err := orch.Run(context.Background(), DefaultConfig()); err == nil {
		t.Error("expected read error")
	}
}

func TestOrchestrator_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := mocks.NewSampleReader()
	reader.ReadSampleFunc = func(ctx context.Context) (*ports.Sample, error) {
		cancel()
		return sample(1), nil
	}
	orch := New(captureWith(reader), &mockDecodeStage{}, &mockDumpStage{}, &mocks.NullSink{}, logger.NewNoop())

	_, err := orch.Run(ctx, DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func jpegOf(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode JPEG: %v", err)
	}
	return buf.Bytes()
}

func TestOrchestrator_Run_SoftwareTransform(t *testing.T) {
	const w, h = 64, 48
	var samples []*ports.Sample
	for i := 0; i < 5; i++ {
		s := ports.NewSample(jpegOf(t, w, h, uint8(40+i*40)), time.Duration(i)*33*time.Millisecond, nil)
		samples = append(samples, s)
	}
	samples = append(samples[:2], append([]*ports.Sample{nil}, samples[2:]...)...)
	reader := mocks.NewSampleReader(samples...)

	devices := &mocks.DeviceEnumerator{
		Infos:   []ports.DeviceInfo{{Index: 0, Name: "Test Camera"}},
		Readers: map[int]ports.SampleReader{0: reader},
	}
	fs := mocks.NewFileSystem()
	sink := mocks.NewDebugSink(true)
	log := logger.NewNoop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	orch := New(
		capture.NewStage(devices, log),
		decode.NewStage(mjpegmft.NewSoftware(log), sink, log),
		dump.NewStage(
			planewriter.New(fs, planewriter.Options{Dir: "/out"}, log),
			rawdump.New(fs, "/out/rawframes.yuv"),
			ggrenderer.New(),
			sink,
			log,
		),
		sink,
		log,
	)

	config := DefaultConfig()
	config.Width, config.Height = w, h
	result, err := orch.Run(ctx, config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Samples != 5 || result.Frames != 5 || result.Ticks != 1 {
		t.Errorf("expected 5 samples, 5 frames, 1 tick; got %d, %d, %d", result.Samples, result.Frames, result.Ticks)
	}
	if result.OutputType.Subtype != ports.SubtypeNV12 || result.OutputType.Width != w {
		t.Errorf("unexpected output type %s", result.OutputType)
	}
	if result.FirstFrame != 0 {
		t.Errorf("planes should come from the first frame, got timestamp %s", result.FirstFrame)
	}

	yData, ok := fs.GetFile("/out/planeY.bmp")
	if !ok {
		t.Fatal("planeY.bmp not written")
	}
	img, err := bmp.Decode(bytes.NewReader(yData))
	if err != nil {
		t.Fatalf("planeY.bmp does not decode: %v", err)
	}
	luma, ok := img.(*image.Paletted)
	if !ok {
		t.Fatalf("expected paletted BMP, got %T", img)
	}
	if b := luma.Bounds(); b.Dx() != w || b.Dy() != h {
		t.Errorf("expected %dx%d, got %dx%d", w, h, b.Dx(), b.Dy())
	}
	// The first sample has shade 40, which is 50 in limited range; later samples are brighter.
	if got := luma.ColorIndexAt(w/2, h/2); got < 44 || got > 56 {
		t.Errorf("expected luma near 50 from the first frame, got %d", got)
	}

	uvData, ok := fs.GetFile("/out/planeUV.bmp")
	if !ok {
		t.Fatal("planeUV.bmp not written")
	}
	cfg, err := bmp.DecodeConfig(bytes.NewReader(uvData))
	if err != nil {
		t.Fatalf("planeUV.bmp does not decode: %v", err)
	}
	if cfg.Width != w || cfg.Height != h/2 {
		t.Errorf("expected %dx%d chroma plane, got %dx%d", w, h/2, cfg.Width, cfg.Height)
	}

	raw, _ := fs.GetFile("/out/rawframes.yuv")
	if len(raw) != 5*w*h*3/2 {
		t.Errorf("expected 5 raw frames (%d bytes), got %d", 5*w*h*3/2, len(raw))
	}
	if len(sink.CompressedSamples[0]) == 0 || sink.Preview == nil || sink.MediaTypesJSON == nil {
		t.Error("expected debug sample, preview and media types")
	}
	if !reader.Closed {
		t.Error("expected reader to be closed")
	}
}
