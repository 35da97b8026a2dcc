package summarizer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/mjpegcap/pkg/mocks"
)

func sampleSummary() *Summary {
	s := NewBuilder().
		WithDevice(1, "USB | Camera", "/dev/video2").
		WithCapture(CaptureInfo{Format: "MJPG", Width: 320, Height: 240, FPS: 30}).
		WithTransform(TransformInfo{Backend: "software", OutputFormat: "NV12", Stride: 320, Submitted: 100, Produced: 98, NeedMoreInput: 2}).
		WithRun(RunInfo{Requested: 100, Samples: 100, Ticks: 0, Frames: 98, FirstFrameMs: 33, ElapsedMs: 3450}).
		WithOutputs([]string{"out/planeY.bmp", "out/planeUV.bmp"}).
		Build()
	s.GeneratedAt = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	return s
}

func TestBuilder(t *testing.T) {
	s := sampleSummary()
	if s.Device.Name != "USB | Camera" || s.Capture.Width != 320 || s.Run.Frames != 98 {
		t.Errorf("builder did not set fields: %+v", s)
	}
	if len(s.Outputs) != 2 {
		t.Errorf("expected 2 outputs, got %d", len(s.Outputs))
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	out := NewMarkdownFormatter().Format(sampleSummary())

	checks := []string{
		"# Capture Summary",
		"2026-10-19T09:00:00Z",
		"USB \\| Camera",
		"`/dev/video2`",
		"| Capture | MJPG | 320x240 | 30.00 fps |",
		"| Decode | NV12 | 320x240 (stride 320) |",
		"| Backend | software |",
		"| Frames | 98 |",
		"| Decode ratio | 98.0% |",
		"| Elapsed | 3.45 s |",
		"- `out/planeUV.bmp`",
	}
	for _, check := range checks {
		if !strings.Contains(out, check) {
			t.Errorf("expected output to contain %q", check)
		}
	}
}

func TestMarkdownFormatter_NoSamples(t *testing.T) {
	out := NewMarkdownFormatter().Format(NewSummary())
	if strings.Contains(out, "Decode ratio") {
		t.Error("ratio must be omitted without samples")
	}
	if strings.Contains(out, "## Outputs") {
		t.Error("outputs section must be omitted when empty")
	}
	if !strings.Contains(out, "| Elapsed | 0 ms |") {
		t.Error("expected elapsed in milliseconds")
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := NewWriter(FormatFunc(func(s *Summary) string { return "summary" }), fs)

	if err := w.Write("reports/run.md", NewSummary()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, ok := fs.GetFile("reports/run.md")
	if !ok || string(data) != "summary" {
		t.Errorf("unexpected file content %q", data)
	}
	if ok, _ := fs.Exists("reports"); !ok {
		t.Error("expected parent directory to be created")
	}
}

func TestWriter_WriteError(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFileFunc = func(path string, data []byte) error { return errors.New("denied") }
	if err := NewWriter(NewMarkdownFormatter(), fs).Write("run.md", NewSummary()); err == nil {
		t.Error("expected write error")
	}
}
